package conversations

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexwox/research-assistant/internal/agent/model"
	"github.com/alexwox/research-assistant/internal/agent/repo"
)

func newManager(t *testing.T, maxTurns int) (*MessagesManager, model.ConversationRepository) {
	t.Helper()
	store := repo.NewMemoryConversationRepository()
	var cfg model.ConversationConfig
	cfg.MaxTurns = maxTurns
	return NewMessagesManager(store, cfg), store
}

func TestBuildSynthesisContextIncludesHistory(t *testing.T) {
	ctx := context.Background()
	mm, _ := newManager(t, 20)

	require.NoError(t, mm.SaveExchange(ctx, "conv", "What is the capital of France?", "# France\n\nParis."))

	msgs, err := mm.BuildSynthesisContext(ctx, "conv", "system policy", "And its population?")
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "system policy", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "capital of France")
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Equal(t, "And its population?", msgs[3].Content)
}

func TestBuildSynthesisContextEmptyTranscript(t *testing.T) {
	mm, _ := newManager(t, 20)

	msgs, err := mm.BuildSynthesisContext(context.Background(), "fresh", "system policy", "first question")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.User, msgs[1].Role)
}

func TestBuildSynthesisContextTrimsToWindow(t *testing.T) {
	ctx := context.Background()
	mm, _ := newManager(t, 2)

	require.NoError(t, mm.SaveExchange(ctx, "conv", "q1", "a1"))
	require.NoError(t, mm.SaveExchange(ctx, "conv", "q2", "a2"))

	msgs, err := mm.BuildSynthesisContext(ctx, "conv", "sys", "q3")
	require.NoError(t, err)
	// system + last 2 history messages + new query
	require.Len(t, msgs, 4)
	assert.Equal(t, "q2", msgs[1].Content)
	assert.Equal(t, "a2", msgs[2].Content)
}

func TestSaveExchangeAppendsPairInOrder(t *testing.T) {
	ctx := context.Background()
	mm, store := newManager(t, 20)

	require.NoError(t, mm.SaveExchange(ctx, "conv", "question", "answer"))

	history, err := store.LoadHistory(ctx, "conv")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)
}
