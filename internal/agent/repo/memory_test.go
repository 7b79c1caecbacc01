package repo

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	require.NoError(t, r.AddMessage(ctx, "conv-1", schema.UserMessage("first question")))
	require.NoError(t, r.AddMessage(ctx, "conv-1", schema.AssistantMessage("first answer", nil)))
	require.NoError(t, r.AddMessage(ctx, "conv-1", schema.UserMessage("follow-up")))

	history, err := r.LoadHistory(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "first question", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)
	assert.Equal(t, "follow-up", history.Messages[2].Content)

	n, err := r.GetMessageCount(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryRepositoryIsolatesConversations(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()

	require.NoError(t, r.AddMessage(ctx, "a", schema.UserMessage("hello")))

	history, err := r.LoadHistory(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)

	require.NoError(t, r.ClearHistory(ctx, "a"))
	n, err := r.GetMessageCount(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryRepositoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryConversationRepository()
	require.NoError(t, r.AddMessage(ctx, "c", schema.UserMessage("original")))

	history, err := r.LoadHistory(ctx, "c")
	require.NoError(t, err)
	history.Messages[0] = schema.UserMessage("mutated")

	again, err := r.LoadHistory(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}
