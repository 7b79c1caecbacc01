package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/alexwox/research-assistant/internal/core/error"
	"github.com/alexwox/research-assistant/internal/knowledge"
	"github.com/alexwox/research-assistant/internal/search"

	"github.com/alexwox/research-assistant/internal/agent/graph/conversations"
	"github.com/alexwox/research-assistant/internal/agent/graph/nodes"
	"github.com/alexwox/research-assistant/internal/agent/graph/tools"
	"github.com/alexwox/research-assistant/internal/agent/model"
	"github.com/alexwox/research-assistant/internal/agent/repo"
)

const validPayload = `{"research_title":"Go Concurrency","research_main":"Goroutines are cheap.","research_bullets":"- channels\n- select"}`

// scriptedModel replays a fixed sequence of assistant messages. Once the
// script is exhausted the last message repeats.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	calls     int
	inputs    [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]*schema.Message, len(in))
	copy(snapshot, in)
	m.inputs = append(m.inputs, snapshot)

	idx := m.calls
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.calls++
	if idx < 0 {
		return nil, fmt.Errorf("no scripted responses")
	}
	return m.responses[idx], nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *scriptedModel) WithTools(toolInfos []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

type fakeSearchService struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeSearchService) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return []search.Result{{Source: "https://example.com", Content: "snippet for " + query}}, nil
}

type fakeKnowledgeService struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeKnowledgeService) Query(ctx context.Context, query string) (*knowledge.Excerpt, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return &knowledge.Excerpt{Content: "local notes on " + query, Source: "notes.md"}, nil
}

type testHarness struct {
	runner    Runner
	model     *scriptedModel
	repo      *repo.MemoryConversationRepository
	search    *fakeSearchService
	knowledge *fakeKnowledgeService
}

func buildTestRunner(t *testing.T, responses []*schema.Message) *testHarness {
	t.Helper()

	h := &testHarness{
		model:     &scriptedModel{responses: responses},
		repo:      repo.NewMemoryConversationRepository(),
		search:    &fakeSearchService{},
		knowledge: &fakeKnowledgeService{},
	}

	var convCfg model.ConversationConfig
	convCfg.MaxTurns = 20
	convCfg.Tools.MaxCalls = 10

	mm := conversations.NewMessagesManager(h.repo, convCfg)

	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		SynthesisModel:  &nodes.SynthesisModel{Model: h.model, Name: "scripted"},
		MessagesManager: mm,
		Tools: tools.Config{
			Search:           h.search,
			Knowledge:        h.knowledge,
			SearchMaxResults: 3,
			Timeout:          5 * time.Second,
		},
		ToolMaxCalls: convCfg.Tools.MaxCalls,
		MaxRetries:   5,
		Today:        func() time.Time { return time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	h.runner = &graphRunner{runnable: runnable, mm: mm}
	return h
}

func TestRunDirectAnswerSavesExchange(t *testing.T) {
	h := buildTestRunner(t, []*schema.Message{
		schema.AssistantMessage(validPayload, nil),
	})

	result, err := h.runner.Run(context.Background(), model.QueryInput{
		ConversationID: "conv-1",
		Query:          "explain goroutines",
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency", result.Title)
	assert.Equal(t, "Goroutines are cheap.", result.Body)

	history, err := h.repo.LoadHistory(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "explain goroutines", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)
	assert.Contains(t, history.Messages[1].Content, "Goroutines are cheap.")
}

func TestRunToolCallRoundTrip(t *testing.T) {
	toolCall := schema.AssistantMessage("", []schema.ToolCall{
		{
			ID:       "call_k",
			Function: schema.FunctionCall{Name: tools.ToolKnowledgeLookup, Arguments: `{"query":"goroutines"}`},
		},
	})

	h := buildTestRunner(t, []*schema.Message{
		toolCall,
		schema.AssistantMessage(validPayload, nil),
	})

	result, err := h.runner.Run(context.Background(), model.QueryInput{
		ConversationID: "conv-tools",
		Query:          "explain goroutines",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Equal(t, []string{"goroutines"}, h.knowledge.queries)
	assert.Equal(t, 2, h.model.calls)

	// The second model call sees the tool result in its context.
	require.Len(t, h.model.inputs, 2)
	last := h.model.inputs[1][len(h.model.inputs[1])-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Contains(t, last.Content, "local notes on goroutines")
}

func TestRunInvalidPayloadRetriesThenFails(t *testing.T) {
	h := buildTestRunner(t, []*schema.Message{
		schema.AssistantMessage("this is not json at all", nil),
	})

	_, err := h.runner.Run(context.Background(), model.QueryInput{
		ConversationID: "conv-bad",
		Query:          "explain goroutines",
	})
	require.Error(t, err)

	var sf *errx.SynthesisFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, 5, sf.Attempts)
	assert.Contains(t, sf.LastPayload, "not json")
	assert.Equal(t, 5, h.model.calls, "one model call per synthesis attempt")

	// Failed runs contribute nothing to the transcript.
	history, err := h.repo.LoadHistory(context.Background(), "conv-bad")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

func TestRunRecoversOnRetry(t *testing.T) {
	h := buildTestRunner(t, []*schema.Message{
		schema.AssistantMessage("oops", nil),
		schema.AssistantMessage(validPayload, nil),
	})

	result, err := h.runner.Run(context.Background(), model.QueryInput{
		ConversationID: "conv-retry",
		Query:          "explain goroutines",
	})
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", result.Title)
	assert.Equal(t, 2, h.model.calls)

	// The retry pass carries a corrective instruction.
	require.Len(t, h.model.inputs, 2)
	last := h.model.inputs[1][len(h.model.inputs[1])-1]
	assert.Equal(t, schema.System, last.Role)
	assert.Contains(t, last.Content, "did not validate")
}

func TestRunFollowUpSeesPriorExchange(t *testing.T) {
	h := buildTestRunner(t, []*schema.Message{
		schema.AssistantMessage(validPayload, nil),
	})

	ctx := context.Background()
	_, err := h.runner.Run(ctx, model.QueryInput{ConversationID: "conv-fu", Query: "first question"})
	require.NoError(t, err)

	_, err = h.runner.Run(ctx, model.QueryInput{ConversationID: "conv-fu", Query: "and a follow-up?"})
	require.NoError(t, err)

	require.Len(t, h.model.inputs, 2)
	second := h.model.inputs[1]

	var sawPriorAnswer, sawPriorQuestion bool
	for _, msg := range second {
		if msg.Role == schema.Assistant && msg.Content != "" {
			sawPriorAnswer = true
		}
		if msg.Role == schema.User && msg.Content == "first question" {
			sawPriorQuestion = true
		}
	}
	assert.True(t, sawPriorQuestion, "follow-up context includes the prior question")
	assert.True(t, sawPriorAnswer, "follow-up context includes the prior answer")
}

func TestRunEmptyQueryFails(t *testing.T) {
	h := buildTestRunner(t, []*schema.Message{
		schema.AssistantMessage(validPayload, nil),
	})

	_, err := h.runner.Run(context.Background(), model.QueryInput{ConversationID: "conv-e", Query: "   "})
	require.Error(t, err)
	assert.Equal(t, 0, h.model.calls)
}
