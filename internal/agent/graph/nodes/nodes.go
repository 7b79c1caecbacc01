package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/alexwox/research-assistant/internal/agent/graph/conversations"
	"github.com/alexwox/research-assistant/internal/agent/graph/parsers"
	"github.com/alexwox/research-assistant/internal/agent/graph/prompts"
	"github.com/alexwox/research-assistant/internal/agent/model"
	logx "github.com/alexwox/research-assistant/pkg/logger"
)

// Graph node keys.
const (
	NodeInputConverter     = "input_converter"
	NodeSynthesisChatModel = "synthesis_chat_model"
	NodeToolExecutor       = "tool_executor"
	NodeResultParser       = "result_parser"
	NodeRetryAssembler     = "retry_assembler"
)

// NewInputConverterPreHandler creates the pre-handler for the InputConverter
// node. It resets all per-run state so a reused graph never leaks counters
// between queries.
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Query = in.Query
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.Invocations = nil
		s.SynthesisAttempts = 0
		s.LastPayload = ""
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode creates the InputConverter node: it renders the
// system prompt and assembles the message context for the synthesis model.
func NewInputConverterNode(
	mm *conversations.MessagesManager,
	today func() time.Time,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		if strings.TrimSpace(input.Query) == "" {
			return nil, fmt.Errorf("query must not be empty")
		}

		systemPrompt, err := prompts.RenderResearchSystem(ctx, today())
		if err != nil {
			return nil, fmt.Errorf("render research system prompt: %w", err)
		}

		messages, err := mm.BuildSynthesisContext(ctx, input.ConversationID, systemPrompt, input.Query)
		if err != nil {
			return nil, fmt.Errorf("build synthesis context: %w", err)
		}

		return messages, nil
	})
}

// NewSynthesisChatModelPreHandler creates the pre-handler for the synthesis
// model node. Incoming messages (initial context, tool results, retry
// corrections) are appended to the run history, and a wrap-up notice is
// injected once the tool-call budget is spent.
func NewSynthesisChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		// Heuristic fix for Gemini OpenAI-compat: ensure tool results carry tool_call_id
		if len(in) > 0 {
			last := in[len(in)-1]
			if last != nil && last.Role == schema.Tool && strings.TrimSpace(last.ToolCallID) == "" {
				for i := len(state.History) - 1; i >= 0; i-- {
					msg := state.History[i]
					if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
						continue
					}
					id := msg.ToolCalls[0].ID
					if strings.TrimSpace(id) != "" {
						last.ToolCallID = id
					}
					break
				}
			}
		}

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			maxToolCalls = normalizeMaxToolCalls(maxToolCalls)
			wrapUp := &schema.Message{
				Role: schema.System,
				Content: fmt.Sprintf(
					"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
						"Synthesize your answer from the information already gathered, and "+
						"acknowledge in the answer body any gaps you could not close.",
					maxToolCalls,
				),
			}
			state.History = append(state.History, wrapUp)
		}

		logx.Debug().Str("conversation_id", state.ConversationID).Msg("synthesis model thinking")

		return state.History, nil
	}
}

// NewSynthesisChatModelPostHandler creates the post-handler for the synthesis
// model node. It accounts usage cost, normalizes tool call IDs into a
// monotonic per-run sequence, and records every tool invocation.
func NewSynthesisChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if model.CostEnabled() && out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			state.TotalCostUSD += totalC
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", state.TotalCostUSD).
				Msg("LLM usage")
		}

		if out != nil && len(out.ToolCalls) > 0 {
			// Some providers (Gemini OpenAI-compat) omit tool_call IDs; assign
			// them from the run-local sequence. The same sequence feeds the
			// invocation log, so N calls in one run carry sequences 0..N-1.
			for i := range out.ToolCalls {
				seq := state.ToolCallIDSeq
				state.ToolCallIDSeq++
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", seq)
				}
				state.Invocations = append(state.Invocations, model.ToolInvocation{
					Name:      out.ToolCalls[i].Function.Name,
					Arguments: out.ToolCalls[i].Function.Arguments,
					Sequence:  seq,
				})
			}
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("model requested tools")
		}

		state.History = append(state.History, out)
		return out, nil
	}
}

// NewToolRouteCondition routes the model output either to the tool executor
// or onwards to result parsing.
func NewToolRouteCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if limitReached {
			logx.Debug().Msg("tool budget spent, routing to result parser")
			return NodeResultParser, nil
		}

		if len(input.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("routing to tool executor")
			return NodeToolExecutor, nil
		}

		return NodeResultParser, nil
	}
}

// NewToolExecutorPreHandler creates the pre-handler for the ToolExecutor
// node: it counts tool calls against the per-run budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.AppState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)

		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("conversation_id", state.ConversationID).
			Msg("tool execution attempt")

		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("conversation_id", state.ConversationID).
				Msg("tool call limit exceeded, flagging and continuing")
		}

		return in, nil
	}
}

// NewResultParserNode creates the ResultParser node. A payload that fails
// validation produces an invalid outcome rather than failing the graph: the
// retry branch decides what happens next.
func NewResultParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.SynthesisOutcome, error) {
		result, err := parsers.ParseResearchResult(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("synthesis payload failed validation")
			return &model.SynthesisOutcome{Valid: false, RawPayload: resp.Content}, nil
		}
		return &model.SynthesisOutcome{Result: result, Valid: true}, nil
	})
}

// NewResultParserPostHandler counts the finished synthesis attempt and
// remembers the last invalid payload for failure reporting.
func NewResultParserPostHandler() func(context.Context, *model.SynthesisOutcome, *model.AppState) (*model.SynthesisOutcome, error) {
	return func(ctx context.Context, out *model.SynthesisOutcome, state *model.AppState) (*model.SynthesisOutcome, error) {
		state.SynthesisAttempts++
		out.Attempts = state.SynthesisAttempts
		if !out.Valid {
			state.LastPayload = out.RawPayload
		}
		return out, nil
	}
}

// NewSynthesisRetryCondition routes invalid outcomes back to the retry
// assembler until the attempt budget is spent; valid or exhausted outcomes
// end the run.
func NewSynthesisRetryCondition(maxAttempts int) func(context.Context, *model.SynthesisOutcome) (string, error) {
	maxAttempts = normalizeMaxSynthesisAttempts(maxAttempts)
	return func(ctx context.Context, outcome *model.SynthesisOutcome) (string, error) {
		if outcome.Valid {
			return compose.END, nil
		}
		if outcome.Attempts >= maxAttempts {
			logx.Warn().Int("attempts", outcome.Attempts).Msg("synthesis retry budget spent")
			return compose.END, nil
		}
		logx.Debug().Int("attempt", outcome.Attempts).Int("max_attempts", maxAttempts).Msg("retrying synthesis")
		return NodeRetryAssembler, nil
	}
}

// NewRetryAssemblerNode creates the RetryAssembler node: it emits a
// corrective instruction that is appended to the run history before the
// model is asked again. Retry wraps synthesis validation only; tool results
// already gathered stay in the history and are not re-fetched.
func NewRetryAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, outcome *model.SynthesisOutcome) ([]*schema.Message, error) {
		correction := &schema.Message{
			Role: schema.System,
			Content: "Your previous reply did not validate as a research result. " +
				"Respond again with a single JSON object in exactly this shape and nothing else: " +
				`{"research_title": "...", "research_main": "...", "research_bullets": "..."}. ` +
				"research_main must not be empty; if information is insufficient, explain the shortfall there.",
		}
		return []*schema.Message{correction}, nil
	})
}
