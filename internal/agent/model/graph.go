package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Do not access AppState directly from outside handlers. For persistence,
//     use the MessagesManager.
type AppState struct {
	ConversationID string
	Query          string
	History        []*schema.Message // mutated only inside Eino state handlers

	ToolCallCount        int  // maintained in handlers (reset/increment)
	ToolCallLimitReached bool // set when the tool call budget is spent
	ToolCallIDSeq        int  // local sequence to synthesize tool_call_id when provider omits

	// Invocations records every tool call issued during this run, in order.
	// Sequence numbers are monotonic from zero and unique within the run.
	Invocations []ToolInvocation

	SynthesisAttempts int    // number of finished synthesis/validation passes
	LastPayload       string // last payload that failed validation

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// ToolInvocation is a transient record of one tool call within a run. It is
// kept for observability only and discarded with the graph state.
type ToolInvocation struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Sequence  int    `json:"sequence"`
}
