package model

import (
	"fmt"
	"strings"
)

// ResearchResult is the structured answer the model must produce. The JSON
// field names are part of the contract between the system prompt and the
// result parser.
type ResearchResult struct {
	// Title is a short plain-text heading for the query topic. May be empty
	// when insufficient information was found.
	Title string `json:"research_title"`
	// Body is the main section answering the query. It is never empty: when
	// no sufficient information was found it explains the shortfall.
	Body string `json:"research_main"`
	// Bullets summarize the answer. May be empty.
	Bullets string `json:"research_bullets"`
}

// Validate enforces the result shape invariant: the body must carry text
// even when title and bullets are empty.
func (r *ResearchResult) Validate() error {
	if strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("research_main must not be empty")
	}
	return nil
}

// Render concatenates title, body and bullets into the markdown shown to
// the user, separated by blank lines. Empty sections are skipped.
func (r *ResearchResult) Render() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Title, r.Body, r.Bullets} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, "\n\n")
}

// SynthesisOutcome is the terminal output of the research graph. Valid
// outcomes carry a Result; invalid ones carry the raw payload that failed
// validation after the retry budget was spent.
type SynthesisOutcome struct {
	Result     *ResearchResult
	Valid      bool
	Attempts   int
	RawPayload string
}
