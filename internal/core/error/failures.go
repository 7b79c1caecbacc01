package errx

import "fmt"

// ToolFailure is raised when a research tool (web search, knowledge lookup)
// fails for reasons other than "no information found": network errors, bad
// credentials, unreadable corpus files, timeouts.
type ToolFailure struct {
	Tool string
	Err  error
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolFailure) Unwrap() error {
	return e.Err
}

// NewToolFailure wraps a tool error with its tool name.
func NewToolFailure(tool string, err error) *ToolFailure {
	return &ToolFailure{Tool: tool, Err: err}
}

// SynthesisFailure is raised when the model exhausted the retry budget
// without producing a payload that validates as a research result. It
// carries the last invalid payload for diagnostics.
type SynthesisFailure struct {
	Attempts    int
	LastPayload string
}

func (e *SynthesisFailure) Error() string {
	return fmt.Sprintf("synthesis failed validation after %d attempts", e.Attempts)
}

// NewSynthesisFailure records an exhausted synthesis retry budget.
func NewSynthesisFailure(attempts int, lastPayload string) *SynthesisFailure {
	return &SynthesisFailure{Attempts: attempts, LastPayload: lastPayload}
}

// ConfigurationFailure is raised at startup when required configuration is
// missing or malformed. It is unrecoverable; the process does not start.
type ConfigurationFailure struct {
	Err error
}

func (e *ConfigurationFailure) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigurationFailure) Unwrap() error {
	return e.Err
}

// NewConfigurationFailure wraps a startup configuration error.
func NewConfigurationFailure(err error) *ConfigurationFailure {
	return &ConfigurationFailure{Err: err}
}
