package model

// ================ Config ================
type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
	Tools    struct {
		MaxCalls int    `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
		Timeout  string `envconfig:"TOOL_TIMEOUT" default:"30s"`
	}
}

type SynthesisModelConfig struct {
	Model       string  `envconfig:"SYNTHESIS_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SYNTHESIS_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"SYNTHESIS_TEMPERATURE" default:"0.2"`
	MaxRetries  int     `envconfig:"SYNTHESIS_MAX_RETRIES" default:"5"`
}

type SearchConfig struct {
	APIKey     string `envconfig:"TAVILY_API_KEY" required:"true"`
	MaxResults int    `envconfig:"SEARCH_MAX_RESULTS" default:"3"`
	Depth      string `envconfig:"SEARCH_DEPTH" default:"basic"`
}

type CorpusConfig struct {
	Dir string `envconfig:"CORPUS_DIR" default:"custom_data"`
}
