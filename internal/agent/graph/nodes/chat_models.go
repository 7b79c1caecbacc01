package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/alexwox/research-assistant/internal/agent/model"
	logx "github.com/alexwox/research-assistant/pkg/logger"
)

// SynthesisModelConfig holds the configuration for chat model creation
type SynthesisModelConfig struct {
	APIKey  string
	BaseURL string
	Config  *model.SynthesisModelConfig
}

// SynthesisModel wraps the tool-calling chat model used for research
// synthesis together with its name for cost accounting.
type SynthesisModel struct {
	Model einomodel.ToolCallingChatModel
	Name  string
}

// NewSynthesisModel creates the synthesis chat model with the given configuration
func NewSynthesisModel(ctx context.Context, config SynthesisModelConfig) (*SynthesisModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Config.Model,
		Temperature: &config.Config.Temperature,
		MaxTokens:   &config.Config.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating synthesis model")
		return nil, fmt.Errorf("error creating synthesis model: %w", err)
	}

	return &SynthesisModel{
		Model: chatModel,
		Name:  config.Config.Model,
	}, nil
}

// BindResearchTools binds the research tool schemas to the chat model.
func (sm *SynthesisModel) BindResearchTools(ctx context.Context, tools []*schema.ToolInfo) error {
	bound, err := sm.Model.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	sm.Model = bound

	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to synthesis model")
	return nil
}
