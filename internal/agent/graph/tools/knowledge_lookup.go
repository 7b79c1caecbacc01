package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	errx "github.com/alexwox/research-assistant/internal/core/error"
	"github.com/alexwox/research-assistant/internal/knowledge"
	logx "github.com/alexwox/research-assistant/pkg/logger"
)

// ===================================
// Knowledge Lookup Tool
// ===================================

type KnowledgeLookupInput struct {
	Query string `json:"query"`
}

type KnowledgeLookupOutput struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	// Note flags an empty result so the model can acknowledge the gap
	// instead of inventing an answer.
	Note string `json:"note,omitempty"`
}

func createKnowledgeLookupTool(cfg Config) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolKnowledgeLookup,
			Desc: "Look up information in the local document toolkit. Always call this before searching the web. Returns the most relevant excerpt together with its source document.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "The information to look for in the toolkit documents.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *KnowledgeLookupInput) (*KnowledgeLookupOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return nil, errx.NewToolFailure(ToolKnowledgeLookup, fmt.Errorf("query is required"))
			}

			logx.Info().
				Str("tool", ToolKnowledgeLookup).
				Str("query", in.Query).
				Msg("tool invocation")

			ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
			defer cancel()

			excerpt, err := cfg.Knowledge.Query(ctx, in.Query)
			if err != nil {
				// An empty or non-matching corpus is not a failure: the model
				// gets an explicit empty-result signal and explains the
				// shortfall in its answer.
				if errors.Is(err, knowledge.ErrEmptyCorpus) {
					logx.Warn().Str("tool", ToolKnowledgeLookup).Msg("corpus is empty")
					return &KnowledgeLookupOutput{Note: "the local document toolkit is empty; no local information is available"}, nil
				}
				if errors.Is(err, knowledge.ErrNoResults) {
					return &KnowledgeLookupOutput{Note: "no toolkit document matches this query"}, nil
				}
				return nil, errx.NewToolFailure(ToolKnowledgeLookup, err)
			}

			return &KnowledgeLookupOutput{Content: excerpt.Content, Source: excerpt.Source}, nil
		},
	)
}
