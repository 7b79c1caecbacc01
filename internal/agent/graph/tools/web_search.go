package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	errx "github.com/alexwox/research-assistant/internal/core/error"
	logx "github.com/alexwox/research-assistant/pkg/logger"
)

// ===================================
// Web Search Tool
// ===================================

type WebSearchInput struct {
	Query       string `json:"query"`
	QueryNumber int    `json:"query_number,omitempty"`
}

type WebSearchResult struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

type WebSearchOutput struct {
	Results []WebSearchResult `json:"results"`
}

func createWebSearchTool(cfg Config) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWebSearch,
			Desc: "Search the web for up-to-date information. Write strong keyword queries; issue as many numbered searches as needed and combine the results. Returns ranked snippets with their source URLs. Results are never shown raw to the user.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "Keywords to search for. Prefer specific, information-dense keywords over full sentences.",
					Required: true,
				},
				"query_number": {
					Type: "number",
					Desc: "Sequential number of this query within the current research turn, starting at 0.",
				},
			}),
		},
		func(ctx context.Context, in *WebSearchInput) (*WebSearchOutput, error) {
			if strings.TrimSpace(in.Query) == "" {
				return nil, errx.NewToolFailure(ToolWebSearch, fmt.Errorf("query is required"))
			}

			logx.Info().
				Str("tool", ToolWebSearch).
				Str("query", in.Query).
				Int("query_number", in.QueryNumber).
				Msg("tool invocation")

			ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
			defer cancel()

			results, err := cfg.Search.Search(ctx, in.Query, cfg.SearchMaxResults)
			if err != nil {
				return nil, errx.NewToolFailure(ToolWebSearch, err)
			}

			out := &WebSearchOutput{Results: make([]WebSearchResult, 0, len(results))}
			for _, r := range results {
				out.Results = append(out.Results, WebSearchResult{Source: r.Source, Content: r.Content})
			}
			return out, nil
		},
	)
}
