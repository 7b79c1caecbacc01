package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/alexwox/research-assistant/internal/knowledge"
	"github.com/alexwox/research-assistant/internal/search"
)

// Tool names are the stable wire contract exposed to the model. Changing
// them breaks recorded transcripts and the system prompt.
const (
	ToolKnowledgeLookup = "knowledge_lookup"
	ToolWebSearch       = "web_search"
)

const defaultToolTimeout = 30 * time.Second

// SearchService is the narrow interface the web_search tool needs.
type SearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// KnowledgeService is the narrow interface the knowledge_lookup tool needs.
type KnowledgeService interface {
	Query(ctx context.Context, query string) (*knowledge.Excerpt, error)
}

// Config carries the tool dependencies and runtime limits.
type Config struct {
	Search           SearchService
	Knowledge        KnowledgeService
	SearchMaxResults int
	// Timeout bounds each individual tool call; expiry surfaces as a tool
	// failure.
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultToolTimeout
	}
	return c.Timeout
}

// GetResearchTools returns the fixed dispatch table bound to the synthesis
// model: knowledge lookup first, web search second.
func GetResearchTools(cfg Config) []tool.BaseTool {
	return []tool.BaseTool{
		createKnowledgeLookupTool(cfg),
		createWebSearchTool(cfg),
	}
}

// GetToolInfos collects the schema description for each tool so it can be
// bound to the chat model.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
