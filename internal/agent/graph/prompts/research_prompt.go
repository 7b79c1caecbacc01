package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/alexwox/research-assistant/internal/agent/graph/tools"
)

//go:embed template/research_prompt.txt
var researchSystemPrompt string

// RenderResearchSystem renders the research system prompt via the Eino
// prompt component. Routing through the component triggers prompt callbacks;
// the date grounds time-relative queries ("latest news").
func RenderResearchSystem(ctx context.Context, today time.Time) (string, error) {
	// Render known tokens only so markdown braces in the template survive
	content := strings.NewReplacer(
		"{TODAY}", today.Format("2006-01-02"),
		"{KNOWLEDGE_TOOL}", tools.ToolKnowledgeLookup,
		"{SEARCH_TOOL}", tools.ToolWebSearch,
	).Replace(researchSystemPrompt)

	// Wrap via Eino prompt component using a messages placeholder to emit callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("research prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("research prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
