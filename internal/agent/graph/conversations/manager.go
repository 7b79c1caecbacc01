package conversations

import (
	"context"

	"github.com/alexwox/research-assistant/internal/agent/model"

	"github.com/cloudwego/eino/schema"
)

// MessagesManager builds model context from the stored transcript and
// persists completed exchanges. The current query is never persisted while a
// run is in flight: a failed run contributes nothing to the transcript.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// BuildSynthesisContext assembles the message set for a synthesis run:
// system prompt, the most recent transcript window, then the new query.
func (cm *MessagesManager) BuildSynthesisContext(ctx context.Context, conversationID, systemPrompt, query string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, len(history.Messages)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, trimTail(history.Messages, cm.maxTurns)...)
	messages = append(messages, schema.UserMessage(query))

	return messages, nil
}

// SaveExchange appends the completed user/assistant pair to the transcript.
func (cm *MessagesManager) SaveExchange(ctx context.Context, conversationID, query, answer string) error {
	if err := cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query)); err != nil {
		return err
	}
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(answer, nil))
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
