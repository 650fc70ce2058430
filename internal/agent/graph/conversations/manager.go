package conversations

import (
	"github.com/cloudwego/eino/schema"
)

// Manager assembles model-facing message contexts from the checkpointed
// conversation history. Classification only needs the recent tail of the
// dialogue, so it gets a trimmed window; response generation sees the full
// history.
type Manager struct {
	classifierMaxMessages int
}

func NewManager(classifierMaxMessages int) *Manager {
	if classifierMaxMessages <= 0 {
		classifierMaxMessages = 5
	}
	return &Manager{classifierMaxMessages: classifierMaxMessages}
}

// ClassifierContext builds system prompt + recent history for structured
// classification and extraction calls. The latest user message is always
// included; older messages are trimmed to the configured window.
func (m *Manager) ClassifierContext(system string, history []*schema.Message) []*schema.Message {
	recent := trimTail(history, m.classifierMaxMessages)
	messages := make([]*schema.Message, 0, len(recent)+1)
	messages = append(messages, schema.SystemMessage(system))
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// ResponseContext builds the full sanitized history for reply synthesis;
// the generator prepends its own system prompt.
func (m *Manager) ResponseContext(history []*schema.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		if msg == nil || msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// trimTail keeps the most recent maxMessages messages, copying so callers
// can append without aliasing the checkpointed history.
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	if len(messages) <= maxMessages {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxMessages:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
