package domain

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single message sent to the chat service.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatTurn is a prior conversation turn as held by the caller. Loading marks an in-flight
// placeholder that has no real content yet.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	Loading bool     `json:"loading,omitempty"`
}

// ConversationHistory keeps the last max completed user/assistant turns, dropping loading
// placeholders, empty turns and any other role.
func ConversationHistory(turns []ChatTurn, max int) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		if t.Loading || t.Content == "" {
			continue
		}
		if t.Role != RoleUser && t.Role != RoleAssistant {
			continue
		}
		messages = append(messages, ChatMessage{Role: t.Role, Content: t.Content})
	}

	if max >= 0 && len(messages) > max {
		messages = messages[len(messages)-max:]
	}
	return messages
}
