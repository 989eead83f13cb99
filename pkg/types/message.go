package types

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // RoleSystem marks instructions sent as the system prompt.
	RoleUser      MessageRole = "user"      // RoleUser marks messages composed by the agent loop on the user's behalf.
	RoleAssistant MessageRole = "assistant" // RoleAssistant marks model responses.
)

// Message is a single role-tagged piece of conversation content as sent to a provider.
type Message struct {
	Role    MessageRole
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}
