// Package types provides the core data types shared across the weft server.
package types

// Message roles. Every message in a conversation carries exactly one.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Reasoning holds model thinking text for assistant messages. It is kept
	// out of outbound requests and exists for persistence and display.
	Reasoning string `json:"reasoning,omitempty"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Images holds generated images attached to an assistant message.
	Images []Image `json:"images,omitempty"`
}

// ToolCall is a completed model-issued tool invocation.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// Image is a complete generated image as delivered by the provider.
type Image struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// ImageURL carries an image payload, typically a data: URL.
type ImageURL struct {
	URL string `json:"url"`
}

// Usage is the provider token accounting for one iteration.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ReasoningDetail is one entry of the provider's structured reasoning trace.
// The provider sends the list complete on each chunk, not as a diff.
type ReasoningDetail struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Data      string `json:"data,omitempty"`
	Signature string `json:"signature,omitempty"`
}
