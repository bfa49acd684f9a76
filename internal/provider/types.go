package provider

import (
	"encoding/json"

	"github.com/weft-ai/weft/pkg/types"
)

// CompletionRequest is one outbound chat-completion request.
type CompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	Tools       []ToolDef       `json:"tools,omitempty"`
	MaxTokens   int             `json:"maxTokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

// ToolDef describes one tool offered to the model.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// Chunk is one decoded SSE frame from the streaming response.
type Chunk struct {
	ID       string       `json:"id,omitempty"`
	Model    string       `json:"model,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Choices  []Choice     `json:"choices,omitempty"`
	Usage    *types.Usage `json:"usage,omitempty"`
}

// Choice is one completion choice within a chunk.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta carries the incremental fields of one chunk. Every field may be
// absent; content and reasoning are fragments to append, reasoning_details
// arrives complete each time, tool_calls are partial fragments keyed by index,
// and images are complete objects.
type Delta struct {
	Content          string                  `json:"content,omitempty"`
	Reasoning        string                  `json:"reasoning,omitempty"`
	ReasoningDetails []types.ReasoningDetail `json:"reasoning_details,omitempty"`
	ToolCalls        []ToolCallDelta         `json:"tool_calls,omitempty"`
	Images           []types.Image           `json:"images,omitempty"`
}

// ToolCallDelta is one partial tool-call fragment.
type ToolCallDelta struct {
	Index    int            `json:"index"`
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Function *FunctionDelta `json:"function,omitempty"`
}

// FunctionDelta carries partial function name and argument fragments.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Wire types for the outbound request body.

type chatRequest struct {
	Model             string        `json:"model"`
	Messages          []chatMessage `json:"messages"`
	Tools             []wireTool    `json:"tools,omitempty"`
	MaxTokens         int           `json:"max_tokens,omitempty"`
	Temperature       float64       `json:"temperature,omitempty"`
	Stream            bool          `json:"stream"`
	ParallelToolCalls bool          `json:"parallel_tool_calls,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireToolDetails `json:"function"`
}

type wireToolDetails struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// convertMessages maps conversation messages to the wire format. Reasoning
// and images never travel back to the provider.
func convertMessages(messages []types.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		cm := chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

// convertTools maps tool definitions to the wire format.
func convertTools(tools []ToolDef) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		out[i] = wireTool{
			Type: "function",
			Function: wireToolDetails{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}
