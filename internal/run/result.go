package run

import (
	"time"

	"github.com/weft-ai/weft/pkg/types"
)

// IterationResult is the materialized outcome of one request/response cycle.
type IterationResult struct {
	Content          string
	Reasoning        string
	ReasoningDetails []types.ReasoningDetail

	// ToolCalls holds the completed tool calls ordered by delta index.
	ToolCalls []types.ToolCall

	Images []types.Image
	Usage  *types.Usage

	// FinishReason is latched to the last non-null value seen across chunks.
	FinishReason string

	// Model and Provider hold the last non-empty values seen.
	Model    string
	Provider string

	TimeToFirstEvent time.Duration
	TotalDuration    time.Duration
}

// HasToolCalls reports whether the iteration requested tool execution.
func (r *IterationResult) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// AssistantMessage converts the result into an assistant conversation message.
func (r *IterationResult) AssistantMessage() types.Message {
	return types.Message{
		Role:      types.RoleAssistant,
		Content:   r.Content,
		Reasoning: r.Reasoning,
		ToolCalls: r.ToolCalls,
		Images:    r.Images,
	}
}
