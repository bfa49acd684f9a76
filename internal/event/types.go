package event

import (
	"github.com/weft-ai/weft/pkg/types"
)

// Data payloads for each event type. Every payload carries the session and
// request ids so callers can discard events for stale or superseded requests.

// SessionCreatedData accompanies SessionCreated.
type SessionCreatedData struct {
	Session *types.Session `json:"session"`
}

// SessionDeletedData accompanies SessionDeleted.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// RunStartedData accompanies RunStarted.
type RunStartedData struct {
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
}

// ContentDeltaData accompanies ContentDelta and ReasoningDelta.
type ContentDeltaData struct {
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
	Delta     string `json:"delta"`
}

// ToolCallUpdatedData accompanies ToolCallUpdated. Status is "streaming" while
// fragments are still arriving and "ready" once the iteration's stream is done.
type ToolCallUpdatedData struct {
	SessionID string         `json:"sessionID"`
	RequestID string         `json:"requestID"`
	Index     int            `json:"index"`
	Status    string         `json:"status"`
	ToolCall  types.ToolCall `json:"toolCall"`
}

// ImageAddedData accompanies ImageAdded.
type ImageAddedData struct {
	SessionID string      `json:"sessionID"`
	RequestID string      `json:"requestID"`
	Image     types.Image `json:"image"`
}

// RunCompletedData accompanies RunCompleted.
type RunCompletedData struct {
	SessionID string         `json:"sessionID"`
	RequestID string         `json:"requestID"`
	Message   *types.Message `json:"message"`
	Usage     *types.Usage   `json:"usage,omitempty"`
}

// RunFailedData accompanies RunFailed.
type RunFailedData struct {
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
	Error     string `json:"error"`
}

// RunCancelledData accompanies RunCancelled. Cancellation is a distinct
// terminal signal, never reported as a failure.
type RunCancelledData struct {
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
}

// CapabilityUpdatedData accompanies CapabilityUpdated.
type CapabilityUpdatedData struct {
	Agent string `json:"agent"`
}
