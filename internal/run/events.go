package run

import (
	"github.com/weft-ai/weft/pkg/types"
)

// EventType identifies the kind of observer event emitted during a run.
type EventType string

const (
	EventContentDelta   EventType = "content"
	EventReasoningDelta EventType = "reasoning"
	EventToolCall       EventType = "tool_call"
	EventImage          EventType = "image"
	EventDone           EventType = "done"
	EventError          EventType = "error"
	EventCancelled      EventType = "cancelled"
)

// Tool-call observer statuses.
const (
	ToolCallStreaming = "streaming"
	ToolCallReady     = "ready"
)

// Event is one observer event. Events are emitted in the exact order the
// underlying deltas arrived; exactly one terminal event (done, error, or
// cancelled) ends the sequence for a run.
type Event struct {
	Type EventType

	// Delta is set for content and reasoning events.
	Delta string

	// ToolCall is set for tool_call events and carries the cumulative state
	// of the accumulating call.
	ToolCall *ToolCallEvent

	// Image is set for image events.
	Image *types.Image

	// Result is set for the done event.
	Result *IterationResult

	// Err is set for the error event.
	Err error
}

// ToolCallEvent is the cumulative state of one accumulating tool call.
type ToolCallEvent struct {
	Index     int
	Status    string
	ID        string
	Name      string
	Arguments string
}

// Sink receives observer events for one run. Implementations must be cheap:
// the loop calls them synchronously to preserve ordering.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// NopSink discards all events.
var NopSink Sink = SinkFunc(func(Event) {})
