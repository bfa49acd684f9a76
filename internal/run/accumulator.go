package run

import (
	"sort"
	"strings"
	"time"

	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/pkg/types"
)

// toolCallAccumulator assembles one tool call from its fragments. The id and
// name stick once set; arguments grow by concatenation in arrival order.
type toolCallAccumulator struct {
	id   string
	name string
	args strings.Builder
}

// Accumulator folds the chunk sequence of one iteration into a single
// IterationResult, emitting observer events as deltas arrive.
type Accumulator struct {
	sink Sink

	content          strings.Builder
	reasoning        strings.Builder
	reasoningDetails []types.ReasoningDetail
	toolCalls        map[int]*toolCallAccumulator
	images           []types.Image
	usage            *types.Usage
	finishReason     string
	model            string
	provider         string

	started    time.Time
	firstEvent time.Duration
	sawEvent   bool
}

// NewAccumulator creates an accumulator for one iteration. The sink receives
// incremental events in arrival order; pass NopSink to disable.
func NewAccumulator(sink Sink) *Accumulator {
	if sink == nil {
		sink = NopSink
	}
	return &Accumulator{
		sink:      sink,
		toolCalls: make(map[int]*toolCallAccumulator),
		started:   time.Now(),
	}
}

// markFirstEvent stamps time-to-first-event on the first observable delta.
func (a *Accumulator) markFirstEvent() {
	if !a.sawEvent {
		a.sawEvent = true
		a.firstEvent = time.Since(a.started)
	}
}

// Add folds one chunk into the running state.
func (a *Accumulator) Add(chunk *provider.Chunk) {
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if chunk.Provider != "" {
		a.provider = chunk.Provider
	}
	if chunk.Usage != nil {
		usage := *chunk.Usage
		a.usage = &usage
	}

	for _, choice := range chunk.Choices {
		if choice.FinishReason != nil {
			a.finishReason = *choice.FinishReason
		}
		a.addDelta(choice.Delta)
	}
}

func (a *Accumulator) addDelta(delta provider.Delta) {
	if delta.Content != "" {
		a.markFirstEvent()
		a.content.WriteString(delta.Content)
		a.sink.Emit(Event{Type: EventContentDelta, Delta: delta.Content})
	}

	if delta.Reasoning != "" {
		a.markFirstEvent()
		a.reasoning.WriteString(delta.Reasoning)
		a.sink.Emit(Event{Type: EventReasoningDelta, Delta: delta.Reasoning})
	}

	// The provider sends reasoning_details complete each time, not as a
	// diff: the last non-empty list wins.
	if len(delta.ReasoningDetails) > 0 {
		a.reasoningDetails = delta.ReasoningDetails
	}

	for _, tc := range delta.ToolCalls {
		if tc.Index < 0 {
			continue
		}
		a.markFirstEvent()

		entry, ok := a.toolCalls[tc.Index]
		if !ok {
			entry = &toolCallAccumulator{}
			a.toolCalls[tc.Index] = entry
		}

		if tc.ID != "" {
			entry.id = tc.ID
		}
		if tc.Function != nil {
			if tc.Function.Name != "" {
				entry.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				entry.args.WriteString(tc.Function.Arguments)
			}
		}

		a.sink.Emit(Event{Type: EventToolCall, ToolCall: &ToolCallEvent{
			Index:     tc.Index,
			Status:    ToolCallStreaming,
			ID:        entry.id,
			Name:      entry.name,
			Arguments: entry.args.String(),
		}})
	}

	for _, img := range delta.Images {
		a.markFirstEvent()
		a.images = append(a.images, img)
		image := img
		a.sink.Emit(Event{Type: EventImage, Image: &image})
	}
}

// Finalize closes the iteration: every accumulated tool call is announced as
// ready, in index order, and the result is materialized.
func (a *Accumulator) Finalize() *IterationResult {
	total := time.Since(a.started)

	indices := make([]int, 0, len(a.toolCalls))
	for idx := range a.toolCalls {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	toolCalls := make([]types.ToolCall, 0, len(indices))
	for _, idx := range indices {
		entry := a.toolCalls[idx]
		a.sink.Emit(Event{Type: EventToolCall, ToolCall: &ToolCallEvent{
			Index:     idx,
			Status:    ToolCallReady,
			ID:        entry.id,
			Name:      entry.name,
			Arguments: entry.args.String(),
		}})
		toolCalls = append(toolCalls, types.ToolCall{
			ID:        entry.id,
			Name:      entry.name,
			Arguments: entry.args.String(),
		})
	}

	return &IterationResult{
		Content:          a.content.String(),
		Reasoning:        a.reasoning.String(),
		ReasoningDetails: a.reasoningDetails,
		ToolCalls:        toolCalls,
		Images:           a.images,
		Usage:            a.usage,
		FinishReason:     a.finishReason,
		Model:            a.model,
		Provider:         a.provider,
		TimeToFirstEvent: a.firstEvent,
		TotalDuration:    total,
	}
}
