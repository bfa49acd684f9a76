package run_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/internal/run"
	"github.com/weft-ai/weft/pkg/types"
)

func strPtr(s string) *string { return &s }

func contentChunk(text string) *provider.Chunk {
	return &provider.Chunk{
		Choices: []provider.Choice{{Delta: provider.Delta{Content: text}}},
	}
}

func reasoningChunk(text string) *provider.Chunk {
	return &provider.Chunk{
		Choices: []provider.Choice{{Delta: provider.Delta{Reasoning: text}}},
	}
}

func toolCallChunk(index int, id, name, args string) *provider.Chunk {
	tc := provider.ToolCallDelta{Index: index, ID: id}
	if name != "" || args != "" {
		tc.Function = &provider.FunctionDelta{Name: name, Arguments: args}
	}
	return &provider.Chunk{
		Choices: []provider.Choice{{Delta: provider.Delta{ToolCalls: []provider.ToolCallDelta{tc}}}},
	}
}

func finishChunk(reason string) *provider.Chunk {
	return &provider.Chunk{
		Choices: []provider.Choice{{FinishReason: strPtr(reason)}},
	}
}

var _ = Describe("Accumulator", func() {
	var events []run.Event
	var acc *run.Accumulator

	BeforeEach(func() {
		events = nil
		acc = run.NewAccumulator(run.SinkFunc(func(e run.Event) {
			events = append(events, e)
		}))
	})

	Describe("content and reasoning", func() {
		It("concatenates fragments in arrival order", func() {
			acc.Add(contentChunk("Hel"))
			acc.Add(contentChunk("lo, "))
			acc.Add(contentChunk("world"))

			result := acc.Finalize()
			Expect(result.Content).To(Equal("Hello, world"))
		})

		It("emits one observer event per fragment, in order", func() {
			acc.Add(contentChunk("a"))
			acc.Add(reasoningChunk("think"))
			acc.Add(contentChunk("b"))
			acc.Finalize()

			Expect(events).To(HaveLen(3))
			Expect(events[0].Type).To(Equal(run.EventContentDelta))
			Expect(events[0].Delta).To(Equal("a"))
			Expect(events[1].Type).To(Equal(run.EventReasoningDelta))
			Expect(events[1].Delta).To(Equal("think"))
			Expect(events[2].Delta).To(Equal("b"))
		})

		It("keeps reasoning separate from content", func() {
			acc.Add(reasoningChunk("step one. "))
			acc.Add(reasoningChunk("step two."))
			acc.Add(contentChunk("answer"))

			result := acc.Finalize()
			Expect(result.Reasoning).To(Equal("step one. step two."))
			Expect(result.Content).To(Equal("answer"))
		})
	})

	Describe("tool calls", func() {
		It("assembles fragments keyed by index", func() {
			acc.Add(toolCallChunk(0, "call_1", "get_weather", `{"loca`))
			acc.Add(toolCallChunk(0, "", "", `tion":"SF"}`))

			result := acc.Finalize()
			Expect(result.ToolCalls).To(HaveLen(1))
			Expect(result.ToolCalls[0].ID).To(Equal("call_1"))
			Expect(result.ToolCalls[0].Name).To(Equal("get_weather"))
			Expect(result.ToolCalls[0].Arguments).To(Equal(`{"location":"SF"}`))
		})

		It("keeps id and name once set", func() {
			acc.Add(toolCallChunk(0, "call_1", "clock", ""))
			acc.Add(toolCallChunk(0, "", "", `{}`))

			result := acc.Finalize()
			Expect(result.ToolCalls[0].ID).To(Equal("call_1"))
			Expect(result.ToolCalls[0].Name).To(Equal("clock"))
		})

		It("orders interleaved calls by index", func() {
			acc.Add(toolCallChunk(1, "call_b", "second", `{"b`))
			acc.Add(toolCallChunk(0, "call_a", "first", `{"a`))
			acc.Add(toolCallChunk(1, "", "", `":2}`))
			acc.Add(toolCallChunk(0, "", "", `":1}`))

			result := acc.Finalize()
			Expect(result.ToolCalls).To(HaveLen(2))
			Expect(result.ToolCalls[0].Name).To(Equal("first"))
			Expect(result.ToolCalls[0].Arguments).To(Equal(`{"a":1}`))
			Expect(result.ToolCalls[1].Name).To(Equal("second"))
			Expect(result.ToolCalls[1].Arguments).To(Equal(`{"b":2}`))
		})

		It("announces every call ready at finalize, in index order", func() {
			acc.Add(toolCallChunk(1, "call_b", "second", "{}"))
			acc.Add(toolCallChunk(0, "call_a", "first", "{}"))
			acc.Finalize()

			var ready []run.ToolCallEvent
			for _, e := range events {
				if e.Type == run.EventToolCall && e.ToolCall.Status == run.ToolCallReady {
					ready = append(ready, *e.ToolCall)
				}
			}
			Expect(ready).To(HaveLen(2))
			Expect(ready[0].Index).To(Equal(0))
			Expect(ready[1].Index).To(Equal(1))
		})

		It("reports cumulative state in streaming events", func() {
			acc.Add(toolCallChunk(0, "call_1", "clock", `{"tz"`))
			acc.Add(toolCallChunk(0, "", "", `:"UTC"}`))

			Expect(events).To(HaveLen(2))
			Expect(events[1].ToolCall.Status).To(Equal(run.ToolCallStreaming))
			Expect(events[1].ToolCall.Arguments).To(Equal(`{"tz":"UTC"}`))
		})
	})

	Describe("finish reason", func() {
		It("latches the last non-null value", func() {
			acc.Add(finishChunk("tool_calls"))
			acc.Add(contentChunk("trailing"))

			result := acc.Finalize()
			Expect(result.FinishReason).To(Equal("tool_calls"))
		})

		It("lets a later value replace an earlier one", func() {
			acc.Add(finishChunk("length"))
			acc.Add(finishChunk("stop"))

			result := acc.Finalize()
			Expect(result.FinishReason).To(Equal("stop"))
		})
	})

	Describe("metadata", func() {
		It("replaces reasoning details wholesale", func() {
			acc.Add(&provider.Chunk{Choices: []provider.Choice{{Delta: provider.Delta{
				ReasoningDetails: []types.ReasoningDetail{{Type: "reasoning.text", Text: "partial"}},
			}}}})
			acc.Add(&provider.Chunk{Choices: []provider.Choice{{Delta: provider.Delta{
				ReasoningDetails: []types.ReasoningDetail{
					{Type: "reasoning.text", Text: "full one"},
					{Type: "reasoning.text", Text: "full two"},
				},
			}}}})

			result := acc.Finalize()
			Expect(result.ReasoningDetails).To(HaveLen(2))
			Expect(result.ReasoningDetails[0].Text).To(Equal("full one"))
		})

		It("keeps the last usage and model seen", func() {
			acc.Add(&provider.Chunk{Model: "gpt-x", Provider: "openai"})
			acc.Add(&provider.Chunk{Usage: &types.Usage{PromptTokens: 10, CompletionTokens: 5}})
			acc.Add(&provider.Chunk{Usage: &types.Usage{PromptTokens: 10, CompletionTokens: 9}})

			result := acc.Finalize()
			Expect(result.Model).To(Equal("gpt-x"))
			Expect(result.Provider).To(Equal("openai"))
			Expect(result.Usage.CompletionTokens).To(Equal(9))
		})
	})

	Describe("timing", func() {
		It("stamps time to first event once a delta arrives", func() {
			acc.Add(contentChunk("x"))
			result := acc.Finalize()

			Expect(result.TimeToFirstEvent).To(BeNumerically(">", 0))
			Expect(result.TotalDuration).To(BeNumerically(">=", result.TimeToFirstEvent))
		})

		It("leaves time to first event zero for an empty iteration", func() {
			result := acc.Finalize()

			Expect(result.TimeToFirstEvent).To(BeZero())
			Expect(result.TotalDuration).To(BeNumerically(">", 0))
		})
	})
})
