package run

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/pkg/types"
)

const (
	// DefaultMaxIterations bounds the tool-calling loop when neither the
	// controller config nor the agent profile sets a cap.
	DefaultMaxIterations = 10

	// MaxRetries is the maximum number of retries for transient API errors.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
	// RetryMaxElapsedTime is the maximum total time for retries.
	RetryMaxElapsedTime = 2 * time.Minute
)

// ErrIterationLimit ends a run that hit the iteration cap while the model
// was still requesting tools. The loop never exits silently.
var ErrIterationLimit = errors.New("iteration limit exceeded")

// State is the run lifecycle state.
type State int

const (
	StateRunning State = iota
	StateToolsPending
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateToolsPending:
		return "tools_pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChunkSource is the decoded chunk sequence of one iteration.
type ChunkSource interface {
	Recv() (*provider.Chunk, error)
	Close()
}

// Streamer starts one streaming completion request.
type Streamer interface {
	Stream(ctx context.Context, req *provider.CompletionRequest) (ChunkSource, error)
}

// StreamerFunc adapts a function to the Streamer interface.
type StreamerFunc func(ctx context.Context, req *provider.CompletionRequest) (ChunkSource, error)

// Stream implements Streamer.
func (f StreamerFunc) Stream(ctx context.Context, req *provider.CompletionRequest) (ChunkSource, error) {
	return f(ctx, req)
}

// ToolExecutor runs one model-issued tool call and returns its result text.
// Failures must come back as error-shaped text, not Go errors.
type ToolExecutor interface {
	Execute(ctx context.Context, call types.ToolCall, snap capability.Snapshot) string
}

// CapabilitySource hands out per-agent capability snapshots.
type CapabilitySource interface {
	Snapshot(agent string) capability.Snapshot
}

// ToolSource provides the tool schemas offered to the model.
type ToolSource interface {
	Defs(filter func(toolID string) bool) []provider.ToolDef
}

// Config holds controller configuration.
type Config struct {
	Model         string
	MaxIterations int
	MaxTokens     int
	Temperature   float64
}

// Controller runs the iteration state machine for one conversation at a
// time. It owns the conversation exclusively for the duration of Run.
type Controller struct {
	streamer  Streamer
	toolDefs  ToolSource
	executor  ToolExecutor
	caps      CapabilitySource
	config    Config
	state     State
	log       zerolog.Logger

	// OnIteration, when set, receives every iteration's result in order.
	// The session layer uses it to persist append-only iteration records.
	OnIteration func(iteration int, result *IterationResult)
}

// NewController creates a controller.
func NewController(streamer Streamer, toolDefs ToolSource, executor ToolExecutor, caps CapabilitySource, cfg Config) *Controller {
	return &Controller{
		streamer: streamer,
		toolDefs: toolDefs,
		executor: executor,
		caps:     caps,
		config:   cfg,
		state:    StateRunning,
		log:      logging.For("run"),
	}
}

// State returns the current lifecycle state. Meaningful once Run returns.
func (c *Controller) State() State {
	return c.state
}

// newRetryBackoff creates an exponential backoff with jitter for transient
// API errors, bounded by MaxRetries and context cancellation.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = RetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// retryable reports whether an iteration error is worth retrying.
// Client errors other than rate limits and timeouts are final.
func retryable(err error) bool {
	var te *provider.TransportError
	if errors.As(err, &te) {
		switch {
		case te.Status == http.StatusTooManyRequests, te.Status == http.StatusRequestTimeout:
			return true
		case te.Status >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// Run executes the full multi-iteration loop for one user turn. It returns
// the final iteration's result on completion, ErrIterationLimit when the cap
// is hit with tools still pending, the context error on cancellation, or the
// fatal transport error otherwise.
//
// A cancelled run restores the conversation to its pre-run state and emits a
// cancelled event instead of done or error, so no assistant turn survives.
func (c *Controller) Run(ctx context.Context, conv *Conversation, sink Sink) (*IterationResult, error) {
	if sink == nil {
		sink = NopSink
	}

	initial := conv.snapshot()
	c.state = StateRunning
	retry := newRetryBackoff(ctx)
	iteration := 0

	for {
		if ctx.Err() != nil {
			return nil, c.cancel(ctx, conv, initial, sink)
		}

		// Capability snapshot: read once per iteration, never mid-iteration,
		// so concurrent config changes cannot tear an in-flight request.
		snap := c.caps.Snapshot(conv.Agent)

		maxIterations := c.config.MaxIterations
		if snap.MaxIterations > 0 {
			maxIterations = snap.MaxIterations
		}
		if maxIterations <= 0 {
			maxIterations = DefaultMaxIterations
		}
		if iteration >= maxIterations {
			c.log.Warn().Int("iterations", iteration).Msg("iteration limit exceeded with tools still pending")
			c.state = StateFailed
			sink.Emit(Event{Type: EventError, Err: ErrIterationLimit})
			return nil, ErrIterationLimit
		}

		conv.SetSystem(snap.SystemPrompt)

		req := &provider.CompletionRequest{
			Model:       c.config.Model,
			Messages:    conv.Messages,
			Tools:       c.toolDefs.Defs(snap.ToolEnabled),
			MaxTokens:   c.config.MaxTokens,
			Temperature: c.config.Temperature,
		}

		result, err := c.runIteration(ctx, req, sink)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.cancel(ctx, conv, initial, sink)
			}
			next := retry.NextBackOff()
			if next == backoff.Stop || !retryable(err) {
				c.state = StateFailed
				sink.Emit(Event{Type: EventError, Err: err})
				return nil, err
			}
			c.log.Warn().Err(err).Dur("backoff", next).Msg("iteration failed, retrying")
			time.Sleep(next)
			continue
		}
		retry.Reset()

		if c.OnIteration != nil {
			c.OnIteration(iteration, result)
		}

		if result.HasToolCalls() {
			c.state = StateToolsPending
			conv.Append(result.AssistantMessage())

			// Tools run sequentially in index order so results land in the
			// conversation deterministically.
			for _, call := range result.ToolCalls {
				if ctx.Err() != nil {
					return nil, c.cancel(ctx, conv, initial, sink)
				}
				output := c.executor.Execute(ctx, call, snap)
				conv.Append(types.Message{
					Role:       types.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
				})
			}

			iteration++
			c.state = StateRunning
			continue
		}

		// No tool calls: this iteration is the final answer.
		conv.Append(result.AssistantMessage())
		c.state = StateCompleted
		sink.Emit(Event{Type: EventDone, Result: result})
		return result, nil
	}
}

// runIteration sends one request and folds its chunk stream into a result.
func (c *Controller) runIteration(ctx context.Context, req *provider.CompletionRequest, sink Sink) (*IterationResult, error) {
	stream, err := c.streamer.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	acc := NewAccumulator(sink)
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		acc.Add(chunk)
	}
	return acc.Finalize(), nil
}

// cancel restores the conversation, records the terminal state, and emits
// the cancelled signal. Neither done nor error is reported for a cancelled
// run, so no spurious assistant message can be persisted.
func (c *Controller) cancel(ctx context.Context, conv *Conversation, initial []types.Message, sink Sink) error {
	conv.restore(initial)
	c.state = StateCancelled
	sink.Emit(Event{Type: EventCancelled})
	return ctx.Err()
}
