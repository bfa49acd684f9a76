package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/event"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/internal/run"
	"github.com/weft-ai/weft/internal/storage"
	"github.com/weft-ai/weft/internal/tool"
	"github.com/weft-ai/weft/pkg/types"
)

var (
	// ErrRunActive rejects a second concurrent run on one channel.
	ErrRunActive = errors.New("a run is already active for this session")

	// ErrChannelClosed rejects starts on a torn-down channel.
	ErrChannelClosed = errors.New("session channel is closed")
)

// Deps are the collaborators a channel needs to execute runs.
type Deps struct {
	Streamer run.Streamer
	Tools    run.ToolSource
	Adapter  *tool.Adapter
	Caps     run.CapabilitySource
	Store    *storage.Store
	Bus      *event.Bus
	Run      run.Config
}

// Channel serializes runs for one session. It owns the session's
// conversation context exclusively while a run is active.
type Channel struct {
	sessionID string
	deps      Deps
	log       zerolog.Logger

	mu     sync.Mutex
	conv   *run.Conversation
	active *activeRun
	closed bool
}

type activeRun struct {
	requestID string
	cancel    context.CancelFunc
	done      chan struct{}
}

func newChannel(sessionID, agent string, history []types.MessageRecord, deps Deps) *Channel {
	conv := run.NewConversation(agent)
	for _, rec := range history {
		conv.Append(rec.Message)
	}
	return &Channel{
		sessionID: sessionID,
		deps:      deps,
		conv:      conv,
		log:       logging.For("session").With().Str("sessionID", sessionID).Logger(),
	}
}

// Start begins a run for userTurn under requestID. The user turn is
// persisted before the run launches; the run itself executes on its own
// goroutine and reports through the bus, every event tagged with the session
// and request ids. At most one run may be active per channel.
func (c *Channel) Start(ctx context.Context, requestID, userTurn string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.active != nil {
		c.mu.Unlock()
		return ErrRunActive
	}

	userMsg := types.Message{Role: types.RoleUser, Content: userTurn}
	c.conv.Append(userMsg)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	active := &activeRun{requestID: requestID, cancel: cancel, done: make(chan struct{})}
	c.active = active
	c.mu.Unlock()

	if err := c.deps.Store.AppendMessage(ctx, &types.MessageRecord{
		ID:        ulid.Make().String(),
		SessionID: c.sessionID,
		Message:   userMsg,
		Created:   time.Now().UnixMilli(),
	}); err != nil {
		cancel()
		c.mu.Lock()
		c.conv.Messages = c.conv.Messages[:len(c.conv.Messages)-1]
		c.active = nil
		c.mu.Unlock()
		close(active.done)
		return fmt.Errorf("persist user turn: %w", err)
	}

	c.deps.Bus.PublishSync(event.Event{Type: event.RunStarted, Data: event.RunStartedData{
		SessionID: c.sessionID,
		RequestID: requestID,
	}})

	go c.execute(runCtx, active)
	return nil
}

// Cancel signals the run bound to requestID. Unknown and finished ids are a
// safe no-op, as is cancelling the same run twice.
func (c *Channel) Cancel(requestID string) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil && active.requestID == requestID {
		active.cancel()
	}
}

// CancelActive cancels whatever run is in flight, if any.
func (c *Channel) CancelActive() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil {
		active.cancel()
	}
}

// ActiveRequest returns the in-flight request id, if a run is active.
func (c *Channel) ActiveRequest() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return "", false
	}
	return c.active.requestID, true
}

// Close cancels any active run, waits for it to wind down, and rejects
// further starts.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	active := c.active
	c.mu.Unlock()

	if active != nil {
		active.cancel()
		<-active.done
	}
}

func (c *Channel) execute(ctx context.Context, active *activeRun) {
	defer func() {
		active.cancel()
		c.mu.Lock()
		if c.active == active {
			c.active = nil
		}
		c.mu.Unlock()
		close(active.done)
	}()

	requestID := active.requestID
	executor := runExecutor{
		adapter: c.deps.Adapter,
		base:    tool.Context{SessionID: c.sessionID, RequestID: requestID, Agent: c.conv.Agent},
	}

	ctrl := run.NewController(c.deps.Streamer, c.deps.Tools, executor, c.deps.Caps, c.deps.Run)
	var iterations int
	ctrl.OnIteration = func(iteration int, result *run.IterationResult) {
		iterations = iteration + 1
		c.persistRecord(requestID, iteration, result, types.RunCompleted, "")
	}

	result, err := ctrl.Run(ctx, c.conv, c.sink(requestID))

	switch {
	case err == nil:
		msg := result.AssistantMessage()
		c.persistMessage(msg)
		c.deps.Bus.PublishSync(event.Event{Type: event.RunCompleted, Data: event.RunCompletedData{
			SessionID: c.sessionID,
			RequestID: requestID,
			Message:   &msg,
			Usage:     result.Usage,
		}})

	case ctrl.State() == run.StateCancelled:
		// distinct terminal status, no error recorded
		c.persistRecord(requestID, iterations, nil, types.RunCancelled, "")
		c.deps.Bus.PublishSync(event.Event{Type: event.RunCancelled, Data: event.RunCancelledData{
			SessionID: c.sessionID,
			RequestID: requestID,
		}})

	default:
		c.log.Error().Err(err).Str("requestID", requestID).Msg("run failed")
		c.persistRecord(requestID, iterations, nil, types.RunFailed, err.Error())
		c.deps.Bus.PublishSync(event.Event{Type: event.RunFailed, Data: event.RunFailedData{
			SessionID: c.sessionID,
			RequestID: requestID,
			Error:     err.Error(),
		}})
	}
}

// sink forwards incremental run events to the bus, tagged with the session
// and request ids. Terminal events are published by execute after
// persistence, so subscribers never see a completion before its message is
// stored.
func (c *Channel) sink(requestID string) run.Sink {
	return run.SinkFunc(func(e run.Event) {
		switch e.Type {
		case run.EventContentDelta:
			c.deps.Bus.PublishSync(event.Event{Type: event.ContentDelta, Data: event.ContentDeltaData{
				SessionID: c.sessionID, RequestID: requestID, Delta: e.Delta,
			}})
		case run.EventReasoningDelta:
			c.deps.Bus.PublishSync(event.Event{Type: event.ReasoningDelta, Data: event.ContentDeltaData{
				SessionID: c.sessionID, RequestID: requestID, Delta: e.Delta,
			}})
		case run.EventToolCall:
			tc := e.ToolCall
			c.deps.Bus.PublishSync(event.Event{Type: event.ToolCallUpdated, Data: event.ToolCallUpdatedData{
				SessionID: c.sessionID,
				RequestID: requestID,
				Index:     tc.Index,
				Status:    tc.Status,
				ToolCall:  types.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
			}})
		case run.EventImage:
			c.deps.Bus.PublishSync(event.Event{Type: event.ImageAdded, Data: event.ImageAddedData{
				SessionID: c.sessionID, RequestID: requestID, Image: *e.Image,
			}})
		}
	})
}

func (c *Channel) persistMessage(msg types.Message) {
	rec := &types.MessageRecord{
		ID:        ulid.Make().String(),
		SessionID: c.sessionID,
		Message:   msg,
		Created:   time.Now().UnixMilli(),
	}
	if err := c.deps.Store.AppendMessage(context.Background(), rec); err != nil {
		c.log.Error().Err(err).Msg("persist assistant message")
	}
}

func (c *Channel) persistRecord(requestID string, iteration int, result *run.IterationResult, status, errText string) {
	rec := &types.IterationRecord{
		ID:        ulid.Make().String(),
		SessionID: c.sessionID,
		RequestID: requestID,
		Iteration: iteration,
		Status:    status,
		Error:     errText,
		Created:   time.Now().UnixMilli(),
	}
	if result != nil {
		rec.Model = result.Model
		rec.Provider = result.Provider
		rec.FinishReason = result.FinishReason
		rec.ToolCalls = result.ToolCalls
		rec.Usage = result.Usage
		rec.TimeToFirstEvent = result.TimeToFirstEvent.Milliseconds()
		rec.TotalDuration = result.TotalDuration.Milliseconds()
	}
	if err := c.deps.Store.AppendRecord(context.Background(), rec); err != nil {
		c.log.Error().Err(err).Msg("persist iteration record")
	}
}

// runExecutor binds the tool adapter to one run's identity.
type runExecutor struct {
	adapter *tool.Adapter
	base    tool.Context
}

func (e runExecutor) Execute(ctx context.Context, call types.ToolCall, snap capability.Snapshot) string {
	toolCtx := e.base
	toolCtx.CallID = call.ID
	return e.adapter.Execute(ctx, call, snap, &toolCtx)
}
