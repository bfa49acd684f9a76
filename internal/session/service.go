package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/event"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/pkg/types"
)

// Service owns the session channels and the records behind them. Channels
// are created lazily from stored history, so a restart picks up where the
// previous process left off.
type Service struct {
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	channels map[string]*Channel
}

// NewService creates a session service.
func NewService(deps Deps) *Service {
	return &Service{
		deps:     deps,
		channels: make(map[string]*Channel),
		log:      logging.For("session"),
	}
}

// Create makes a new session.
func (s *Service) Create(ctx context.Context, title, agent string) (*types.Session, error) {
	if agent == "" {
		agent = capability.DefaultAgent
	}
	if title == "" {
		title = "New Session"
	}

	sess := &types.Session{
		ID:    ulid.Make().String(),
		Title: title,
		Agent: agent,
		Model: s.deps.Run.Model,
		Time:  types.SessionTime{Created: time.Now().UnixMilli()},
	}
	if err := s.deps.Store.PutSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.deps.Bus.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{Session: sess}})
	return sess, nil
}

// Get returns one session. storage.ErrNotFound for unknown ids.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	return s.deps.Store.GetSession(ctx, sessionID)
}

// List returns all sessions, newest first.
func (s *Service) List(ctx context.Context) ([]types.Session, error) {
	return s.deps.Store.ListSessions(ctx)
}

// Delete tears down the session's channel, cancelling any active run, and
// removes the session with its messages and records.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	ch := s.channels[sessionID]
	delete(s.channels, sessionID)
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if err := s.deps.Store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	s.deps.Bus.Publish(event.Event{Type: event.SessionDeleted, Data: event.SessionDeletedData{SessionID: sessionID}})
	return nil
}

// Messages returns a session's persisted messages in order.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]types.MessageRecord, error) {
	return s.deps.Store.Messages(ctx, sessionID)
}

// Records returns a session's iteration records in order.
func (s *Service) Records(ctx context.Context, sessionID string) ([]types.IterationRecord, error) {
	return s.deps.Store.Records(ctx, sessionID)
}

// Start begins a run for a user turn under a caller-supplied request id.
// ErrRunActive when the session already has a run in flight.
func (s *Service) Start(ctx context.Context, sessionID, requestID, text string) error {
	ch, err := s.channel(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := ch.Start(ctx, requestID, text); err != nil {
		return err
	}
	s.touch(ctx, sessionID)
	return nil
}

// Send is Start with a generated request id, returned to the caller for
// event correlation and cancellation.
func (s *Service) Send(ctx context.Context, sessionID, text string) (string, error) {
	requestID := ulid.Make().String()
	if err := s.Start(ctx, sessionID, requestID, text); err != nil {
		return "", err
	}
	return requestID, nil
}

// Cancel signals the run bound to requestID on the given session. A no-op
// for unknown sessions, unknown request ids, and finished runs.
func (s *Service) Cancel(sessionID, requestID string) {
	s.mu.Lock()
	ch := s.channels[sessionID]
	s.mu.Unlock()

	if ch != nil {
		ch.Cancel(requestID)
	}
}

// Abort cancels whatever run is active on the session, if any.
func (s *Service) Abort(sessionID string) {
	s.mu.Lock()
	ch := s.channels[sessionID]
	s.mu.Unlock()

	if ch != nil {
		ch.CancelActive()
	}
}

// Close tears down every channel, cancelling all active runs.
func (s *Service) Close() {
	s.mu.Lock()
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.channels = make(map[string]*Channel)
	s.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
	}
}

// channel returns the session's channel, building it from stored history on
// first use.
func (s *Service) channel(ctx context.Context, sessionID string) (*Channel, error) {
	s.mu.Lock()
	if ch, ok := s.channels[sessionID]; ok {
		s.mu.Unlock()
		return ch, nil
	}
	s.mu.Unlock()

	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.deps.Store.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[sessionID]; ok {
		return ch, nil
	}
	ch := newChannel(sessionID, sess.Agent, history, s.deps)
	s.channels[sessionID] = ch
	return ch, nil
}

func (s *Service) touch(ctx context.Context, sessionID string) {
	sess, err := s.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	now := time.Now().UnixMilli()
	sess.Time.Updated = &now
	if err := s.deps.Store.PutSession(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("sessionID", sessionID).Msg("update session timestamp")
	}
}
