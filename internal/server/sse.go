package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/weft-ai/weft/internal/event"
)

// SSEHeartbeatInterval is the interval between SSE keep-alive comments.
const SSEHeartbeatInterval = 30 * time.Second

// wireEvent is the on-the-wire shape of one bus event.
type wireEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

// sseWriter wraps http.ResponseWriter for SSE output.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", jsonData); err != nil {
		return err
	}
	// ResponseController flushes through middleware wrappers; fall back to
	// the plain flusher when it cannot.
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// events streams bus events over SSE. An optional sessionID query parameter
// narrows the stream to one session; every event still carries its own
// session and request ids so clients can drop stale ones.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent(wireEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	sessionFilter := r.URL.Query().Get("sessionID")

	events := make(chan event.Event, 32)
	unsub := s.bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			s.log.Warn().Str("eventType", string(e.Type)).Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if sessionFilter != "" && sessionIDOf(e) != sessionFilter {
				continue
			}
			if err := sse.writeEvent(wireEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// sessionIDOf extracts the session id an event belongs to. Events without
// one (capability updates) return empty and are only delivered on
// unfiltered streams.
func sessionIDOf(e event.Event) string {
	switch data := e.Data.(type) {
	case event.SessionCreatedData:
		if data.Session != nil {
			return data.Session.ID
		}
	case event.SessionDeletedData:
		return data.SessionID
	case event.RunStartedData:
		return data.SessionID
	case event.ContentDeltaData:
		return data.SessionID
	case event.ToolCallUpdatedData:
		return data.SessionID
	case event.ImageAddedData:
		return data.SessionID
	case event.RunCompletedData:
		return data.SessionID
	case event.RunFailedData:
		return data.SessionID
	case event.RunCancelledData:
		return data.SessionID
	}
	return ""
}
