package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/event"
	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/internal/run"
	"github.com/weft-ai/weft/internal/session"
	"github.com/weft-ai/weft/internal/storage"
	"github.com/weft-ai/weft/internal/tool"
	"github.com/weft-ai/weft/pkg/types"
)

type scriptedStream struct {
	ctx     context.Context
	release <-chan struct{}
	chunks  []*provider.Chunk
	pos     int
}

func (s *scriptedStream) Recv() (*provider.Chunk, error) {
	if s.release != nil {
		select {
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		case <-s.release:
		}
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *scriptedStream) Close() {}

type fakeStreamer struct {
	chunks []*provider.Chunk
	block  chan struct{}
}

func (f *fakeStreamer) Stream(ctx context.Context, _ *provider.CompletionRequest) (run.ChunkSource, error) {
	var release <-chan struct{}
	if f.block != nil {
		release = f.block
	}
	return &scriptedStream{ctx: ctx, release: release, chunks: f.chunks}, nil
}

func answerChunks(text string) []*provider.Chunk {
	finish := "stop"
	return []*provider.Chunk{
		{Choices: []provider.Choice{{Delta: provider.Delta{Content: text}}}},
		{Choices: []provider.Choice{{FinishReason: &finish}}},
	}
}

func newTestServer(t *testing.T, streamer run.Streamer) (*Server, *event.Bus) {
	t.Helper()

	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })

	registry := tool.NewRegistry()
	svc := session.NewService(session.Deps{
		Streamer: streamer,
		Tools:    registry,
		Adapter:  tool.NewAdapter(registry),
		Caps:     capability.NewSource(map[string]types.AgentConfig{capability.DefaultAgent: {}}, bus),
		Store:    storage.NewStore(t.TempDir()),
		Bus:      bus,
		Run:      run.Config{Model: "test-model", MaxIterations: 5},
	})
	t.Cleanup(svc.Close)

	return New(DefaultConfig(), svc, bus), bus
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, srv *Server) types.Session {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/session", map[string]string{"title": "test"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sess types.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess
}

func waitEvent(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func subscribe(bus *event.Bus, et event.EventType) <-chan event.Event {
	ch := make(chan event.Event, 16)
	bus.Subscribe(et, func(e event.Event) { ch <- e })
	return ch
}

func TestSessionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStreamer{})

	sess := createSession(t, srv)
	assert.Equal(t, "test", sess.Title)

	w := doJSON(t, srv, http.MethodGet, "/session/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []types.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = doJSON(t, srv, http.MethodDelete, "/session/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStreamer{})

	w := doJSON(t, srv, http.MethodGet, "/session/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestSendMessageRunsToCompletion(t *testing.T) {
	srv, bus := newTestServer(t, &fakeStreamer{chunks: answerChunks("the answer")})
	sess := createSession(t, srv)

	done := subscribe(bus, event.RunCompleted)

	w := doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/message", map[string]string{"text": "question"})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, sess.ID, accepted["sessionID"])
	require.NotEmpty(t, accepted["requestID"])

	completed := waitEvent(t, done).Data.(event.RunCompletedData)
	assert.Equal(t, accepted["requestID"], completed.RequestID)

	w = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID+"/message", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []types.MessageRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "the answer", msgs[1].Message.Content)

	w = doJSON(t, srv, http.MethodGet, "/session/"+sess.ID+"/record", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []types.IterationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, types.RunCompleted, recs[0].Status)
}

func TestSendMessageValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeStreamer{})
	sess := createSession(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/message", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/session/unknown/message", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageConflictWhileRunning(t *testing.T) {
	block := make(chan struct{})
	srv, bus := newTestServer(t, &fakeStreamer{chunks: answerChunks("ok"), block: block})
	sess := createSession(t, srv)

	done := subscribe(bus, event.RunCompleted)

	w := doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/message", map[string]string{"text": "first"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/message", map[string]string{"text": "second"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRunActive, resp.Error.Code)

	close(block)
	waitEvent(t, done)
}

func TestAbortCancelsRun(t *testing.T) {
	block := make(chan struct{})
	srv, bus := newTestServer(t, &fakeStreamer{chunks: answerChunks("ok"), block: block})
	sess := createSession(t, srv)

	cancelled := subscribe(bus, event.RunCancelled)

	w := doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/message", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))

	w = doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/abort", map[string]string{"requestID": accepted["requestID"]})
	assert.Equal(t, http.StatusOK, w.Code)

	got := waitEvent(t, cancelled).Data.(event.RunCancelledData)
	assert.Equal(t, accepted["requestID"], got.RequestID)

	// aborting again is a safe no-op
	w = doJSON(t, srv, http.MethodPost, "/session/"+sess.ID+"/abort", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEventStream(t *testing.T) {
	srv, bus := newTestServer(t, &fakeStreamer{})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/event?sessionID=ses_1", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	readData := func() wireEvent {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var e wireEvent
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &e))
				return e
			}
		}
	}

	assert.Equal(t, event.EventType("server.connected"), readData().Type)

	// the handler subscribes right after the connected event; give it a
	// moment before publishing
	time.Sleep(100 * time.Millisecond)

	// filtered out: different session
	bus.PublishSync(event.Event{Type: event.ContentDelta, Data: event.ContentDeltaData{
		SessionID: "ses_other", RequestID: "r1", Delta: "nope",
	}})
	// delivered: matching session
	bus.PublishSync(event.Event{Type: event.ContentDelta, Data: event.ContentDeltaData{
		SessionID: "ses_1", RequestID: "r2", Delta: "yes",
	}})

	got := readData()
	assert.Equal(t, event.ContentDelta, got.Type)
	props, err := json.Marshal(got.Properties)
	require.NoError(t, err)
	assert.Contains(t, string(props), `"yes"`)
	assert.Contains(t, string(props), `"ses_1"`)
}
