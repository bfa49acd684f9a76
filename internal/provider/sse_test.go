package provider

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fragmentReader delivers the underlying bytes in fixed-size fragments to
// exercise arbitrary transport chunking.
type fragmentReader struct {
	data []byte
	pos  int
	size int
}

func (r *fragmentReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func (r *fragmentReader) Close() error { return nil }

func newTestStream(t *testing.T, body io.ReadCloser) *ChunkStream {
	t.Helper()
	return newChunkStream(context.Background(), body, zerolog.Nop())
}

func drain(t *testing.T, s *ChunkStream) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

const sampleStream = "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n" +
	": keep-alive\n" +
	"\n" +
	"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n" +
	"data: [DONE]\n"

func TestChunkStream_Decode(t *testing.T) {
	s := newTestStream(t, io.NopCloser(strings.NewReader(sampleStream)))
	chunks := drain(t, s)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Hel", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "lo", chunks[1].Choices[0].Delta.Content)
	require.NotNil(t, chunks[1].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[1].Choices[0].FinishReason)
}

func TestChunkStream_ChunkingInvariance(t *testing.T) {
	// The same byte sequence split into any fragment size yields the same
	// chunk sequence.
	for _, size := range []int{1, 2, 3, 7, 16, 64, len(sampleStream)} {
		s := newTestStream(t, &fragmentReader{data: []byte(sampleStream), size: size})
		chunks := drain(t, s)

		require.Len(t, chunks, 2, "fragment size %d", size)
		assert.Equal(t, "Hel", chunks[0].Choices[0].Delta.Content, "fragment size %d", size)
		assert.Equal(t, "lo", chunks[1].Choices[0].Delta.Content, "fragment size %d", size)
	}
}

func TestChunkStream_MalformedFrameSkipped(t *testing.T) {
	stream := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {not json at all\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"b\"}}]}\n" +
		"data: [DONE]\n"

	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)

	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Choices[0].Delta.Content)
	assert.Equal(t, "b", chunks[1].Choices[0].Delta.Content)
	assert.Equal(t, 1, s.Skipped())
}

func TestChunkStream_TrailingLineParsedAtEOF(t *testing.T) {
	// No trailing newline: the residual buffered line gets one final parse
	// attempt when the transport ends.
	stream := "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tail\"}}]}"

	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)

	require.Len(t, chunks, 1)
	assert.Equal(t, "tail", chunks[0].Choices[0].Delta.Content)
}

func TestChunkStream_SentinelNotYielded(t *testing.T) {
	stream := "data: [DONE]\n"
	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)
	assert.Empty(t, chunks)
}

func TestChunkStream_FramesAfterSentinelIgnored(t *testing.T) {
	stream := "data: [DONE]\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"late\"}}]}\n"
	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)
	assert.Empty(t, chunks)
}

func TestChunkStream_IgnoresNonDataLines(t *testing.T) {
	stream := ": comment\n" +
		"event: message\n" +
		"id: 42\n" +
		"data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n" +
		"data: [DONE]\n"

	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)

	require.Len(t, chunks, 1)
	assert.Equal(t, "x", chunks[0].Choices[0].Delta.Content)
}

func TestChunkStream_CancelledDistinctFromEOF(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	s := newChunkStream(ctx, pr, zerolog.Nop())

	go func() {
		pw.Write([]byte("data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"a\"}}]}\n"))
	}()

	chunk, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", chunk.Choices[0].Delta.Content)

	cancel()
	pw.CloseWithError(context.Canceled)

	_, err = s.Recv()
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, io.EOF, err)
}

func TestChunkStream_UsageAndMetadata(t *testing.T) {
	stream := "data: {\"model\":\"gpt-x\",\"provider\":\"acme\",\"choices\":[],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":5,\"total_tokens\":15}}\n" +
		"data: [DONE]\n"

	s := newTestStream(t, io.NopCloser(strings.NewReader(stream)))
	chunks := drain(t, s)

	require.Len(t, chunks, 1)
	assert.Equal(t, "gpt-x", chunks[0].Model)
	assert.Equal(t, "acme", chunks[0].Provider)
	require.NotNil(t, chunks[0].Usage)
	assert.Equal(t, 15, chunks[0].Usage.TotalTokens)
}
