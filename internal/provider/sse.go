package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// ChunkStream decodes an SSE byte stream into an ordered, finite,
// non-restartable sequence of chunks. It is pull-based: call Recv until it
// returns io.EOF, then Close.
//
// The transport may deliver bytes in arbitrary-sized fragments; decoding
// happens strictly on newline boundaries, with a trailing partial line held
// back until the next read. A single malformed frame is skipped, never fatal.
type ChunkStream struct {
	ctx     context.Context
	body    io.ReadCloser
	reader  *bufio.Reader
	log     zerolog.Logger
	done    bool // [DONE] sentinel seen; drain to transport EOF
	eof     bool
	skipped int
}

func newChunkStream(ctx context.Context, body io.ReadCloser, log zerolog.Logger) *ChunkStream {
	return &ChunkStream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReader(body),
		log:    log,
	}
}

// Recv returns the next decoded chunk, io.EOF once the stream is exhausted,
// or the context error if the read was aborted by cancellation.
func (s *ChunkStream) Recv() (*Chunk, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		if s.eof {
			return nil, io.EOF
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.eof = true
				// A residual unterminated line gets one final parse
				// attempt before the sequence closes.
				if chunk := s.decodeLine(line); chunk != nil {
					return chunk, nil
				}
				return nil, io.EOF
			}
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			return nil, err
		}

		if chunk := s.decodeLine(line); chunk != nil {
			return chunk, nil
		}
	}
}

// decodeLine parses one line, returning a chunk if the line yields one.
// Non-data lines (comments, keep-alives, blanks) and malformed payloads
// return nil.
func (s *ChunkStream) decodeLine(line string) *Chunk {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil
	}

	if payload == doneSentinel {
		// Logical end of the chunk sequence. The read loop keeps draining
		// until the transport reports end-of-stream.
		s.done = true
		return nil
	}
	if s.done {
		return nil
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.skipped++
		s.log.Debug().Err(err).Int("skipped", s.skipped).Msg("skipping malformed frame")
		return nil
	}
	return &chunk
}

// Skipped reports how many malformed frames were dropped.
func (s *ChunkStream) Skipped() int {
	return s.skipped
}

// Close releases the underlying response body. Safe to call more than once.
func (s *ChunkStream) Close() {
	s.body.Close()
}
