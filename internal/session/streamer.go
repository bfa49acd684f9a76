package session

import (
	"context"

	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/internal/run"
)

// ProviderStreamer adapts the HTTP provider client to the run loop.
type ProviderStreamer struct {
	Client *provider.Client
}

// Stream implements run.Streamer.
func (s ProviderStreamer) Stream(ctx context.Context, req *provider.CompletionRequest) (run.ChunkSource, error) {
	stream, err := s.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
