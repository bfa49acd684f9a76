package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/pkg/types"
)

// Adapter executes model-issued tool calls. It never returns an error for
// tool-level failures: every failure becomes error-shaped result text so the
// model can see what went wrong and react, instead of the run dying.
type Adapter struct {
	registry *Registry
	log      zerolog.Logger
}

// NewAdapter creates an adapter over the given registry.
func NewAdapter(registry *Registry) *Adapter {
	return &Adapter{
		registry: registry,
		log:      logging.For("tool"),
	}
}

// Execute runs one tool call under the given capability snapshot and returns
// the result text for the tool message. Disabled tools get a structured
// refusal; unknown tools and execution failures get error-shaped text.
func (a *Adapter) Execute(ctx context.Context, call types.ToolCall, snap capability.Snapshot, toolCtx *Context) string {
	if !snap.ToolEnabled(call.Name) {
		a.log.Warn().Str("tool", call.Name).Str("agent", snap.Agent).Msg("tool call refused: disabled for agent")
		return fmt.Sprintf("Error: tool %q is disabled for this agent and was not executed", call.Name)
	}

	t, ok := a.registry.Get(call.Name)
	if !ok {
		a.log.Warn().Str("tool", call.Name).Msg("tool call refused: unknown tool")
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}

	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return fmt.Sprintf("Error: tool %q received invalid JSON arguments", call.Name)
	}

	result, err := t.Execute(ctx, json.RawMessage(args), toolCtx)
	if err != nil {
		a.log.Debug().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return fmt.Sprintf("Error: %s", err.Error())
	}

	return result.Output
}
