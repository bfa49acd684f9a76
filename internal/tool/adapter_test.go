package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/pkg/types"
)

func snapshotWith(t *testing.T, tools map[string]bool) capability.Snapshot {
	t.Helper()
	source := capability.NewSource(map[string]types.AgentConfig{
		"default": {Tools: tools},
	}, nil)
	return source.Snapshot("default")
}

func TestAdapter_ExecutesTool(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCalculatorTool())
	adapter := NewAdapter(r)

	out := adapter.Execute(context.Background(), types.ToolCall{
		ID:        "call_1",
		Name:      "calculator",
		Arguments: `{"operation":"add","a":2,"b":3}`,
	}, snapshotWith(t, nil), &Context{})

	assert.Equal(t, "5", out)
}

func TestAdapter_DisabledToolGetsRefusal(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCalculatorTool())
	adapter := NewAdapter(r)

	out := adapter.Execute(context.Background(), types.ToolCall{
		Name:      "calculator",
		Arguments: `{"operation":"add","a":1,"b":1}`,
	}, snapshotWith(t, map[string]bool{"calculator": false}), &Context{})

	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "disabled")
}

func TestAdapter_UnknownTool(t *testing.T) {
	adapter := NewAdapter(NewRegistry())

	out := adapter.Execute(context.Background(), types.ToolCall{Name: "nope"}, snapshotWith(t, nil), &Context{})

	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "unknown tool")
}

func TestAdapter_FailureBecomesResultText(t *testing.T) {
	r := NewRegistry()
	r.Register(NewBaseTool("boom", "always fails", json.RawMessage(`{"type":"object"}`),
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			return nil, errors.New("something broke")
		}))
	adapter := NewAdapter(r)

	out := adapter.Execute(context.Background(), types.ToolCall{Name: "boom", Arguments: "{}"}, snapshotWith(t, nil), &Context{})

	assert.Equal(t, "Error: something broke", out)
}

func TestAdapter_InvalidArguments(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCalculatorTool())
	adapter := NewAdapter(r)

	out := adapter.Execute(context.Background(), types.ToolCall{
		Name:      "calculator",
		Arguments: "{truncated",
	}, snapshotWith(t, nil), &Context{})

	assert.Contains(t, out, "invalid JSON arguments")
}

func TestAdapter_EmptyArgumentsDefaultToObject(t *testing.T) {
	r := NewRegistry()
	r.Register(NewClockTool())
	adapter := NewAdapter(r)

	out := adapter.Execute(context.Background(), types.ToolCall{Name: "clock"}, snapshotWith(t, nil), &Context{})

	assert.NotContains(t, out, "Error:")
	assert.NotEmpty(t, out)
}
