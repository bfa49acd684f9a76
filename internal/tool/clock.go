package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const clockDescription = `Returns the current date and time.

Usage notes:
  - Pass an IANA timezone name (e.g. "Europe/Berlin") to get local time
  - Defaults to UTC when no timezone is given`

// ClockTool reports the current time.
type ClockTool struct{}

// ClockInput represents the input for the clock tool.
type ClockInput struct {
	Timezone string `json:"timezone,omitempty"`
}

// NewClockTool creates a new clock tool.
func NewClockTool() *ClockTool {
	return &ClockTool{}
}

func (t *ClockTool) ID() string          { return "clock" }
func (t *ClockTool) Description() string { return clockDescription }

func (t *ClockTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "IANA timezone name, defaults to UTC"
			}
		}
	}`)
}

func (t *ClockTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ClockInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	loc := time.UTC
	if params.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(params.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", params.Timezone)
		}
	}

	now := time.Now().In(loc)
	return &Result{
		Title:  "clock",
		Output: now.Format(time.RFC1123),
	}, nil
}
