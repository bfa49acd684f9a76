package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const calculatorDescription = `Performs basic arithmetic on two numbers.

Supported operations: add, subtract, multiply, divide.`

// CalculatorTool performs basic arithmetic.
type CalculatorTool struct{}

// CalculatorInput represents the input for the calculator tool.
type CalculatorInput struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

// NewCalculatorTool creates a new calculator tool.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) ID() string          { return "calculator" }
func (t *CalculatorTool) Description() string { return calculatorDescription }

func (t *CalculatorTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {
				"type": "string",
				"enum": ["add", "subtract", "multiply", "divide"],
				"description": "The arithmetic operation to perform"
			},
			"a": {
				"type": "number",
				"description": "First operand"
			},
			"b": {
				"type": "number",
				"description": "Second operand"
			}
		},
		"required": ["operation", "a", "b"]
	}`)
}

func (t *CalculatorTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params CalculatorInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	var result float64
	switch params.Operation {
	case "add":
		result = params.A + params.B
	case "subtract":
		result = params.A - params.B
	case "multiply":
		result = params.A * params.B
	case "divide":
		if params.B == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = params.A / params.B
	default:
		return nil, fmt.Errorf("unsupported operation %q", params.Operation)
	}

	return &Result{
		Title:  "calculator",
		Output: strconv.FormatFloat(result, 'f', -1, 64),
	}, nil
}
