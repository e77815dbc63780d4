package agent

import (
	"fmt"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

// ComputerToolName is the only tool the orchestrator executes
const ComputerToolName = "computer"

// ErrToolNotImplemented is reported for tool calls naming any other tool
const ErrToolNotImplemented = "tool not implemented"

// ComputerTool describes the computer tool for the given canvas
func ComputerTool(canvas vision.Canvas) domain.ToolDescriptor {
	actions := make([]string, 0, len(domain.SupportedActions))
	for _, a := range domain.SupportedActions {
		actions = append(actions, string(a))
	}

	return domain.ToolDescriptor{
		Name: ComputerToolName,
		Description: fmt.Sprintf(
			"Control the computer with mouse and keyboard and take screenshots. "+
				"The screen is %dx%d pixels; coordinates are [x, y] with 0 <= x < %d and 0 <= y < %d.",
			canvas.VisionWidth, canvas.VisionHeight, canvas.VisionWidth, canvas.VisionHeight),
		DisplayWidthPx:  canvas.VisionWidth,
		DisplayHeightPx: canvas.VisionHeight,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        actions,
					"description": "The action to perform",
				},
				"coordinate": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"minItems":    2,
					"maxItems":    2,
					"description": "[x, y] in screenshot pixels, required for mouse_move, optional for clicks and scroll",
				},
				"text": map[string]any{
					"type":        "string",
					"description": "Text to type, or a key combination such as \"cmd+space\" for key",
				},
				"duration": map[string]any{
					"type":        "number",
					"description": "Seconds to wait, for the wait action",
				},
				"scroll_direction": map[string]any{
					"type": "string",
					"enum": []string{"up", "down", "left", "right"},
				},
				"scroll_amount": map[string]any{
					"type":        "integer",
					"description": "Number of scroll steps",
				},
			},
			"required": []string{"action"},
		},
	}
}
