package agent

import (
	"fmt"
	"strings"

	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

const basePrompt = `You operate a desktop computer through the "computer" tool. You can take screenshots, move and click the mouse, type text and press keys.

Work in small steps: decide on one action, perform it, then take a new screenshot and check that the expected change happened before continuing.
If the target application is not focused, bring it to the front first.
If an action opens the wrong menu or window, say so; it will be dismissed before your next action.
Only stop once the goal is visibly achieved on screen, then reply with a short summary and no tool calls.`

const macOSHints = `The operating system is macOS. Use cmd+space for Spotlight and cmd+tab to switch applications. The Dock is at the bottom of the screen.`

// SystemPrompt builds the system message. The coordinate bounds always
// reflect canvas so they match the screenshots the model receives.
func SystemPrompt(custom string, canvas vision.Canvas, platform string) string {
	var b strings.Builder

	if strings.TrimSpace(custom) != "" {
		b.WriteString(strings.TrimSpace(custom))
	} else {
		b.WriteString(basePrompt)
	}

	if platform == "macos" || platform == "darwin" {
		b.WriteString("\n\n")
		b.WriteString(macOSHints)
	}

	fmt.Fprintf(&b, `

Coordinate constraints:
- Screenshots are %dx%d pixels.
- Every coordinate must satisfy 0 <= x < %d and 0 <= y < %d.
- Near an edge, stay inside it, for example (%d, y) rather than (%d, y).`,
		canvas.VisionWidth, canvas.VisionHeight,
		canvas.VisionWidth, canvas.VisionHeight,
		max(canvas.VisionWidth-10, 0), canvas.VisionWidth)

	return b.String()
}
