package domain

import "context"

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Stop reasons reported by a Reasoner
const (
	StopEndTurn = "end_turn"
	StopToolUse = "tool_use"
)

// Image is base64-encoded image content
type Image struct {
	MimeType string
	Data     string
}

// DataURL renders the image as a data: URL
func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + i.Data
}

// ToolCall is one tool invocation requested by the model
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult answers a ToolCall. Image is set for screenshot results.
type ToolResult struct {
	ToolCallID string
	Content    string
	Image      *Image
	IsError    bool
}

// Message is one conversation turn. User messages carry Text and Images,
// assistant messages carry Text and ToolCalls, tool messages carry ToolResults.
type Message struct {
	Role        Role
	Text        string
	Images      []Image
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolDescriptor advertises a tool to the model. DisplayWidthPx and
// DisplayHeightPx describe the canvas the model's coordinates refer to.
type ToolDescriptor struct {
	Name            string
	Description     string
	DisplayWidthPx  int
	DisplayHeightPx int
	Parameters      map[string]any
}

// ReasonerRequest is one request to the remote reasoning service
type ReasonerRequest struct {
	System    string
	Messages  []Message
	Tools     []ToolDescriptor
	MaxTokens int
}

// ReasonerResponse is the model's reply for one turn
type ReasonerResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Reasoner is the remote reasoning service
type Reasoner interface {
	Next(ctx context.Context, req ReasonerRequest) (*ReasonerResponse, error)
}
