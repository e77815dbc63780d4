package domain

import (
	"encoding/json"
	"time"
)

// AgentState is a state of the tool-call orchestration loop
type AgentState int

const (
	StateStarted AgentState = iota
	StateAwaitingModel
	StateExecuting
	StateDone
	StateAborted
)

// String returns the upper-case state name used in logs and results
func (s AgentState) String() string {
	switch s {
	case StateStarted:
		return "STARTED"
	case StateAwaitingModel:
		return "AWAITING_MODEL"
	case StateExecuting:
		return "EXECUTING"
	case StateDone:
		return "DONE"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions are possible
func (s AgentState) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// MarshalJSON encodes the state by name
func (s AgentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Abort reasons reported in TaskResult.Error
const (
	AbortMaxIterations = "max iterations reached"
	AbortModelError    = "model request failed"
)

// TaskRequest is the body accepted by the task API
type TaskRequest struct {
	Task          string `json:"task"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// TaskResult is returned for every task invocation, including aborted ones
type TaskResult struct {
	SessionID    string              `json:"session_id"`
	Success      bool                `json:"success"`
	State        AgentState          `json:"state"`
	Iterations   int                 `json:"iterations"`
	ActionCount  int64               `json:"action_count"`
	FinalMessage string              `json:"final_message,omitempty"`
	Error        string              `json:"error,omitempty"`
	ExecutionLog []ExecutionLogEntry `json:"execution_log"`
}

// Execution log entry kinds
const (
	LogAssistantMessage = "assistant_message"
	LogToolUse          = "tool_use"
	LogToolResult       = "tool_result"
	LogRecovery         = "recovery"
	LogError            = "error"
)

// ExecutionLogEntry is one line of the per-task execution log
type ExecutionLogEntry struct {
	Iteration  int             `json:"iteration"`
	Kind       string          `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	Text       string          `json:"text,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Tool       string          `json:"tool,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Result     *ActionResult   `json:"result,omitempty"`
}

// Step pairs an executed action with its result. Action is nil when the
// request could not be parsed.
type Step struct {
	Iteration  int
	ToolCallID string
	Action     Action
	Result     ActionResult
}

// Session is the per-task record owned by the orchestrator. It only grows.
type Session struct {
	ID         string
	Task       string
	StartedAt  time.Time
	Iterations int
	Steps      []Step
}

// NewSession creates an empty session for a task
func NewSession(id, task string) *Session {
	return &Session{ID: id, Task: task, StartedAt: time.Now()}
}

// Record appends a step
func (s *Session) Record(step Step) {
	s.Steps = append(s.Steps, step)
}

// FailedSteps counts steps whose result was not successful
func (s *Session) FailedSteps() int {
	n := 0
	for _, step := range s.Steps {
		if !step.Result.Success {
			n++
		}
	}
	return n
}
