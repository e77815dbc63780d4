package agent

import (
	"fmt"
	"sync"
	"time"

	zap "go.uber.org/zap"

	domain "github.com/inference-gateway/desktop-agent/internal/domain"
)

// TurnContext is the data transition guards inspect
type TurnContext struct {
	Iteration     int
	MaxIterations int
	ToolCalls     int
}

// StateGuard decides whether a transition may fire
type StateGuard func(tc *TurnContext) bool

// StateTransition is one edge of the orchestration state graph
type StateTransition struct {
	fromState domain.AgentState
	toState   domain.AgentState
	guard     StateGuard
}

// StateMachine tracks the orchestration state of one task.
//
//	STARTED → AWAITING_MODEL → EXECUTING → AWAITING_MODEL (loop) → DONE
//
// Any non-terminal state may move to ABORTED.
type StateMachine struct {
	mu            sync.RWMutex
	currentState  domain.AgentState
	previousState domain.AgentState
	transitions   map[domain.AgentState][]StateTransition

	sessionID string
	publisher domain.EventPublisher
	log       *zap.Logger
}

// NewStateMachine creates a machine in STARTED. publisher may be nil.
func NewStateMachine(sessionID string, publisher domain.EventPublisher, log *zap.Logger) *StateMachine {
	if log == nil {
		log = zap.NewNop()
	}
	sm := &StateMachine{
		currentState: domain.StateStarted,
		transitions:  make(map[domain.AgentState][]StateTransition),
		sessionID:    sessionID,
		publisher:    publisher,
		log:          log,
	}
	sm.registerTransitions()
	return sm
}

func (sm *StateMachine) registerTransitions() {
	sm.addTransition(domain.StateStarted, domain.StateAwaitingModel, nil)

	sm.addTransition(domain.StateAwaitingModel, domain.StateExecuting,
		func(tc *TurnContext) bool { return tc.ToolCalls > 0 })

	sm.addTransition(domain.StateAwaitingModel, domain.StateDone,
		func(tc *TurnContext) bool { return tc.ToolCalls == 0 })

	sm.addTransition(domain.StateExecuting, domain.StateAwaitingModel, nil)

	for state := domain.StateStarted; state <= domain.StateAborted; state++ {
		if !state.IsTerminal() {
			sm.addTransition(state, domain.StateAborted, nil)
		}
	}
}

func (sm *StateMachine) addTransition(from, to domain.AgentState, guard StateGuard) {
	sm.transitions[from] = append(sm.transitions[from], StateTransition{
		fromState: from,
		toState:   to,
		guard:     guard,
	})
}

// Transition moves to target if an edge exists and its guard passes
func (sm *StateMachine) Transition(tc *TurnContext, target domain.AgentState) error {
	sm.mu.Lock()

	transition := sm.findTransition(sm.currentState, target)
	if transition == nil {
		from := sm.currentState
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, target)
	}

	if transition.guard != nil && !transition.guard(tc) {
		from := sm.currentState
		sm.mu.Unlock()
		return fmt.Errorf("guard failed for transition %s -> %s", from, target)
	}

	sm.previousState = sm.currentState
	sm.currentState = target
	from, to := sm.previousState, sm.currentState
	sm.mu.Unlock()

	sm.log.Debug("State transition",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("iteration", tc.Iteration))

	if sm.publisher != nil {
		sm.publisher.Publish(domain.ObserverEvent{
			Type:      domain.ObserverStateTransition,
			SessionID: sm.sessionID,
			Timestamp: time.Now(),
			Data: map[string]any{
				"from":      from.String(),
				"to":        to.String(),
				"iteration": tc.Iteration,
			},
		})
	}
	return nil
}

func (sm *StateMachine) findTransition(from, to domain.AgentState) *StateTransition {
	for i := range sm.transitions[from] {
		if sm.transitions[from][i].toState == to {
			return &sm.transitions[from][i]
		}
	}
	return nil
}

// CurrentState returns the current state
func (sm *StateMachine) CurrentState() domain.AgentState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// PreviousState returns the state before the last transition
func (sm *StateMachine) PreviousState() domain.AgentState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.previousState
}

// CanTransition reports whether target is reachable now
func (sm *StateMachine) CanTransition(tc *TurnContext, target domain.AgentState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	transition := sm.findTransition(sm.currentState, target)
	if transition == nil {
		return false
	}
	return transition.guard == nil || transition.guard(tc)
}
