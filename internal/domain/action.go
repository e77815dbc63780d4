package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// ActionType is the wire name of an action request
type ActionType string

const (
	ActionScreenshot     ActionType = "screenshot"
	ActionMouseMove      ActionType = "mouse_move"
	ActionLeftClick      ActionType = "left_click"
	ActionRightClick     ActionType = "right_click"
	ActionMiddleClick    ActionType = "middle_click"
	ActionDoubleClick    ActionType = "double_click"
	ActionTripleClick    ActionType = "triple_click"
	ActionTypeText       ActionType = "type"
	ActionKey            ActionType = "key"
	ActionWait           ActionType = "wait"
	ActionScroll         ActionType = "scroll"
	ActionCursorPosition ActionType = "cursor_position"
)

// SupportedActions lists every action name accepted by ParseAction, in the
// order advertised to the model
var SupportedActions = []ActionType{
	ActionScreenshot,
	ActionMouseMove,
	ActionLeftClick,
	ActionRightClick,
	ActionMiddleClick,
	ActionDoubleClick,
	ActionTripleClick,
	ActionTypeText,
	ActionKey,
	ActionWait,
	ActionScroll,
	ActionCursorPosition,
}

// DefaultWaitDuration applies when a wait request carries no duration
const DefaultWaitDuration = time.Second

// maxDurationSeconds is the longest wait a time.Duration can hold
const maxDurationSeconds = float64(math.MaxInt64) / float64(time.Second)

// DefaultScrollAmount applies when a scroll request carries no amount
const DefaultScrollAmount = 3

// MouseButton represents a mouse button
type MouseButton string

const (
	LeftButton   MouseButton = "left"
	RightButton  MouseButton = "right"
	MiddleButton MouseButton = "middle"
)

// ScrollDirection represents the direction of a scroll action
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Point is a pixel coordinate in whichever space the holder documents
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Action is one input step requested by the model. The set of
// implementations is closed: only types in this package satisfy it.
type Action interface {
	Type() ActionType
	isAction()
}

// ScreenshotAction captures a new vision frame
type ScreenshotAction struct{}

// MoveAction moves the pointer to a vision-space coordinate
type MoveAction struct {
	Coordinate Point
}

// ClickAction clicks Count times with Button. A nil Coordinate clicks at
// the current pointer position.
type ClickAction struct {
	Coordinate *Point
	Button     MouseButton
	Count      int
}

// TypeAction types literal text
type TypeAction struct {
	Text string
}

// KeyAction presses a single key or a chord such as "command+space"
type KeyAction struct {
	Combo string
}

// WaitAction pauses to let the UI settle
type WaitAction struct {
	Duration time.Duration
}

// ScrollAction scrolls, optionally after moving to a vision-space coordinate
type ScrollAction struct {
	Coordinate *Point
	Direction  ScrollDirection
	Amount     int
}

// CursorPositionAction reports the pointer position in vision space
type CursorPositionAction struct{}

func (ScreenshotAction) Type() ActionType     { return ActionScreenshot }
func (MoveAction) Type() ActionType           { return ActionMouseMove }
func (TypeAction) Type() ActionType           { return ActionTypeText }
func (KeyAction) Type() ActionType            { return ActionKey }
func (WaitAction) Type() ActionType           { return ActionWait }
func (ScrollAction) Type() ActionType         { return ActionScroll }
func (CursorPositionAction) Type() ActionType { return ActionCursorPosition }

// Type derives the wire name from the button and click count
func (a ClickAction) Type() ActionType {
	switch {
	case a.Button == RightButton:
		return ActionRightClick
	case a.Button == MiddleButton:
		return ActionMiddleClick
	case a.Count == 2:
		return ActionDoubleClick
	case a.Count >= 3:
		return ActionTripleClick
	default:
		return ActionLeftClick
	}
}

func (ScreenshotAction) isAction()     {}
func (MoveAction) isAction()           {}
func (ClickAction) isAction()          {}
func (TypeAction) isAction()           {}
func (KeyAction) isAction()            {}
func (WaitAction) isAction()           {}
func (ScrollAction) isAction()         {}
func (CursorPositionAction) isAction() {}

// ActionRequest is the JSON shape of an action as sent by the model or an API client
type ActionRequest struct {
	Action          string    `json:"action"`
	Coordinate      []float64 `json:"coordinate,omitempty"`
	Text            string    `json:"text,omitempty"`
	Duration        *float64  `json:"duration,omitempty"`
	ScrollDirection string    `json:"scroll_direction,omitempty"`
	ScrollAmount    int       `json:"scroll_amount,omitempty"`
}

// DecodeActionRequest parses raw tool-call arguments
func DecodeActionRequest(raw string) (ActionRequest, error) {
	var req ActionRequest
	if strings.TrimSpace(raw) == "" {
		return req, fmt.Errorf("%w: empty arguments", ErrInvalidAction)
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return req, nil
}

// ParseAction converts a request into its typed Action variant
func ParseAction(req ActionRequest) (Action, error) {
	name := ActionType(strings.ToLower(strings.TrimSpace(req.Action)))

	switch name {
	case ActionScreenshot:
		return ScreenshotAction{}, nil

	case ActionCursorPosition:
		return CursorPositionAction{}, nil

	case ActionMouseMove:
		p, err := req.point()
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s requires coordinate", ErrInvalidAction, name)
		}
		return MoveAction{Coordinate: *p}, nil

	case ActionLeftClick, ActionRightClick, ActionMiddleClick, ActionDoubleClick, ActionTripleClick:
		p, err := req.point()
		if err != nil {
			return nil, err
		}
		click := ClickAction{Coordinate: p, Button: LeftButton, Count: 1}
		switch name {
		case ActionRightClick:
			click.Button = RightButton
		case ActionMiddleClick:
			click.Button = MiddleButton
		case ActionDoubleClick:
			click.Count = 2
		case ActionTripleClick:
			click.Count = 3
		}
		return click, nil

	case ActionTypeText:
		if req.Text == "" {
			return nil, fmt.Errorf("%w: type requires text", ErrInvalidAction)
		}
		return TypeAction{Text: req.Text}, nil

	case ActionKey:
		if strings.TrimSpace(req.Text) == "" {
			return nil, fmt.Errorf("%w: key requires text", ErrInvalidAction)
		}
		return KeyAction{Combo: req.Text}, nil

	case ActionWait:
		d := DefaultWaitDuration
		if req.Duration != nil {
			if *req.Duration < 0 || math.IsNaN(*req.Duration) {
				return nil, fmt.Errorf("%w: wait duration must be non-negative", ErrInvalidAction)
			}
			d = time.Duration(math.MaxInt64)
			if *req.Duration < maxDurationSeconds {
				d = time.Duration(*req.Duration * float64(time.Second))
			}
		}
		return WaitAction{Duration: d}, nil

	case ActionScroll:
		p, err := req.point()
		if err != nil {
			return nil, err
		}
		dir := ScrollDown
		if req.ScrollDirection != "" {
			dir = ScrollDirection(strings.ToLower(req.ScrollDirection))
		}
		switch dir {
		case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
		default:
			return nil, fmt.Errorf("%w: unknown scroll direction %q", ErrInvalidAction, req.ScrollDirection)
		}
		amount := req.ScrollAmount
		if amount <= 0 {
			amount = DefaultScrollAmount
		}
		return ScrollAction{Coordinate: p, Direction: dir, Amount: amount}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
}

func (r ActionRequest) point() (*Point, error) {
	if len(r.Coordinate) == 0 {
		return nil, nil
	}
	if len(r.Coordinate) != 2 {
		return nil, fmt.Errorf("%w: coordinate must be [x, y], got %d values", ErrInvalidAction, len(r.Coordinate))
	}
	for _, v := range r.Coordinate {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: coordinate must be finite", ErrInvalidAction)
		}
	}
	return &Point{X: roundCoordinate(r.Coordinate[0]), Y: roundCoordinate(r.Coordinate[1])}, nil
}

// roundCoordinate bounds v to the int32 range before converting so that
// huge values keep their sign and are clamped by the mapper
func roundCoordinate(v float64) int {
	return int(math.Round(math.Max(math.MinInt32, math.Min(math.MaxInt32, v))))
}
