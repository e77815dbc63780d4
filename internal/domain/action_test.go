package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		req     ActionRequest
		want    Action
		wantErr error
	}{
		{
			name: "screenshot",
			req:  ActionRequest{Action: "screenshot"},
			want: ScreenshotAction{},
		},
		{
			name: "mouse move rounds float coordinates",
			req:  ActionRequest{Action: "mouse_move", Coordinate: []float64{10.6, 20.2}},
			want: MoveAction{Coordinate: Point{X: 11, Y: 20}},
		},
		{
			name: "huge coordinates keep their sign",
			req:  ActionRequest{Action: "mouse_move", Coordinate: []float64{1e20, -1e20}},
			want: MoveAction{Coordinate: Point{X: math.MaxInt32, Y: math.MinInt32}},
		},
		{
			name: "huge wait saturates instead of overflowing",
			req:  ActionRequest{Action: "wait", Duration: ptr(1e10)},
			want: WaitAction{Duration: time.Duration(math.MaxInt64)},
		},
		{
			name:    "mouse move without coordinate",
			req:     ActionRequest{Action: "mouse_move"},
			wantErr: ErrInvalidAction,
		},
		{
			name: "left click",
			req:  ActionRequest{Action: "left_click", Coordinate: []float64{1, 2}},
			want: ClickAction{Coordinate: &Point{X: 1, Y: 2}, Button: LeftButton, Count: 1},
		},
		{
			name: "right click at pointer",
			req:  ActionRequest{Action: "right_click"},
			want: ClickAction{Button: RightButton, Count: 1},
		},
		{
			name: "double click",
			req:  ActionRequest{Action: "double_click", Coordinate: []float64{5, 5}},
			want: ClickAction{Coordinate: &Point{X: 5, Y: 5}, Button: LeftButton, Count: 2},
		},
		{
			name: "type",
			req:  ActionRequest{Action: "type", Text: "hello"},
			want: TypeAction{Text: "hello"},
		},
		{
			name:    "type without text",
			req:     ActionRequest{Action: "type"},
			wantErr: ErrInvalidAction,
		},
		{
			name: "key uses text field",
			req:  ActionRequest{Action: "key", Text: "cmd+space"},
			want: KeyAction{Combo: "cmd+space"},
		},
		{
			name: "wait defaults to one second",
			req:  ActionRequest{Action: "wait"},
			want: WaitAction{Duration: time.Second},
		},
		{
			name: "wait with fractional seconds",
			req:  ActionRequest{Action: "wait", Duration: ptr(0.5)},
			want: WaitAction{Duration: 500 * time.Millisecond},
		},
		{
			name:    "negative wait",
			req:     ActionRequest{Action: "wait", Duration: ptr(-1.0)},
			wantErr: ErrInvalidAction,
		},
		{
			name: "scroll defaults",
			req:  ActionRequest{Action: "scroll"},
			want: ScrollAction{Direction: ScrollDown, Amount: DefaultScrollAmount},
		},
		{
			name:    "scroll with bad direction",
			req:     ActionRequest{Action: "scroll", ScrollDirection: "sideways"},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "coordinate with three values",
			req:     ActionRequest{Action: "left_click", Coordinate: []float64{1, 2, 3}},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "unknown action",
			req:     ActionRequest{Action: "drag"},
			wantErr: ErrUnknownAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.req)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAction_TypeNamesRoundTrip(t *testing.T) {
	for _, name := range SupportedActions {
		req := ActionRequest{Action: string(name), Coordinate: []float64{1, 1}, Text: "a"}
		action, err := ParseAction(req)
		require.NoError(t, err, name)
		assert.Equal(t, name, action.Type())
	}
}

func TestDecodeActionRequest(t *testing.T) {
	req, err := DecodeActionRequest(`{"action":"left_click","coordinate":[100,200]}`)
	require.NoError(t, err)
	assert.Equal(t, "left_click", req.Action)
	assert.Equal(t, []float64{100, 200}, req.Coordinate)

	_, err = DecodeActionRequest("")
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = DecodeActionRequest("{not json")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestActionResult_ScreenshotFieldsAreFlattened(t *testing.T) {
	result := NewActionResult("screenshot", 1)
	result.Success = true
	result.ScreenshotData = &ScreenshotData{
		Data:          "aGVsbG8=",
		MimeType:      "image/png",
		Width:         1232,
		Height:        800,
		LogicalWidth:  1512,
		LogicalHeight: 982,
		ScaleFactor:   0.8147,
	}

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "screenshot", decoded["type"])
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "aGVsbG8=", decoded["data"])
	assert.Equal(t, float64(1232), decoded["width"])
	assert.Equal(t, float64(982), decoded["logical_height"])
	assert.NotContains(t, decoded, "error")
}

func TestActionResult_WithoutImage(t *testing.T) {
	result := NewActionResult("screenshot", 1)
	result.ScreenshotData = &ScreenshotData{Data: "aGVsbG8=", Width: 10}

	elided := result.WithoutImage()

	assert.Equal(t, ElidedImage(8), elided.Data)
	assert.Equal(t, "aGVsbG8=", result.Data, "original must keep its payload")
	assert.Equal(t, 10, elided.Width)
	assert.False(t, elided.HasImage() && elided.Data == result.Data)
}

func TestAgentState(t *testing.T) {
	assert.Equal(t, "AWAITING_MODEL", StateAwaitingModel.String())
	assert.True(t, StateAborted.IsTerminal())
	assert.False(t, StateExecuting.IsTerminal())

	raw, err := json.Marshal(StateDone)
	require.NoError(t, err)
	assert.JSONEq(t, `"DONE"`, string(raw))
}
