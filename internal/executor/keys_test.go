package executor

import (
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
)

func TestParseKeyCombo(t *testing.T) {
	tests := []struct {
		name  string
		combo string
		want  []string
	}{
		{"single named key", "Return", []string{"enter"}},
		{"escape alias", "esc", []string{"escape"}},
		{"spotlight chord", "cmd+space", []string{"command", "space"}},
		{"super is command", "super+a", []string{"command", "a"}},
		{"control alias", "Control+Shift+t", []string{"ctrl", "shift", "t"}},
		{"page aliases", "page_down", []string{"pagedown"}},
		{"arrow alias", "ArrowUp", []string{"up"}},
		{"whitespace tolerated", " ctrl + c ", []string{"ctrl", "c"}},
		{"single character keeps case", "A", []string{"A"}},
		{"plus key", "+", []string{"+"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyCombo(tt.combo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyCombo_Invalid(t *testing.T) {
	for _, combo := range []string{"", "   ", "ctrl+", "ctrl++c", "hyper+x", "F13"} {
		t.Run(combo, func(t *testing.T) {
			_, err := ParseKeyCombo(combo)
			assert.Error(t, err)
		})
	}
}
