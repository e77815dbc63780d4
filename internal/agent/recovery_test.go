package agent

import (
	"testing"

	assert "github.com/stretchr/testify/assert"
)

func TestNeedsDismiss(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"That opened a Battery menu.", true},
		{"I clicked Focus instead of Wi-Fi", true},
		{"The BATTERY MENU is showing", true},
		{"That opened the control center", true},
		{"This is not the right window", true},
		{"Something went wrong", true},
		{"I'll open Spotlight now.", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsDismiss(tt.text))
		})
	}
}
