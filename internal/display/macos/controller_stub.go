//go:build !darwin

package macos

import (
	"fmt"

	display "github.com/inference-gateway/desktop-agent/internal/display"
)

// Provider is a placeholder on non-macOS platforms. It is never registered.
type Provider struct{}

var _ display.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) GetController(string) (display.DisplayController, error) {
	return nil, fmt.Errorf("macOS platform not available on this system")
}

func (p *Provider) GetDisplayInfo() display.DisplayInfo {
	return display.DisplayInfo{Name: "macos"}
}

func (p *Provider) IsAvailable() bool {
	return false
}
