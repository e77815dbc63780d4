package display

import (
	"fmt"
	"sync"
)

// Registry manages display server providers and handles display detection
type Registry struct {
	providers []Provider
	mu        sync.RWMutex
}

var globalRegistry = &Registry{}

// Register adds a display server provider to the global registry.
// Backends call it from init(); registration order is detection priority.
func Register(provider Provider) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.providers = append(globalRegistry.providers, provider)
}

// DetectDisplay returns the first available display server provider
func DetectDisplay() (Provider, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, p := range globalRegistry.providers {
		if p.IsAvailable() {
			return p, nil
		}
	}

	return nil, fmt.Errorf("no compatible display server detected (tried %d providers)", len(globalRegistry.providers))
}

// Open detects the display server and connects to the given display
func Open(displayName string) (DisplayController, DisplayInfo, error) {
	provider, err := DetectDisplay()
	if err != nil {
		return nil, DisplayInfo{}, err
	}

	controller, err := provider.GetController(displayName)
	if err != nil {
		return nil, DisplayInfo{}, fmt.Errorf("failed to open %s display: %w", provider.GetDisplayInfo().Name, err)
	}
	return controller, provider.GetDisplayInfo(), nil
}

// GetProvider returns a specific provider by display server name, or nil if not found
func GetProvider(name string) Provider {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	for _, p := range globalRegistry.providers {
		if p.GetDisplayInfo().Name == name {
			return p
		}
	}
	return nil
}

// ClearProviders removes all registered providers
func ClearProviders() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.providers = nil
}
