package display_test

import (
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	display "github.com/inference-gateway/desktop-agent/internal/display"
	displaytest "github.com/inference-gateway/desktop-agent/internal/display/displaytest"
)

func TestDetectDisplay_PrefersFirstAvailable(t *testing.T) {
	display.ClearProviders()
	t.Cleanup(display.ClearProviders)

	unavailable := &displaytest.Provider{Available: false}
	fake := displaytest.NewFakeController(800, 600, 1)
	available := &displaytest.Provider{Controller: fake, Available: true}

	display.Register(unavailable)
	display.Register(available)

	controller, info, err := display.Open("")
	require.NoError(t, err)
	assert.Same(t, fake, controller)
	assert.Equal(t, "fake", info.Name)
}

func TestDetectDisplay_NoneAvailable(t *testing.T) {
	display.ClearProviders()
	t.Cleanup(display.ClearProviders)

	display.Register(&displaytest.Provider{Available: false})

	_, err := display.DetectDisplay()
	assert.ErrorContains(t, err, "no compatible display server")
}

func TestGetProvider(t *testing.T) {
	display.ClearProviders()
	t.Cleanup(display.ClearProviders)

	provider := &displaytest.Provider{Available: true}
	display.Register(provider)

	assert.Same(t, provider, display.GetProvider("fake"))
	assert.Nil(t, display.GetProvider("x11"))
}

func TestParseMouseButton(t *testing.T) {
	assert.Equal(t, display.MouseButtonRight, display.ParseMouseButton("right"))
	assert.Equal(t, display.MouseButtonMiddle, display.ParseMouseButton("middle"))
	assert.Equal(t, display.MouseButtonLeft, display.ParseMouseButton("bogus"))
	assert.Equal(t, "middle", display.MouseButtonMiddle.String())
}

func TestIsCanonicalKey(t *testing.T) {
	assert.True(t, display.IsCanonicalKey("command"))
	assert.True(t, display.IsCanonicalKey("x"))
	assert.True(t, display.IsCanonicalKey("f11"))
	assert.False(t, display.IsCanonicalKey("hyper"))
}
