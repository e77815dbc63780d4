package container

import (
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	config "github.com/inference-gateway/desktop-agent/config"
	display "github.com/inference-gateway/desktop-agent/internal/display"
	displaytest "github.com/inference-gateway/desktop-agent/internal/display/displaytest"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.ComputerUse.Screenshot.Dir = ""
	return cfg
}

func TestRunnerOptions(t *testing.T) {
	cfg := testConfig()
	cfg.ComputerUse.RateLimit.Enabled = true
	cfg.ComputerUse.RateLimit.MaxActionsPerMinute = 90
	cfg.ComputerUse.MaxWaitSeconds = 2.5

	opts := RunnerOptions(cfg, "macos")

	assert.Equal(t, 10, opts.MaxIterations)
	assert.Equal(t, "macos", opts.Agent.Platform)
	assert.Equal(t, 4096, opts.Agent.MaxTokens)
	assert.True(t, opts.Agent.Recovery.Enabled)
	assert.Equal(t, "escape", opts.Agent.Recovery.DismissKey)
	assert.Equal(t, 300*time.Millisecond, opts.Agent.Recovery.Settle)
	assert.Equal(t, 100*time.Millisecond, opts.Executor.ChordHold)
	assert.Equal(t, 2500*time.Millisecond, opts.Executor.MaxWait)
	assert.Equal(t, 90, opts.Executor.ActionsPerMinute)
	assert.Equal(t, 1280, opts.Vision.MaxWidth)
	assert.Equal(t, 800, opts.Vision.MaxHeight)
	assert.Equal(t, "png", opts.Vision.Format)

	cfg.ComputerUse.RateLimit.Enabled = false
	assert.Zero(t, RunnerOptions(cfg, "x11").Executor.ActionsPerMinute)
}

func TestNewServiceContainerWithDisplay(t *testing.T) {
	cfg := testConfig()
	fake := displaytest.NewFakeController(1512, 982, 2)

	c, err := NewServiceContainerWithDisplay(cfg, fake, display.DisplayInfo{Name: "x11"})
	require.NoError(t, err)
	defer func() { assert.NoError(t, c.Close()) }()

	assert.NotNil(t, c.GetGatherer())
	assert.Same(t, fake, c.GetDisplay())

	result, err := c.GetTaskRunner().Screenshot(logger.NopContext())
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1232, result.Width)
	assert.Equal(t, 800, result.Height)
	assert.Equal(t, 1512, result.LogicalWidth)

	frame, err := c.NewScaler().CaptureAndScale(logger.NopContext(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, frame.DevicePixelRatio)

	sessions, err := c.GetEventStore().ListSessions(logger.NopContext(), 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestNewServiceContainerWithDisplay_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MetricsEnabled = false

	c, err := NewServiceContainerWithDisplay(cfg, displaytest.NewFakeController(1280, 800, 1), display.DisplayInfo{Name: "x11"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Nil(t, c.GetGatherer())
}

func TestNewServiceContainerWithDisplay_BadModel(t *testing.T) {
	cfg := testConfig()
	cfg.Gateway.Model = "no-provider"

	_, err := NewServiceContainerWithDisplay(cfg, displaytest.NewFakeController(1280, 800, 1), display.DisplayInfo{})
	assert.Error(t, err)
}

