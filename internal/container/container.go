package container

import (
	"errors"
	"fmt"
	"time"

	prometheus "github.com/prometheus/client_golang/prometheus"
	collectors "github.com/prometheus/client_golang/prometheus/collectors"

	config "github.com/inference-gateway/desktop-agent/config"
	agent "github.com/inference-gateway/desktop-agent/internal/agent"
	display "github.com/inference-gateway/desktop-agent/internal/display"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	executor "github.com/inference-gateway/desktop-agent/internal/executor"
	adapters "github.com/inference-gateway/desktop-agent/internal/infra/adapters"
	metrics "github.com/inference-gateway/desktop-agent/internal/infra/metrics"
	storage "github.com/inference-gateway/desktop-agent/internal/infra/storage"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	services "github.com/inference-gateway/desktop-agent/internal/services"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"

	// Display providers register themselves
	_ "github.com/inference-gateway/desktop-agent/internal/display/macos"
	_ "github.com/inference-gateway/desktop-agent/internal/display/x11"
)

// ServiceContainer manages all application dependencies
type ServiceContainer struct {
	config *config.Config

	display     display.DisplayController
	displayInfo display.DisplayInfo

	store    storage.EventStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	reasoner domain.Reasoner

	broadcaster *services.Broadcaster
	frames      *services.FrameBuffer
	taskRunner  *services.TaskRunner
}

// NewServiceContainer opens the display and wires every service
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	dc, info, err := display.Open(cfg.ComputerUse.Display)
	if err != nil {
		return nil, err
	}

	c, err := NewServiceContainerWithDisplay(cfg, dc, info)
	if err != nil {
		if closeErr := dc.Close(); closeErr != nil {
			logger.Warn("Failed to close display", "error", closeErr)
		}
		return nil, err
	}
	return c, nil
}

// NewServiceContainerWithDisplay wires every service around an already
// open display controller
func NewServiceContainerWithDisplay(cfg *config.Config, dc display.DisplayController, info display.DisplayInfo) (*ServiceContainer, error) {
	c := &ServiceContainer{
		config:      cfg,
		display:     dc,
		displayInfo: info,
	}

	if err := c.initializeMetrics(); err != nil {
		return nil, err
	}
	if err := c.initializeStorage(); err != nil {
		return nil, err
	}
	if err := c.initializeReasoner(); err != nil {
		_ = c.store.Close()
		return nil, err
	}
	c.initializeServices()

	logger.Info("Service container initialized",
		"display", info.Name,
		"storage", cfg.Storage.Type,
		"model", cfg.Gateway.Model)
	return c, nil
}

func (c *ServiceContainer) initializeMetrics() error {
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m, err := metrics.New(c.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	c.metrics = m
	return nil
}

func (c *ServiceContainer) initializeStorage() error {
	store, err := storage.NewStorage(c.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", c.config.Storage.Type, err)
	}
	c.store = store
	return nil
}

func (c *ServiceContainer) initializeReasoner() error {
	client := adapters.NewGatewayClient(c.config.Gateway)
	reasoner, err := adapters.NewGatewayReasoner(client, c.config.Gateway.Model, c.config.GatewayTimeout())
	if err != nil {
		return err
	}
	c.reasoner = reasoner
	return nil
}

func (c *ServiceContainer) initializeServices() {
	c.broadcaster = services.NewBroadcaster(services.DefaultSubscriberBuffer)
	c.frames = services.NewFrameBuffer(c.config.ComputerUse.Screenshot.BufferSize)
	c.taskRunner = services.NewTaskRunner(
		c.display,
		c.reasoner,
		c.store,
		c.broadcaster,
		c.metrics,
		c.frames,
		RunnerOptions(c.config, c.displayInfo.Name),
	)
}

// RunnerOptions derives per-task settings from configuration
func RunnerOptions(cfg *config.Config, platform string) services.RunnerOptions {
	cu := cfg.ComputerUse

	actionsPerMinute := 0
	if cu.RateLimit.Enabled {
		actionsPerMinute = cu.RateLimit.MaxActionsPerMinute
	}

	return services.RunnerOptions{
		Agent: agent.Options{
			MaxIterations: cfg.Agent.MaxIterations,
			MaxTokens:     cfg.Gateway.MaxTokens,
			SystemPrompt:  cfg.Agent.SystemPrompt,
			Platform:      platform,
			Recovery: agent.RecoveryOptions{
				Enabled:    cfg.Agent.Recovery.Enabled,
				DismissKey: cfg.Agent.Recovery.DismissKey,
				Settle:     time.Duration(cfg.Agent.Recovery.SettleMs) * time.Millisecond,
			},
		},
		Executor: executor.Options{
			TypingDelayMs:    cu.TypingDelayMs,
			ChordHold:        time.Duration(cu.ChordHoldMs) * time.Millisecond,
			MaxWait:          time.Duration(cu.MaxWaitSeconds * float64(time.Second)),
			ActionsPerMinute: actionsPerMinute,
		},
		Vision: vision.Options{
			MaxWidth:   cu.Vision.MaxWidth,
			MaxHeight:  cu.Vision.MaxHeight,
			Format:     cu.Screenshot.Format,
			Quality:    cu.Screenshot.Quality,
			PersistDir: cu.Screenshot.Dir,
		},
		MaxIterations: cfg.Agent.MaxIterations,
	}
}

// GetConfig returns the configuration
func (c *ServiceContainer) GetConfig() *config.Config {
	return c.config
}

// GetDisplay returns the display controller
func (c *ServiceContainer) GetDisplay() display.DisplayController {
	return c.display
}

// GetDisplayInfo describes the detected display server
func (c *ServiceContainer) GetDisplayInfo() display.DisplayInfo {
	return c.displayInfo
}

// GetTaskRunner returns the task runner
func (c *ServiceContainer) GetTaskRunner() *services.TaskRunner {
	return c.taskRunner
}

// GetBroadcaster returns the observer event broadcaster
func (c *ServiceContainer) GetBroadcaster() *services.Broadcaster {
	return c.broadcaster
}

// GetEventStore returns the session event store
func (c *ServiceContainer) GetEventStore() storage.EventStore {
	return c.store
}

// GetMetrics returns the Prometheus collectors
func (c *ServiceContainer) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetGatherer returns the metrics registry, or nil when metrics are disabled
func (c *ServiceContainer) GetGatherer() prometheus.Gatherer {
	if !c.config.Server.MetricsEnabled {
		return nil
	}
	return c.registry
}

// NewScaler returns a scaler configured from computer_use settings
func (c *ServiceContainer) NewScaler() *vision.Scaler {
	return vision.NewScaler(c.display, RunnerOptions(c.config, c.displayInfo.Name).Vision)
}

// Close releases observers, storage and the display connection
func (c *ServiceContainer) Close() error {
	c.broadcaster.Close()
	return errors.Join(c.store.Close(), c.display.Close())
}
