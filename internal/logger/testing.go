package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger returns a logger whose entries can be asserted on through the observed logs
func TestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// TestContext returns a background context carrying an observed test logger
func TestContext() (context.Context, *observer.ObservedLogs) {
	l, logs := TestLogger()
	return ContextWithLogger(context.Background(), l), logs
}

// NopContext returns a context with a logger that discards everything
func NopContext() context.Context {
	return ContextWithLogger(context.Background(), zap.NewNop())
}
