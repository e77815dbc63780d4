package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	cobra "github.com/spf13/cobra"
	errgroup "golang.org/x/sync/errgroup"

	config "github.com/inference-gateway/desktop-agent/config"
	container "github.com/inference-gateway/desktop-agent/internal/container"
	handlers "github.com/inference-gateway/desktop-agent/internal/handlers"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket API",
	Long: `Start an HTTP server that accepts tasks and manual actions, exposes session
log summaries and Prometheus metrics, and streams live events to WebSocket
observers. Only one task runs at a time; concurrent task requests get 409.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			appConfig.Server.Port = port
		}
		if host, _ := cmd.Flags().GetString("host"); host != "" {
			appConfig.Server.Host = host
		}
		return startServer(cmd, appConfig)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "API server port (default from server.port)")
	serveCmd.Flags().String("host", "", "API server host (default from server.host)")
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, cfg *config.Config) error {
	services, err := container.NewServiceContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("Failed to release resources", "error", err)
		}
	}()

	api := handlers.NewAPIHandler(services.GetTaskRunner(), handlers.ServiceInfo{
		Version:  GetVersionInfo(),
		Display:  services.GetDisplayInfo(),
		Model:    cfg.Gateway.Model,
		Platform: runtime.GOOS,
	})
	ws := handlers.NewWebSocketHandler(services.GetBroadcaster())

	addr := cfg.ServerAddress()
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(api, ws, services.GetGatherer()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting API server", "address", addr, "display", services.GetDisplayInfo().Name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		return nil
	})

	printServerInfo(cmd, addr, cfg)
	return g.Wait()
}

func printServerInfo(cmd *cobra.Command, addr string, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API server listening on http://%s\n", addr)
	fmt.Fprintf(out, "   Storage: %s\n", cfg.Storage.Type)
	fmt.Fprintf(out, "   Model:   %s\n", cfg.Gateway.Model)
	fmt.Fprintf(out, "\nAvailable endpoints:\n")
	fmt.Fprintf(out, "   GET  /                        - Service info\n")
	fmt.Fprintf(out, "   GET  /health                  - Display and storage health\n")
	fmt.Fprintf(out, "   POST /screenshot              - Capture a vision frame\n")
	fmt.Fprintf(out, "   POST /action                  - Execute one action\n")
	fmt.Fprintf(out, "   POST /task                    - Run a task\n")
	fmt.Fprintf(out, "   GET  /sessions                - List logged sessions\n")
	fmt.Fprintf(out, "   GET  /logs/summary            - Summarize a session log\n")
	fmt.Fprintf(out, "   GET  /screenshots[/latest]    - Recently captured frames\n")
	fmt.Fprintf(out, "   WS   /ws                      - Live observer events\n")
	if cfg.Server.MetricsEnabled {
		fmt.Fprintf(out, "   GET  /metrics                 - Prometheus metrics\n")
	}
	fmt.Fprintln(out)
}
