package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cobra "github.com/spf13/cobra"

	config "github.com/inference-gateway/desktop-agent/config"
	container "github.com/inference-gateway/desktop-agent/internal/container"
	domain "github.com/inference-gateway/desktop-agent/internal/domain"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

// errTaskFailed makes the process exit non-zero when a task does not reach DONE
var errTaskFailed = errors.New("task did not complete")

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a single task on the local desktop",
	Long: `Run a single task: the model receives a screenshot, requests actions,
and sees their results until it stops asking for actions or the iteration
cap is reached. Exits with status 1 when the task does not complete.`,
	Example: `  desktop-agent run "Open Safari and search for the weather"
  desktop-agent run --max-iterations 20 --json "Empty the trash"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxIterations, _ := cmd.Flags().GetInt("max-iterations")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if maxIterations < 0 || maxIterations > config.MaxIterationsLimit {
			return fmt.Errorf("--max-iterations must be between 1 and %d", config.MaxIterationsLimit)
		}

		return runTask(cmd, strings.Join(args, " "), maxIterations, jsonOutput)
	},
}

func init() {
	runCmd.Flags().Int("max-iterations", 0, "maximum model round trips (default from agent.max_iterations)")
	runCmd.Flags().Bool("json", false, "print the task result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runTask(cmd *cobra.Command, task string, maxIterations int, jsonOutput bool) error {
	services, err := container.NewServiceContainer(appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressDone := make(chan struct{})
	if jsonOutput {
		close(progressDone)
	} else {
		events := services.GetBroadcaster().Subscribe("cli")
		go func() {
			defer close(progressDone)
			printProgress(cmd.OutOrStdout(), events)
		}()
	}

	result, runErr := services.GetTaskRunner().RunTask(ctx, domain.TaskRequest{
		Task:          task,
		MaxIterations: maxIterations,
	})

	if err := services.Close(); err != nil {
		logger.Warn("Failed to release resources", "error", err)
	}
	<-progressDone

	if runErr != nil {
		return runErr
	}

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printResult(cmd.OutOrStdout(), result)
	}

	if !result.Success {
		return errTaskFailed
	}
	return nil
}

// printProgress renders observer events until the stream closes
func printProgress(w io.Writer, events <-chan domain.ObserverEvent) {
	for event := range events {
		if line := progressLine(event); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

func progressLine(event domain.ObserverEvent) string {
	switch event.Type {
	case domain.ObserverModelMessage:
		data, _ := event.Data.(map[string]any)
		text, _ := data["text"].(string)
		if text == "" {
			return ""
		}
		return "💭 " + firstLine(text)

	case domain.ObserverAction:
		result, ok := event.Data.(domain.ActionResult)
		if !ok {
			return ""
		}
		status := "✓"
		if !result.Success {
			status = "✗ " + result.Error
		}
		if result.Position != nil {
			return fmt.Sprintf("   %s (%d, %d) %s", result.Type, result.Position.X, result.Position.Y, status)
		}
		return fmt.Sprintf("   %s %s", result.Type, status)

	default:
		return ""
	}
}

func printResult(w io.Writer, result domain.TaskResult) {
	fmt.Fprintln(w)
	if result.Success {
		fmt.Fprintf(w, "✅ Task completed in %d iterations (%d actions)\n", result.Iterations, result.ActionCount)
	} else {
		fmt.Fprintf(w, "❌ Task %s after %d iterations (%d actions): %s\n",
			strings.ToLower(result.State.String()), result.Iterations, result.ActionCount, result.Error)
	}
	if result.FinalMessage != "" {
		fmt.Fprintf(w, "\n%s\n", result.FinalMessage)
	}
	fmt.Fprintf(w, "\nSession: %s\n", result.SessionID)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
