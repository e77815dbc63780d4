package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	cobra "github.com/spf13/cobra"

	container "github.com/inference-gateway/desktop-agent/internal/container"
	display "github.com/inference-gateway/desktop-agent/internal/display"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
	vision "github.com/inference-gateway/desktop-agent/internal/vision"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture one vision frame and report the coordinate spaces",
	Long: `Capture the screen exactly as the model would see it and print the physical,
logical and vision sizes together with the device pixel ratio. Useful to
check a display before running tasks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		dc, info, err := display.Open(appConfig.ComputerUse.Display)
		if err != nil {
			return err
		}
		defer func() {
			if err := dc.Close(); err != nil {
				logger.Warn("Failed to close display", "error", err)
			}
		}()

		scaler := vision.NewScaler(dc, container.RunnerOptions(appConfig, info.Name).Vision)
		frame, err := scaler.CaptureAndScale(context.Background(), 1)
		if err != nil {
			return fmt.Errorf("failed to capture screen: %w", err)
		}

		if output != "" {
			if err := os.WriteFile(output, frame.Encoded, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
		}

		printFrame(cmd.OutOrStdout(), info.Name, frame, output)
		return nil
	},
}

func init() {
	screenshotCmd.Flags().StringP("output", "o", "", "write the encoded frame to this file")
	rootCmd.AddCommand(screenshotCmd)
}

func printFrame(w io.Writer, displayName string, frame *vision.VisionFrame, output string) {
	fmt.Fprintf(w, "Display:   %s\n", displayName)
	fmt.Fprintf(w, "Physical:  %dx%d\n", frame.PhysicalWidth, frame.PhysicalHeight)
	fmt.Fprintf(w, "Logical:   %dx%d\n", frame.LogicalWidth, frame.LogicalHeight)
	fmt.Fprintf(w, "Vision:    %dx%d\n", frame.Width, frame.Height)
	fmt.Fprintf(w, "DPR:       %.2f\n", frame.DevicePixelRatio)
	fmt.Fprintf(w, "Scale:     %.5f\n", frame.ScaleFactor)
	fmt.Fprintf(w, "Encoded:   %d bytes (%s)\n", len(frame.Encoded), frame.MimeType)
	if frame.Path != "" {
		fmt.Fprintf(w, "Persisted: %s\n", frame.Path)
	}
	if output != "" {
		fmt.Fprintf(w, "Written:   %s\n", output)
	}
}
