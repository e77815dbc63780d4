package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	cobra "github.com/spf13/cobra"
	gotenv "github.com/subosito/gotenv"

	config "github.com/inference-gateway/desktop-agent/config"
	logger "github.com/inference-gateway/desktop-agent/internal/logger"
)

var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "desktop-agent",
	Short: "Let a reasoning model operate the desktop",
	Long: `desktop-agent connects a remote reasoning model to the local desktop.
The model observes the screen through downscaled screenshots and acts through
mouse and keyboard actions, which are mapped back onto the logical screen,
bounds-checked and logged.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	appConfig = cfg

	logger.Init(logger.Options{
		Verbose:    verbose,
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
}

// loadConfig reads .env into the environment, then the configuration file
func loadConfig(configPath string) (*config.Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return config.Load(configPath)
}
