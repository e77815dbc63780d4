package cmd

import (
	"fmt"
	"os"

	cobra "github.com/spf13/cobra"

	config "github.com/inference-gateway/desktop-agent/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file and DESKTOP_AGENT_*
environment variables have been applied. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.Redacted().ToYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default project configuration",
	Long: fmt.Sprintf(`Create %s in the current directory with default settings.`,
		config.DefaultConfigPath),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		return initProjectConfig(cmd, config.DefaultConfigPath, overwrite)
	},
}

func initProjectConfig(cmd *cobra.Command, configPath string, overwrite bool) error {
	if _, err := os.Stat(configPath); err == nil && !overwrite {
		return fmt.Errorf("configuration file %s already exists (use --overwrite to replace)", configPath)
	}

	if err := config.DefaultConfig().SaveConfig(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Successfully created %s\n", configPath)
	return nil
}

func init() {
	configInitCmd.Flags().Bool("overwrite", false, "replace an existing configuration file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
