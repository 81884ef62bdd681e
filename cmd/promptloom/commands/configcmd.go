package commands

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/config"
	"github.com/promptloom/promptloom/display"
)

// ConfigCmd manages promptloom configuration
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage promptloom configuration",
	Long: `Inspect and modify promptloom configuration.

Values are merged from /etc/promptloom/config.toml, ~/.promptloom/config.toml,
a promptloom.toml found by walking up from the working directory, and
PROMPTLOOM_* environment variables, in that precedence order.

Examples:
  promptloom config show
  promptloom config set server.port 9000
  promptloom config unset server.port`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(cfg)
		}

		fmt.Printf("Storage:\n")
		fmt.Printf("  dir:              %s\n", cfg.Storage.Dir)
		fmt.Printf("  backup_retention: %d\n", cfg.Storage.BackupRetention)
		fmt.Printf("  watch_enabled:    %t\n", cfg.Storage.WatchEnabled)
		fmt.Printf("Server:\n")
		fmt.Printf("  port:             %d\n", cfg.Server.Port)
		fmt.Printf("  allowed_origins:  %v\n", cfg.Server.AllowedOrigins)
		fmt.Printf("Log:\n")
		fmt.Printf("  json:             %t\n", cfg.Log.JSON)
		fmt.Printf("  level:            %s\n", cfg.Log.Level)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value to the user config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := config.SetValue(key, coerceValue(args[1])); err != nil {
			return err
		}
		pterm.Success.Printf("Set %s in %s\n", key, config.UserConfigPath())
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value from the user config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetValue(args[0]); err != nil {
			return err
		}
		pterm.Success.Printf("Unset %s\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.UserConfigPath())
	},
}

func init() {
	configShowCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configUnsetCmd)
	ConfigCmd.AddCommand(configPathCmd)
}

// coerceValue turns a CLI string into a bool, int, or string so TOML
// values keep a useful type.
func coerceValue(raw string) interface{} {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
