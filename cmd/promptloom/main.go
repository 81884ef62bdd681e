package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/cmd/promptloom/commands"
	"github.com/promptloom/promptloom/logger"
)

var rootCmd = &cobra.Command{
	Use:   "promptloom",
	Short: "promptloom - Composable prompt template storage and resolution",
	Long: `promptloom - Hierarchically composable prompt templates.

Subprompts are named prompt fragments that reference each other by id or
name. Resolution walks the reference graph, splices each subprompt's own
text at its "attached" marker, and joins the fragments into final
positive and negative prompts. The collection lives in a single JSON
file with automatic backups and corruption repair.

Examples:
  promptloom list                   # List stored subprompts
  promptloom resolve knight         # Show fully resolved prompts
  promptloom validate               # Check referential integrity
  promptloom serve                  # Start the HTTP/WebSocket server
  promptloom backup                 # Create a storage backup`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Root().PersistentFlags().GetBool("json")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON")
	rootCmd.PersistentFlags().String("dir", "", "Storage directory (overrides config)")

	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.ListCmd)
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.ResolveCmd)
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.BackupCmd)
	rootCmd.AddCommand(commands.RestoreCmd)
	rootCmd.AddCommand(commands.InfoCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
