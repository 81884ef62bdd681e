package commands

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
)

// ExportCmd exports subprompts to a portable JSON file
var ExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export subprompts to a JSON file",
	Long: `Write subprompts to a portable JSON file that can be imported into
another storage directory.

Examples:
  promptloom export backup.json            # Everything
  promptloom export chars.json --id a --id b`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// ImportCmd imports subprompts from an exported JSON file
var ImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import subprompts from a JSON file",
	Long: `Read subprompts from an exported file. By default existing entries
with the same id are kept; --merge overwrites them.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	exportIDs   []string
	importMerge bool
)

func init() {
	ExportCmd.Flags().StringArrayVar(&exportIDs, "id", nil, "Only export these subprompt ids (repeatable)")
	ImportCmd.Flags().BoolVar(&importMerge, "merge", false, "Overwrite existing subprompts with the same id")
	ImportCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	if err := store.ExportSubprompts(args[0], exportIDs); err != nil {
		return err
	}
	pterm.Success.Printf("Exported to %s\n", args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	statuses, err := store.ImportSubprompts(args[0], importMerge)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(statuses)
	}

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-32s %s\n", name, statuses[name])
	}
	pterm.Success.Printf("Imported %d subprompts from %s\n", len(statuses), args[0])
	return nil
}
