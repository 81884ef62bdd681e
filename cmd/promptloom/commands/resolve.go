package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
	"github.com/promptloom/promptloom/subprompt"
)

// ResolveCmd resolves a subprompt's full prompt text
var ResolveCmd = &cobra.Command{
	Use:   "resolve <id-or-name>",
	Short: "Resolve a subprompt into its final prompts",
	Long: `Walk the subprompt's reference graph and print the fully composed
positive and negative prompts. Fails when the graph contains a circular
reference.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	ResolveCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	all, err := store.LoadAllSubprompts()
	if err != nil {
		return err
	}
	sp, err := findSubprompt(all, args[0])
	if err != nil {
		return err
	}

	collection := subprompt.NewCollection(all)
	resolved, err := sp.ResolveNested(collection)
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"id":       sp.ID,
			"name":     sp.Name,
			"positive": resolved.Positive,
			"negative": resolved.Negative,
		})
	}

	pterm.Info.Printf("Resolved %q\n", sp.Name)
	fmt.Printf("Positive: %s\n", resolved.Positive)
	if resolved.Negative != "" {
		fmt.Printf("Negative: %s\n", resolved.Negative)
	}
	return nil
}
