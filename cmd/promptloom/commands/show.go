package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/subprompt"
)

// ShowCmd shows a single subprompt
var ShowCmd = &cobra.Command{
	Use:   "show <id-or-name>",
	Short: "Show a stored subprompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	ShowCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

// findSubprompt locates a subprompt by id or name.
func findSubprompt(all []*subprompt.Subprompt, key string) (*subprompt.Subprompt, error) {
	for _, sp := range all {
		if sp.ID == key || sp.Name == key {
			return sp, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "subprompt %q", key)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(sp)
	}

	fmt.Printf("Name:     %s\n", sp.Name)
	fmt.Printf("ID:       %s\n", sp.ID)
	if sp.FolderPath != "" {
		fmt.Printf("Folder:   %s\n", sp.FolderPath)
	}
	fmt.Printf("Order:    %s\n", strings.Join(sp.Order, ", "))
	if len(sp.TriggerWords) > 0 {
		fmt.Printf("Triggers: %s\n", strings.Join(sp.TriggerWords, ", "))
	}
	if sp.Positive != "" {
		fmt.Printf("Positive: %s\n", sp.Positive)
	}
	if sp.Negative != "" {
		fmt.Printf("Negative: %s\n", sp.Negative)
	}
	return nil
}
