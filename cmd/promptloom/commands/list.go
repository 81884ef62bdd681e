package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
	"github.com/promptloom/promptloom/subprompt"
)

// ListCmd lists stored subprompts
var ListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored subprompts",
	Long: `Display the stored subprompts grouped by folder path.

Examples:
  promptloom list                  # All subprompts
  promptloom list --folder chars   # Only one folder
  promptloom list --json           # Machine-readable output`,
	RunE: runList,
}

var listFolderFlag string

func init() {
	ListCmd.Flags().StringVar(&listFolderFlag, "folder", "", "Only list subprompts under this folder path")
	ListCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	subprompts, err := store.LoadAllSubprompts()
	if err != nil {
		return err
	}

	if listFolderFlag != "" {
		filtered := subprompts[:0]
		for _, sp := range subprompts {
			if sp.FolderPath == listFolderFlag ||
				strings.HasPrefix(sp.FolderPath, listFolderFlag+"/") {
				filtered = append(filtered, sp)
			}
		}
		subprompts = filtered
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(map[string]interface{}{
			"subprompts": subprompts,
			"count":      len(subprompts),
		})
	}

	if len(subprompts) == 0 {
		fmt.Println("No subprompts stored.")
		return nil
	}

	byFolder := make(map[string][]*subprompt.Subprompt)
	for _, sp := range subprompts {
		byFolder[sp.FolderPath] = append(byFolder[sp.FolderPath], sp)
	}
	paths := make([]string, 0, len(byFolder))
	for path := range byFolder {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		group := byFolder[path]
		sort.Slice(group, func(i, j int) bool {
			return strings.ToLower(group[i].Name) < strings.ToLower(group[j].Name)
		})

		label := path
		if label == "" {
			label = "(root)"
		}
		fmt.Printf("%s\n", label)
		for _, sp := range group {
			refs := referenceCount(sp)
			if refs > 0 {
				fmt.Printf("  %-24s %s  (%d refs)\n", sp.Name, shortID(sp.ID), refs)
			} else {
				fmt.Printf("  %-24s %s\n", sp.Name, shortID(sp.ID))
			}
		}
	}
	fmt.Printf("\n%d subprompts\n", len(subprompts))
	return nil
}

// referenceCount counts order items that reference other subprompts.
func referenceCount(sp *subprompt.Subprompt) int {
	count := 0
	for _, item := range sp.Order {
		if item != subprompt.Attached {
			count++
		}
	}
	return count
}

// shortID truncates an ID to 8 characters for display
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
