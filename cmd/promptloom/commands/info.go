package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
)

// InfoCmd shows storage statistics
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show storage statistics",
	RunE:  runInfo,
}

func init() {
	InfoCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	info, err := store.GetInfo()
	if err != nil {
		return err
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(info)
	}

	fmt.Printf("Storage Statistics\n")
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Directory:   %s\n", info.StorageDirectory)
	fmt.Printf("File:        %s\n", info.StorageFile)
	fmt.Printf("Version:     %s\n", info.Version)
	if info.FileExists {
		fmt.Printf("Size:        %d bytes\n", info.FileSize)
		fmt.Printf("Modified:    %s\n", info.LastModified)
	} else {
		fmt.Printf("Size:        (file not created yet)\n")
	}
	fmt.Printf("Subprompts:  %d\n", info.SubpromptCount)
	fmt.Printf("Folders:     %d\n", info.FolderCount)
	fmt.Printf("Backups:     %d\n", len(info.Backups))
	return nil
}
