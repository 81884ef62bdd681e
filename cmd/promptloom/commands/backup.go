package commands

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
)

// BackupCmd creates a timestamped backup of the storage file
var BackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a timestamped backup of the storage file",
	RunE:  runBackup,
}

// RestoreCmd restores the storage file from a backup
var RestoreCmd = &cobra.Command{
	Use:   "restore [backup]",
	Short: "Restore the storage file from a backup",
	Long: `Replace the storage file with a backup. Without an argument the
available backups are listed. The current file is backed up before it
is replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	RestoreCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runBackup(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	backupPath, err := store.BackupStorage()
	if err != nil {
		return err
	}
	pterm.Success.Printf("Backup created: %s\n", backupPath)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		info, err := store.GetInfo()
		if err != nil {
			return err
		}
		if display.ShouldOutputJSON(cmd) {
			return display.OutputJSON(info.Backups)
		}
		if len(info.Backups) == 0 {
			fmt.Println("No backups available.")
			return nil
		}
		fmt.Println("Available backups (newest first):")
		for _, backup := range info.Backups {
			fmt.Printf("  %s  %8d bytes  %s\n", backup.Filename, backup.Size, backup.Created)
		}
		return nil
	}

	backupPath := args[0]
	if !filepath.IsAbs(backupPath) && filepath.Dir(backupPath) == "." {
		backupPath = filepath.Join(store.BackupDir(), backupPath)
	}

	if err := store.RestoreFromBackup(backupPath); err != nil {
		return err
	}
	pterm.Success.Printf("Restored from %s\n", backupPath)
	return nil
}
