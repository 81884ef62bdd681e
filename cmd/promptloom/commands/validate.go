package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/promptloom/promptloom/display"
	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/folder"
	"github.com/promptloom/promptloom/subprompt"
	"github.com/promptloom/promptloom/validation"
)

// ValidateCmd checks referential integrity of the stored collection
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the collection for cycles, dangling references, and structural problems",
	Long: `Validate the stored collection: circular references, dangling order
entries, folder structure problems, and a safe resolution order.

Exits non-zero when errors are found; warnings alone do not fail.`,
	RunE: runValidate,
}

func init() {
	ValidateCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	subprompts, err := store.LoadAllSubprompts()
	if err != nil {
		return err
	}
	folders, err := store.LoadAllFolders()
	if err != nil {
		return err
	}

	collection := subprompt.NewCollection(subprompts)
	result := validation.ValidateCollection(collection)

	order, orderResult := validation.SafeResolutionOrder(collection)
	result.Merge(orderResult)

	folderProblems := folder.ValidateStructure(folders)
	for _, problem := range folderProblems {
		result.AddError("%s", problem)
	}

	if display.ShouldOutputJSON(cmd) {
		if err := display.OutputJSON(map[string]interface{}{
			"valid":            result.Valid,
			"errors":           result.Errors,
			"warnings":         result.Warnings,
			"resolution_order": order,
		}); err != nil {
			return err
		}
	} else {
		for _, warning := range result.Warnings {
			pterm.Warning.Println(warning)
		}
		for _, errMsg := range result.Errors {
			pterm.Error.Printf("%s\n", errMsg)
		}
		if result.Valid {
			pterm.Success.Printf("Collection valid: %d subprompts, %d folders\n",
				len(subprompts), len(folders))
		} else {
			fmt.Printf("%d errors, %d warnings\n", len(result.Errors), len(result.Warnings))
		}
	}

	if !result.Valid {
		return errors.NewValidationError("collection has %d validation errors", len(result.Errors))
	}
	return nil
}
