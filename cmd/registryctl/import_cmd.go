package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smoky1337/PfotenRegister/internal/core"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.xlsx>",
	Short: "Validate a workbook without importing it",
	Long: `Runs all import checks against a local workbook and prints the report
as JSON. Exits non-zero when the workbook contains duplicate or already
registered guest numbers.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Validate and import a workbook",
	Long: `Validates a local workbook and, when no hard problems are found, imports
all guests, representatives and animals in a single transaction.

Guests whose name is already registered are skipped, as are animals whose
owner number is not part of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(importCmd)
}

// previewOutput is what preview prints.
type previewOutput struct {
	File      string                 `json:"file"`
	Report    *core.ValidationReport `json:"report"`
	Warnings  []string               `json:"warnings,omitempty"`
	CanImport bool                   `json:"can_import"`
}

func runPreview(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.service.ValidateFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	verr := report.Err()
	out := previewOutput{
		File:      args[0],
		Report:    report,
		Warnings:  report.Warnings(),
		CanImport: verr == nil,
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	return verr
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	report, result, err := a.service.ImportFile(cmd.Context(), args[0])
	if err != nil {
		if report != nil {
			_ = printJSON(cmd.ErrOrStderr(), report)
		}
		return fmt.Errorf("import %s: %w", args[0], err)
	}

	slog.Info("import finished",
		"file", args[0],
		"guests", result.ImportedGuests,
		"animals", result.ImportedAnimals,
		"skipped_guests", result.SkippedGuests,
		"skipped_animals", result.SkippedAnimals,
		"duration_ms", result.DurationMs,
	)
	return printJSON(cmd.OutOrStdout(), result)
}
