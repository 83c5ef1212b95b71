package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smoky1337/PfotenRegister/internal/core"
)

var settingsOverwrite bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage registry settings",
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import settings from a CSV file",
	Long: `Imports settings from a CSV file with the columns key, value and an
optional description. A header row starting with "key" is skipped.

Existing keys are left untouched unless --overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsImport,
}

var nextNumberCmd = &cobra.Command{
	Use:   "next-number",
	Short: "Allocate the next guest number",
	Args:  cobra.NoArgs,
	RunE:  runNextNumber,
}

func init() {
	settingsImportCmd.Flags().BoolVar(&settingsOverwrite, "overwrite", false, "Replace values of existing keys")
	settingsCmd.AddCommand(settingsImportCmd)

	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(nextNumberCmd)
}

// parseSettingsCSV reads key,value[,description] records.
func parseSettingsCSV(r io.Reader) ([]core.Setting, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var settings []core.Setting
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if n == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "key") {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("settings record %d: want key and value, got %d field(s)", n, len(rec))
		}

		s := core.Setting{
			Key:   strings.TrimPrefix(strings.TrimSpace(rec[0]), "\ufeff"),
			Value: rec[1],
		}
		if len(rec) > 2 {
			s.Description = rec[2]
		}
		settings = append(settings, s)
	}
	return settings, nil
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	settings, err := parseSettingsCSV(f)
	if err != nil {
		return err
	}
	if len(settings) == 0 {
		return fmt.Errorf("%s contains no settings", args[0])
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.service.ImportSettings(cmd.Context(), settings, settingsOverwrite)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d setting(s) written\n", n, len(settings))
	return nil
}

func runNextNumber(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	number, err := a.service.NextGuestNumber(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), number)
	return nil
}
