package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smoky1337/PfotenRegister/internal/core"
)

var (
	exportOut      string
	exportTables   []string
	exportNoHeader bool
	templateOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export guests and animals to a workbook",
	Long: `Writes the selected tables to an .xlsx workbook, one sheet per table.

Select tables with --table, optionally restricted to columns:

  registryctl export --table gaeste
  registryctl export --table gaeste:nummer,vorname,nachname --table tiere

Without --table every column of both tables is exported.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an empty import workbook",
	Args:  cobra.NoArgs,
	RunE:  runTemplate,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default: timestamped name in the current directory)")
	exportCmd.Flags().StringArrayVarP(&exportTables, "table", "t", nil, "Table to export, as name or name:col1,col2 (repeatable)")
	exportCmd.Flags().BoolVar(&exportNoHeader, "no-header", false, "Omit the header row")

	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "pfotenregister_vorlage.xlsx", "Output file")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(templateCmd)
}

// parseTableFlags turns --table values into selections. No values select
// every column of every table.
func parseTableFlags(values []string) ([]core.TableSelection, error) {
	if len(values) == 0 {
		var all []core.TableSelection
		for _, schema := range core.Schemas() {
			all = append(all, core.TableSelection{Table: schema.Name, Columns: schema.Columns()})
		}
		return all, nil
	}

	selections := make([]core.TableSelection, 0, len(values))
	for _, v := range values {
		name, cols, hasCols := strings.Cut(v, ":")
		schema, ok := core.Schema(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: unknown table %q", core.ErrBadExportRequest, name)
		}

		sel := core.TableSelection{Table: schema.Name, Columns: schema.Columns()}
		if hasCols {
			sel.Columns = nil
			for c := range strings.SplitSeq(cols, ",") {
				if c = strings.TrimSpace(c); c != "" {
					sel.Columns = append(sel.Columns, c)
				}
			}
			if len(sel.Columns) == 0 {
				return nil, fmt.Errorf("%w: no columns for table %q", core.ErrBadExportRequest, name)
			}
		}
		selections = append(selections, sel)
	}
	return selections, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	tables, err := parseTableFlags(exportTables)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	wb, err := a.service.Export(cmd.Context(), core.ExportRequest{
		Tables:        tables,
		IncludeHeader: !exportNoHeader,
	})
	if err != nil {
		return err
	}
	defer wb.Close()

	out := exportOut
	if out == "" {
		out = a.service.ExportFileName()
	}
	if err := writeWorkbookFile(out, wb); err != nil {
		return err
	}

	for _, sheet := range wb.Sheets {
		slog.Info("sheet exported", "sheet", sheet.Name, "rows", sheet.Rows, "columns", len(sheet.Columns))
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runTemplate(cmd *cobra.Command, args []string) error {
	wb, err := core.Template()
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := writeWorkbookFile(templateOut, wb); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), templateOut)
	return nil
}

// writeWorkbookFile writes wb to path and removes the partial file on error.
func writeWorkbookFile(path string, wb *core.ExportWorkbook) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			err = errors.Join(err, os.Remove(path))
		}
	}()

	if _, err := wb.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
