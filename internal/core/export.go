package core

// export.go serializes stored guests and animals into a workbook with one
// sheet per requested table, the same layout the importer reads. Rows are
// streamed from the store straight into excelize stream writers.

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/smoky1337/PfotenRegister/internal/logging"
)

// dateNumFmt is the built-in short date format (m/d/yyyy, localized by Excel).
const dateNumFmt = 14

const exportColumnWidth = 18

// TableSelection names a table and the columns to export from it.
type TableSelection struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// ExportRequest selects what to export.
type ExportRequest struct {
	Tables        []TableSelection `json:"tables"`
	IncludeHeader bool             `json:"include_header"`
}

// ExportedSheet describes one written sheet.
type ExportedSheet struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// ExportWorkbook is a built workbook waiting to be written. Close releases it.
type ExportWorkbook struct {
	Sheets []ExportedSheet

	f *excelize.File
}

// WriteTo writes the workbook as .xlsx.
func (wb *ExportWorkbook) WriteTo(w io.Writer) (int64, error) {
	return wb.f.WriteTo(w)
}

// Close releases the workbook's temporary resources.
func (wb *ExportWorkbook) Close() error {
	return wb.f.Close()
}

// ExportFileName is the download name for an export created at now.
func ExportFileName(now time.Time) string {
	return "pfotenregister_export_" + now.Format(time.DateOnly) + ".xlsx"
}

// Exporter builds export workbooks from an ExportSource.
type Exporter struct {
	source ExportSource
}

// NewExporter creates an exporter reading from source.
func NewExporter(source ExportSource) *Exporter {
	return &Exporter{source: source}
}

type exportPlan struct {
	schema  *SheetSchema
	columns []string
}

// planExport resolves a request against the sheet schemas. Unknown tables and
// columns are dropped, columns are put in schema order, and tables left
// without columns are omitted.
func planExport(req ExportRequest) ([]exportPlan, error) {
	var plans []exportPlan
	taken := make(map[string]bool)

	for _, sel := range req.Tables {
		schema, ok := Schema(sel.Table)
		if !ok || taken[schema.Name] {
			continue
		}

		wanted := make(map[string]bool, len(sel.Columns))
		for _, c := range sel.Columns {
			wanted[strings.ToLower(strings.TrimSpace(c))] = true
		}

		var cols []string
		for _, c := range schema.Columns() {
			if wanted[c] && exportable(schema, c) {
				cols = append(cols, c)
			}
		}
		if len(cols) == 0 {
			continue
		}

		taken[schema.Name] = true
		plans = append(plans, exportPlan{schema: schema, columns: cols})
	}

	if len(plans) == 0 {
		return nil, ErrNothingToExport
	}
	return plans, nil
}

func exportable(schema *SheetSchema, col string) bool {
	switch schema {
	case GuestSheet:
		return guestColumns[col] != nil
	case AnimalSheet:
		return animalColumns[col] != nil
	}
	return false
}

// Build creates the workbook for req. The caller must Close it.
func (e *Exporter) Build(ctx context.Context, req ExportRequest) (*ExportWorkbook, error) {
	plans, err := planExport(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	wb, err := e.build(ctx, plans, req.IncludeHeader, true)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	for _, s := range wb.Sheets {
		logger.Info("sheet exported", "sheet", s.Name, "columns", len(s.Columns), "rows", s.Rows)
	}
	logger.Info("export built", "sheets", len(wb.Sheets), "duration_ms", time.Since(start).Milliseconds())
	return wb, nil
}

// Export builds the workbook for req and writes it to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, req ExportRequest) error {
	wb, err := e.Build(ctx, req)
	if err != nil {
		return err
	}
	defer wb.Close()

	if _, err := wb.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Template creates an empty import workbook: every sheet with its full header.
func Template() (*ExportWorkbook, error) {
	var plans []exportPlan
	for _, s := range Schemas() {
		plans = append(plans, exportPlan{schema: s, columns: s.Columns()})
	}
	return (&Exporter{}).build(context.Background(), plans, true, false)
}

func (e *Exporter) build(ctx context.Context, plans []exportPlan, header, data bool) (_ *ExportWorkbook, err error) {
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: dateNumFmt})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	wb := &ExportWorkbook{f: f}
	for i, p := range plans {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", p.schema.Name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(p.schema.Name); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", p.schema.Name, err)
		}

		sw, err := f.NewStreamWriter(p.schema.Name)
		if err != nil {
			return nil, fmt.Errorf("stream %s: %w", p.schema.Name, err)
		}
		if err := sw.SetColWidth(1, len(p.columns), exportColumnWidth); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}

		rw := &rowWriter{sw: sw, next: 1}
		if header {
			values := make([]any, len(p.columns))
			for i, c := range p.columns {
				values[i] = c
			}
			if err := rw.write(values, excelize.RowOpts{StyleID: headerStyle}); err != nil {
				return nil, err
			}
		}

		rows := 0
		if data {
			rows, err = e.writeTable(ctx, rw, p, dateStyle)
			if err != nil {
				return nil, err
			}
		}

		if err := sw.Flush(); err != nil {
			return nil, fmt.Errorf("flush %s: %w", p.schema.Name, err)
		}
		wb.Sheets = append(wb.Sheets, ExportedSheet{Name: p.schema.Name, Columns: p.columns, Rows: rows})
	}

	f.SetActiveSheet(0)
	return wb, nil
}

func (e *Exporter) writeTable(ctx context.Context, rw *rowWriter, p exportPlan, dateStyle int) (int, error) {
	before := rw.next
	var err error

	switch p.schema {
	case GuestSheet:
		err = e.source.StreamGuests(ctx, func(g Guest) error {
			return rw.write(project(g, p.columns, guestColumns, dateStyle))
		})
	case AnimalSheet:
		err = e.source.StreamAnimals(ctx, func(a AnimalExport) error {
			return rw.write(project(a, p.columns, animalColumns, dateStyle))
		})
	}
	if err != nil {
		return 0, &StorageError{Op: "export " + p.schema.Name, Err: err}
	}
	return rw.next - before, nil
}

// project renders the selected columns of item. Dates get the date style so
// the sheet shows them as dates and the reader gets them back as serials.
func project[T any](item T, columns []string, render map[string]func(T) any, dateStyle int) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		v := render[c](item)
		if t, ok := v.(time.Time); ok {
			v = excelize.Cell{StyleID: dateStyle, Value: t}
		}
		values[i] = v
	}
	return values
}

type rowWriter struct {
	sw   *excelize.StreamWriter
	next int
}

func (rw *rowWriter) write(values []any, opts ...excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, rw.next)
	if err != nil {
		return err
	}
	if err := rw.sw.SetRow(cell, values, opts...); err != nil {
		return fmt.Errorf("write row %d: %w", rw.next, err)
	}
	rw.next++
	return nil
}
