// Package coretest builds spreadsheet fixtures for tests.
package coretest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of a fixture workbook. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook writes sheets to a new .xlsx file in a temporary directory and
// returns its path.
func Workbook(t testing.TB, sheets ...Sheet) string {
	t.Helper()
	return WorkbookNamed(t, "import.xlsx", sheets...)
}

// WorkbookNamed is Workbook with an explicit file name.
func WorkbookNamed(t testing.TB, name string, sheets ...Sheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			t.Fatalf("new sheet %s: %v", sh.Name, err)
		}

		for r, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(sh.Name, cell, &values); err != nil {
				t.Fatalf("write %s row %d: %v", sh.Name, r+1, err)
			}
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// BlankRows returns n rows whose cells contain only whitespace. They are
// physically present in the sheet, unlike gaps between rows.
func BlankRows(n, width int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		row := make([]any, width)
		for j := range row {
			row[j] = " "
		}
		rows[i] = row
	}
	return rows
}

// GuestHeader is a typical guest sheet header.
var GuestHeader = []any{"nummer", "vorname", "nachname", "adresse", "ort", "geburtsdatum", "status"}

// AnimalHeader is a typical animal sheet header.
var AnimalHeader = []any{"gast_nummer", "name", "art", "geschlecht", "kastriert", "aktiv"}
