package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smoky1337/PfotenRegister/internal/core/coretest"
	"github.com/xuri/excelize/v2"
)

// fakeRows is an in-memory rowSource that counts how far it was advanced.
type fakeRows struct {
	rows  [][]string
	pos   int
	nexts int
	err   error
}

func (f *fakeRows) Next() bool {
	f.nexts++
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Columns(...excelize.Options) ([]string, error) {
	return f.rows[f.pos-1], nil
}

func (f *fakeRows) Error() error { return f.err }
func (f *fakeRows) Close() error { return nil }

func collect(t *testing.T, seq func(func(Record, error) bool)) ([]Record, error) {
	t.Helper()
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func testSpec() SheetSpec {
	return SheetSpec{
		Name:          "gaeste",
		Columns:       []string{"nummer", "vorname", "geburtsdatum"},
		DateColumns:   []string{"geburtsdatum"},
		StringColumns: []string{"nummer", "vorname"},
	}
}

func fakeSheet(data int, blanks int, tail ...[]string) *fakeRows {
	rows := [][]string{{"nummer", "vorname", "geburtsdatum"}}
	for i := 0; i < data; i++ {
		rows = append(rows, []string{"A" + string(rune('0'+i)), "Name", "45292"})
	}
	for i := 0; i < blanks; i++ {
		rows = append(rows, []string{"", " ", ""})
	}
	rows = append(rows, tail...)
	return &fakeRows{rows: rows}
}

func TestReadRows_StopsAfterBlankRun(t *testing.T) {
	src := fakeSheet(3, 500)

	recs, err := collect(t, func(yield func(Record, error) bool) {
		readRows(context.Background(), src, testSpec(), 0, yield)
	})
	if err != nil {
		t.Fatalf("readRows() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	// header + 3 data rows + DefaultBlankRowLimit blank rows
	if want := 1 + 3 + DefaultBlankRowLimit; src.nexts != want {
		t.Errorf("Next() called %d times, want %d", src.nexts, want)
	}
}

func TestReadRows_BlankRunBelowLimitKeepsReading(t *testing.T) {
	tail := []string{"Z9", "Late", ""}

	tests := []struct {
		name   string
		blanks int
		want   int
	}{
		{"short gap", 150, 4},
		{"gap at limit", DefaultBlankRowLimit, 3},
		{"long gap", 250, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fakeSheet(3, tt.blanks, tail)
			recs, err := collect(t, func(yield func(Record, error) bool) {
				readRows(context.Background(), src, testSpec(), 0, yield)
			})
			if err != nil {
				t.Fatalf("readRows() error = %v", err)
			}
			if len(recs) != tt.want {
				t.Errorf("records = %d, want %d", len(recs), tt.want)
			}
		})
	}
}

func TestReadRows_LeadingBlankRowsDoNotCount(t *testing.T) {
	rows := [][]string{{"nummer", "vorname", "geburtsdatum"}}
	for i := 0; i < 300; i++ {
		rows = append(rows, []string{"", "", ""})
	}
	rows = append(rows, []string{"B1", "Ann", ""})
	src := &fakeRows{rows: rows}

	recs, err := collect(t, func(yield func(Record, error) bool) {
		readRows(context.Background(), src, testSpec(), 0, yield)
	})
	if err != nil {
		t.Fatalf("readRows() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].Row != 302 {
		t.Errorf("Row = %d, want 302", recs[0].Row)
	}
}

func TestReadRows_CustomBlankLimit(t *testing.T) {
	spec := testSpec()
	spec.BlankRowLimit = 5
	src := fakeSheet(2, 5, []string{"C1", "Late", ""})

	recs, err := collect(t, func(yield func(Record, error) bool) {
		readRows(context.Background(), src, spec, 0, yield)
	})
	if err != nil {
		t.Fatalf("readRows() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
}

func TestReadRows_Limit(t *testing.T) {
	src := fakeSheet(8, 0)

	recs, err := collect(t, func(yield func(Record, error) bool) {
		readRows(context.Background(), src, testSpec(), 2, yield)
	})
	if err != nil {
		t.Fatalf("readRows() error = %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
	if src.nexts != 3 {
		t.Errorf("Next() called %d times, want 3", src.nexts)
	}
}

func TestReadRows_CancelledContext(t *testing.T) {
	src := fakeSheet(0, 0)
	for i := 0; i < 500; i++ {
		src.rows = append(src.rows, []string{"N", "x", ""})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collect(t, func(yield func(Record, error) bool) {
		readRows(ctx, src, testSpec(), 0, yield)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestReadRows_SourceError(t *testing.T) {
	src := fakeSheet(1, 0)
	src.err = errors.New("unexpected EOF")

	_, err := collect(t, func(yield func(Record, error) bool) {
		readRows(context.Background(), src, testSpec(), 0, yield)
	})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Sheet != "gaeste" {
		t.Errorf("Sheet = %q, want %q", pe.Sheet, "gaeste")
	}
}

func TestSheetSpec_HeaderIndex(t *testing.T) {
	spec := SheetSpec{
		Columns: []string{"nummer", "aktiv", "name"},
		Aliases: map[string]string{"active": "aktiv"},
	}

	tests := []struct {
		name   string
		header []string
		want   map[string]int
	}{
		{
			name:   "case insensitive and trimmed",
			header: []string{" Nummer ", "NAME"},
			want:   map[string]int{"nummer": 0, "name": 1},
		},
		{
			name:   "unknown columns ignored",
			header: []string{"extra", "nummer"},
			want:   map[string]int{"nummer": 1},
		},
		{
			name:   "alias",
			header: []string{"active"},
			want:   map[string]int{"aktiv": 0},
		},
		{
			name:   "canonical beats alias",
			header: []string{"active", "aktiv"},
			want:   map[string]int{"aktiv": 1},
		},
		{
			name:   "first duplicate wins",
			header: []string{"nummer", "nummer"},
			want:   map[string]int{"nummer": 0},
		},
		{
			name:   "formula prefix",
			header: []string{`="nummer"`},
			want:   map[string]int{"nummer": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spec.headerIndex(tt.header)
			if len(got) != len(tt.want) {
				t.Fatalf("headerIndex() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("headerIndex()[%q] = %d, want %d", k, got[k], v)
				}
			}
		})
	}
}

func TestRecords_Workbook(t *testing.T) {
	born := time.Date(1980, 5, 17, 0, 0, 0, 0, time.UTC)
	rows := [][]any{
		{"Nummer", "VORNAME", "Geburtsdatum", "Unbekannt"},
		{"A1", "  Anna ", born, "ignored"},
		{1002, "Ben", "17.05.1981", nil},
	}
	rows = append(rows, coretest.BlankRows(500, 4)...)
	path := coretest.Workbook(t, coretest.Sheet{Name: "gaeste", Rows: rows})

	spec := testSpec()
	spec.Columns = append(spec.Columns, "adresse")
	spec.StringColumns = append(spec.StringColumns, "adresse")

	recs, err := collect(t, Records(context.Background(), path, spec, 0))
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}

	first := recs[0]
	if first.Row != 2 {
		t.Errorf("Row = %d, want 2", first.Row)
	}
	if got := first.String("vorname"); got != "Anna" {
		t.Errorf("vorname = %q, want %q", got, "Anna")
	}
	if got := first.Date("geburtsdatum"); got == nil || !got.Equal(born) {
		t.Errorf("geburtsdatum = %v, want %v", got, born)
	}
	if first.Cell("adresse").Kind != CellEmpty {
		t.Errorf("adresse = %+v, want empty", first.Cell("adresse"))
	}

	second := recs[1]
	if second.Row != 3 {
		t.Errorf("Row = %d, want 3", second.Row)
	}
	if got := second.String("nummer"); got != "1002" {
		t.Errorf("nummer = %q, want %q", got, "1002")
	}
	want := time.Date(1981, 5, 17, 0, 0, 0, 0, time.UTC)
	if got := second.Date("geburtsdatum"); got == nil || !got.Equal(want) {
		t.Errorf("geburtsdatum = %v, want %v", got, want)
	}
}

func TestRecords_EarlyBreak(t *testing.T) {
	rows := [][]any{{"nummer"}, {"A1"}, {"A2"}, {"A3"}}
	path := coretest.Workbook(t, coretest.Sheet{Name: "gaeste", Rows: rows})

	n := 0
	for _, err := range Records(context.Background(), path, SheetSpec{Name: "gaeste", Columns: []string{"nummer"}}, 0) {
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterations = %d, want 1", n)
	}

	// The file handle was released, so the workbook can be removed.
	if err := os.Remove(path); err != nil {
		t.Errorf("remove after early break: %v", err)
	}
}

func TestRecords_MissingSheet(t *testing.T) {
	path := coretest.Workbook(t, coretest.Sheet{Name: "gaeste", Rows: [][]any{{"nummer"}}})

	_, err := collect(t, Records(context.Background(), path, SheetSpec{Name: "tiere"}, 0))
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("error = %v, want ErrSheetNotFound", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Sheet != "tiere" {
		t.Errorf("error = %v, want *ParseError for sheet tiere", err)
	}
}

func TestRecords_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("nummer,vorname\nA1,Anna\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := collect(t, Records(context.Background(), path, testSpec(), 0))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want *ParseError", err)
	}
}

func TestRecords_EmptySheet(t *testing.T) {
	path := coretest.Workbook(t, coretest.Sheet{Name: "gaeste"})

	recs, err := collect(t, Records(context.Background(), path, testSpec(), 0))
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %d, want 0", len(recs))
	}
}

func TestGuestRecords_StringColumnsKeepText(t *testing.T) {
	path := coretest.Workbook(t, coretest.Sheet{Name: SheetGuests, Rows: [][]any{
		{"nummer", "vorname", "nachname", "festnetz", "plz", "dokumente", "geburtsdatum"},
		{"1E3", "Ann", "Lee", "+4917612345678", "12.50", "123456789012345678", "45292"},
	}})

	var recs []GuestRecord
	for rec, err := range GuestRecords(context.Background(), path, SheetOptions{}, 0) {
		if err != nil {
			t.Fatalf("GuestRecords() error = %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}

	got := recs[0]
	tests := []struct{ col, got, want string }{
		{"nummer", got.Number, "1E3"},
		{"festnetz", got.Phone, "+4917612345678"},
		{"plz", got.Zip, "12.50"},
		{"dokumente", got.Documents, "123456789012345678"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.col, tt.got, tt.want)
		}
	}
	want := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got.BirthDate == nil || !got.BirthDate.Equal(want) {
		t.Errorf("geburtsdatum = %v, want %v", got.BirthDate, want)
	}
}
