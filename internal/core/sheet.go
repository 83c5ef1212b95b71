package core

// sheet.go streams one worksheet of an .xlsx workbook as records.
//
// Memory stays flat regardless of sheet size: excelize's Rows iterator reads
// the sheet XML incrementally, each row is classified and normalized as it is
// read, and nothing is retained after the record is handed to the consumer.
//
// Spreadsheets often report a huge used range because somebody formatted a
// whole column. Once data has been seen, a run of BlankRowLimit empty rows
// ends the sheet so such files do not iterate over a million empty rows.

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DefaultBlankRowLimit is the number of consecutive blank rows that ends a sheet.
const DefaultBlankRowLimit = 200

// ContextCheckInterval is how often (in rows) to check for context cancellation.
const ContextCheckInterval = 100

// rawValues asks excelize for unformatted values: dates as serial numbers,
// numbers without display rounding.
var rawValues = excelize.Options{RawCellValue: true}

// SheetSpec configures the reader for one sheet.
type SheetSpec struct {
	Name          string
	Columns       []string          // expected columns, lowercase
	DateColumns   []string          // normalized with NormalizeDate
	StringColumns []string          // normalized with NormalizeString
	Aliases       map[string]string // alternative header -> column
	BlankRowLimit int               // 0 means DefaultBlankRowLimit
}

// Record is one data row. Columns missing from the sheet or without a value
// read as the empty cell.
type Record struct {
	Row    int // 1-based sheet row, the header is row 1
	values map[string]Cell
}

// NewRecord builds a record from already classified cells.
func NewRecord(row int, values map[string]Cell) Record {
	return Record{Row: row, values: values}
}

// Cell returns the value of col.
func (r Record) Cell(col string) Cell {
	return r.values[col]
}

// String returns col as trimmed text, "" when it has no value.
func (r Record) String(col string) string {
	s, _ := NormalizeString(r.values[col])
	return s
}

// Date returns col as a date, nil when it has no value.
func (r Record) Date(col string) *time.Time {
	t, ok := NormalizeDate(r.values[col])
	if !ok {
		return nil
	}
	return &t
}

// rowSource is the subset of *excelize.Rows the reader uses.
type rowSource interface {
	Next() bool
	Columns(opts ...excelize.Options) ([]string, error)
	Error() error
	Close() error
}

// Records streams the records of one sheet. The workbook is opened when
// iteration starts and closed when it ends, including when the consumer stops
// early or an error is yielded. An error is always the last value yielded.
// limit > 0 caps the number of records.
func Records(ctx context.Context, path string, spec SheetSpec, limit int) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			yield(Record{}, &ParseError{Sheet: spec.Name, Err: fmt.Errorf("open workbook: %w", err)})
			return
		}
		defer f.Close()

		rows, err := f.Rows(spec.Name)
		if err != nil {
			yield(Record{}, sheetError(spec.Name, err))
			return
		}
		defer rows.Close()

		readRows(ctx, rows, spec, limit, yield)
	}
}

// readRows drives a row source. Split from Records so tests can count how far
// the source was advanced.
func readRows(ctx context.Context, src rowSource, spec SheetSpec, limit int, yield func(Record, error) bool) {
	fail := func(row int, err error) {
		yield(Record{}, &ParseError{Sheet: spec.Name, Row: row, Err: err})
	}

	if !src.Next() {
		if err := src.Error(); err != nil {
			fail(1, err)
		}
		return
	}
	header, err := src.Columns(rawValues)
	if err != nil {
		fail(1, fmt.Errorf("read header: %w", err))
		return
	}
	index := spec.headerIndex(header)

	dateCols := toSet(spec.DateColumns)
	stringCols := toSet(spec.StringColumns)

	blankLimit := spec.BlankRowLimit
	if blankLimit <= 0 {
		blankLimit = DefaultBlankRowLimit
	}

	row, blanks, emitted := 1, 0, 0
	seenData := false

	for src.Next() {
		row++

		if row%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
		}

		cols, err := src.Columns(rawValues)
		if err != nil {
			fail(row, err)
			return
		}

		if blankRow(cols) {
			if seenData {
				blanks++
				if blanks >= blankLimit {
					return
				}
			}
			continue
		}
		seenData = true
		blanks = 0

		rec := Record{Row: row, values: make(map[string]Cell, len(index))}
		for col, i := range index {
			if i >= len(cols) {
				continue
			}
			var c Cell
			switch {
			case dateCols[col]:
				if t, ok := NormalizeDate(classifyRaw(cols[i])); ok {
					c = DateCell(t)
				}
			case stringCols[col]:
				// Kept as written: "+49...", "1E3" and long ids are text here.
				if s, ok := NormalizeString(TextCell(cols[i])); ok {
					c = TextCell(s)
				}
			default:
				c = classifyRaw(cols[i])
			}
			if c.Kind != CellEmpty {
				rec.values[col] = c
			}
		}

		if !yield(rec, nil) {
			return
		}
		emitted++
		if limit > 0 && emitted >= limit {
			return
		}
	}

	if err := src.Error(); err != nil {
		fail(row, err)
	}
}

// headerIndex maps expected columns to their position in header. Matching is
// case-insensitive. The first occurrence of a column wins, and a canonical
// header beats an alias regardless of position.
func (s SheetSpec) headerIndex(header []string) map[string]int {
	expected := toSet(s.Columns)
	idx := make(map[string]int, len(s.Columns))
	aliased := make(map[string]bool)

	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if key == "" {
			continue
		}
		if expected[key] {
			if _, taken := idx[key]; !taken || aliased[key] {
				idx[key] = i
				delete(aliased, key)
			}
			continue
		}
		if col, ok := s.Aliases[key]; ok && expected[col] {
			if _, taken := idx[col]; !taken {
				idx[col] = i
				aliased[col] = true
			}
		}
	}
	return idx
}

// CleanCell removes common artifacts from a header cell:
// surrounding whitespace, an Excel formula prefix (="...") and quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func blankRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func sheetError(sheet string, err error) error {
	var missing excelize.ErrSheetNotExist
	if errors.As(err, &missing) {
		return &ParseError{Sheet: sheet, Err: fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)}
	}
	return &ParseError{Sheet: sheet, Err: err}
}
