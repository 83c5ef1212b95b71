package core

// normalize.go converts loosely typed spreadsheet cells into canonical values.
//
// Operators fill the sheets by hand, so the same column can hold Excel dates,
// German dates typed as text, numbers stored as text and stray whitespace.
// None of the functions here fail: unusable input becomes "no value" (or the
// caller's default) and the record-level rules decide what that means.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// numericRegex validates that a string is a plain decimal number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Text date layouts, day first. Four-digit layouts are tried before the
// ambiguous two-digit ones.
var (
	fourDigitYearLayouts = []string{
		"02.01.2006", "2.1.2006", "02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"02.01.2006 15:04", "02.01.2006 15:04:05",
		"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04:05.000",
		time.RFC3339,
		"2 Jan 2006", "2. Jan 2006", "Jan 2, 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"02.01.06", "2.1.06", "02/01/06", "2/1/06", "2-1-06",
	}
)

// nanTokens are placeholders that spreadsheet exports write for missing values.
var nanTokens = map[string]bool{
	"nan": true, "nat": true, "none": true, "null": true, "n/a": true, "#n/a": true,
}

// Boolean vocabulary, lowercase.
var (
	truthyTokens = map[string]bool{
		"1": true, "ja": true, "j": true, "true": true, "wahr": true, "yes": true,
		"y": true, "aktiv": true, "active": true, "x": true,
	}
	falsyTokens = map[string]bool{
		"0": true, "nein": true, "n": true, "false": true, "falsch": true, "no": true,
		"inaktiv": true, "inactive": true,
	}
)

// NormalizeDate converts a cell to a calendar date (UTC midnight).
// Numbers are read as Excel serial dates in the 1900 date system.
func NormalizeDate(c Cell) (time.Time, bool) {
	switch c.Kind {
	case CellDate:
		if c.Date.IsZero() {
			return time.Time{}, false
		}
		return truncateDay(c.Date), true
	case CellNumber:
		return serialToDate(c.Number)
	case CellText:
		return parseDateText(c.Text)
	case CellEmpty, CellBool:
		return time.Time{}, false
	}
	return time.Time{}, false
}

// NormalizeString trims a cell to text. Empty or placeholder values yield false.
func NormalizeString(c Cell) (string, bool) {
	var s string
	switch c.Kind {
	case CellText:
		s = strings.TrimSpace(c.Text)
		if nanTokens[strings.ToLower(s)] {
			return "", false
		}
	case CellNumber:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return "", false
		}
		s = strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		if c.Date.IsZero() {
			return "", false
		}
		s = c.Date.Format(time.DateOnly)
	case CellBool:
		s = strconv.FormatBool(c.Bool)
	case CellEmpty:
		return "", false
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// MapEnum returns the canonical spelling from allowed that matches value
// case-insensitively, or def when nothing matches.
func MapEnum(value string, allowed []string, def string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	return def
}

// ParseBoolean interprets common yes/no spellings and returns def for
// anything else, including the empty string.
func ParseBoolean(value string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if truthyTokens[v] {
		return true
	}
	if falsyTokens[v] {
		return false
	}
	// Numbers formatted by NormalizeString ("1", "0") are covered above;
	// "1.0" style values saved by other tools are not.
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		switch f {
		case 1:
			return true
		case 0:
			return false
		}
	}
	return def
}

func parseDateText(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || nanTokens[strings.ToLower(s)] {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return truncateDay(t), true
		}
	}

	// Serial numbers that were stored as text.
	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return serialToDate(f)
		}
	}

	return time.Time{}, false
}

func serialToDate(serial float64) (time.Time, bool) {
	if serial <= 0 || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
