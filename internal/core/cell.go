package core

import (
	"strconv"
	"strings"
	"time"
)

// CellKind tags the variant held by a Cell.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
	CellBool
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	case CellBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Cell is one spreadsheet value. Only the field matching Kind is meaningful.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
	Bool   bool
}

// EmptyCell returns the empty variant.
func EmptyCell() Cell { return Cell{} }

// TextCell returns a text variant holding s unchanged.
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

// NumberCell returns a numeric variant.
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

// DateCell returns a date variant.
func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Date: t} }

// BoolCell returns a boolean variant.
func BoolCell(b bool) Cell { return Cell{Kind: CellBool, Bool: b} }

// IsBlank reports whether the cell carries no usable value.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// classifyRaw turns a raw worksheet value into a Cell. The reader requests raw
// values, so dates arrive as serial numbers and only become dates once a date
// column normalizes them.
func classifyRaw(raw string) Cell {
	s := strings.TrimSpace(raw)
	if s == "" {
		return EmptyCell()
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		return BoolCell(true)
	case "FALSE":
		return BoolCell(false)
	}
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NumberCell(f)
		}
	}
	return TextCell(raw)
}

// looksNumeric rejects values strconv would accept but a sheet never means
// as numbers ("Inf", "NaN", hex floats) and keeps leading zeros as text so
// postcodes and phone numbers survive.
func looksNumeric(s string) bool {
	if numericRegex.MatchString(s) {
		digits := strings.TrimLeft(s, "+-")
		if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
			return false
		}
		return true
	}
	return false
}
