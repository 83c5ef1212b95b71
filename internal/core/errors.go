package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Wrapped errors keep them reachable through errors.Is.
var (
	ErrSheetNotFound        = errors.New("sheet not found")
	ErrInvalidPath          = errors.New("invalid upload path")
	ErrInvalidFileType      = errors.New("invalid file type: only .xlsx files are accepted")
	ErrFileTooLarge         = errors.New("file too large")
	ErrEmptyFile            = errors.New("empty file")
	ErrUploadNotFound       = errors.New("upload not found")
	ErrNothingToExport      = errors.New("nothing to export")
	ErrBadExportRequest     = errors.New("invalid export request")
	ErrInvalidNumberPattern = errors.New("invalid number pattern")
	ErrValidation           = errors.New("import validation failed")
)

// ParseError reports an unreadable workbook or sheet. Row is 0 when the
// failure is not tied to a row.
type ParseError struct {
	Sheet string
	Row   int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("parse sheet %q row %d: %v", e.Sheet, e.Row, e.Err)
	}
	return fmt.Sprintf("parse sheet %q: %v", e.Sheet, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is a hard validation failure. Nothing has been written when
// it is returned.
type ValidationError struct {
	DuplicateNumbers []string // numbers occurring more than once in the file
	ExistingNumbers  []string // numbers already present in the store
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.DuplicateNumbers) > 0 {
		parts = append(parts, "duplicate guest numbers in file: "+strings.Join(e.DuplicateNumbers, ", "))
	}
	if len(e.ExistingNumbers) > 0 {
		parts = append(parts, "guest numbers already exist: "+strings.Join(e.ExistingNumbers, ", "))
	}
	return "import validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StorageError wraps a store failure during an import or export. When it comes
// back from an import the transaction has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
