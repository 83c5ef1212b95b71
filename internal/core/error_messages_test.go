package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error", nil, ""},
		{"duplicates in file", &ValidationError{DuplicateNumbers: []string{"A1"}}, "VAL001"},
		{"numbers already stored", &ValidationError{ExistingNumbers: []string{"A1"}}, "VAL002"},
		{"missing sheet", &ParseError{Sheet: "tiere", Err: fmt.Errorf("%w: %q", ErrSheetNotFound, "tiere")}, "IMP001"},
		{"unreadable workbook", &ParseError{Sheet: "gaeste", Err: errors.New("zip: not a valid zip file")}, "IMP002"},
		{"storage fallback", &StorageError{Op: "insert guests", Err: errors.New("disk full")}, "IMP003"},
		{"bad number pattern", fmt.Errorf("%w: %q", ErrInvalidNumberPattern, "ABC"), "IMP004"},
		{"file too large", fmt.Errorf("upload: %w", ErrFileTooLarge), "FILE001"},
		{"wrong type", ErrInvalidFileType, "FILE002"},
		{"path traversal", ErrInvalidPath, "FILE003"},
		{"no file", errors.New("no file provided"), "FILE004"},
		{"empty upload", ErrEmptyFile, "FILE005"},
		{"busy", ErrTooManyImports, "UPL002"},
		{"upload gone", ErrUploadNotFound, "UPL003"},
		{"cancelled", fmt.Errorf("import: %w", context.Canceled), "UPL004"},
		{"deadline", context.DeadlineExceeded, "UPL005"},
		{"nothing to export", ErrNothingToExport, "EXP001"},
		{"bad export request", fmt.Errorf("%w: unexpected EOF", ErrBadExportRequest), "EXP002"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got, tt.wantCode)
			}
		})
	}
}

func TestMapError_DriverErrorsInsideStorageError(t *testing.T) {
	tests := []struct {
		driver   string
		wantCode string
	}{
		{"ERROR: duplicate key value violates unique constraint \"guests_pkey\"", "DB001"},
		{"ERROR: insert or update on table \"animals\" violates foreign key constraint", "DB003"},
		{"dial tcp 127.0.0.1:5432: connection refused", "DB004"},
		{"read: connection reset by peer", "DB005"},
		{"i/o timeout", "DB006"},
		{"ERROR: deadlock detected", "DB007"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			err := &StorageError{Op: "commit import", Err: errors.New(tt.driver)}
			if got := MapError(err).Code; got != tt.wantCode {
				t.Errorf("MapError(%q).Code = %q, want %q", tt.driver, got, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
	got := FormatUserError(ErrNothingToExport)
	want := "Nothing selected for export (Code: EXP001). Select at least one column of guests or animals"
	if got != want {
		t.Errorf("FormatUserError = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if !IsUserFacing(ErrInvalidPath) {
		t.Error("IsUserFacing(ErrInvalidPath) = false")
	}
	if IsUserFacing(errors.New("mystery")) {
		t.Error("IsUserFacing(mystery) = true")
	}
}
