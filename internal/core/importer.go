package core

// importer.go writes a validated workbook to the store.
//
// The workbook is read twice inside a single transaction: first the guest
// sheet, building a number -> generated key map, then the animal sheet,
// resolving owners through that map only. Entities are flushed every
// BatchSize rows to bound memory; the transaction is the unit of success,
// so any store or parse error rolls back every flushed batch.
//
// Incomplete rows are skipped, not defaulted, and reported with a bounded
// list of samples.

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/smoky1337/PfotenRegister/internal/logging"
)

// DefaultBatchSize is the number of entities per store round trip.
const DefaultBatchSize = 250

// Skip reasons reported to operators.
const (
	SkipMissingField     = "missing required field: "
	SkipDuplicateNumber  = "duplicate guest number in file"
	SkipNameRegistered   = "guest with this name already registered"
	SkipMissingReference = "missing guest number"
	SkipUnknownGuest     = "guest number not part of this import"
)

// SkippedRow identifies a row left out of an import.
type SkippedRow struct {
	Row    int    `json:"row"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	ImportedGuests  int          `json:"imported_guests"`
	ImportedAnimals int          `json:"imported_animals"`
	SkippedGuests   int          `json:"skipped_guests"`
	SkippedAnimals  int          `json:"skipped_animals"`
	GuestSkips      []SkippedRow `json:"guest_skips,omitempty"`
	AnimalSkips     []SkippedRow `json:"animal_skips,omitempty"`
	Warnings        []string     `json:"warnings,omitempty"`
	DurationMs      int64        `json:"duration_ms"`
}

// ImporterOptions configure an Importer.
type ImporterOptions struct {
	BatchSize   int
	SampleLimit int
	CodeLength  int
	Sheet       SheetOptions
	Now         func() time.Time
}

// Importer commits workbooks to a store.
type Importer struct {
	store Store
	opts  ImporterOptions
}

// NewImporter creates an importer writing to store.
func NewImporter(store Store, opts ImporterOptions) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{store: store, opts: opts}
}

// Import writes the workbook at path. report is the validation of the same
// file; a nil report validates the file first. A report with hard failures is
// refused before the store is touched.
func (im *Importer) Import(ctx context.Context, path string, report *ValidationReport) (*ImportResult, error) {
	if report == nil {
		var err error
		report, err = NewValidator(im.store, ValidatorOptions{
			SampleLimit: im.opts.SampleLimit,
			Sheet:       im.opts.Sheet,
		}).Validate(ctx, path)
		if err != nil {
			return nil, err
		}
	}
	if err := report.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := logging.WithFields(ctx, "file", filepath.Base(path))
	logger.Info("import started")

	today := truncateDay(im.opts.Now())
	result := &ImportResult{}

	err := im.store.WithTx(ctx, func(tx ImportTx) error {
		keys, err := im.importGuests(ctx, tx, path, report, today, result)
		if err != nil {
			return err
		}
		return im.importAnimals(ctx, tx, path, keys, today, result)
	})
	if err != nil {
		err = asStorageError("commit import", err)
		logger.Error("import rolled back", "error", err)
		return nil, err
	}

	result.Warnings = report.Warnings()
	result.DurationMs = time.Since(start).Milliseconds()

	logger.Info("import finished",
		"guests", result.ImportedGuests,
		"animals", result.ImportedAnimals,
		"skipped_guests", result.SkippedGuests,
		"skipped_animals", result.SkippedAnimals,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (im *Importer) importGuests(ctx context.Context, tx ImportTx, path string, report *ValidationReport, today time.Time, result *ImportResult) (map[string]string, error) {
	keys := make(map[string]string)  // guest number -> generated key
	reserved := make(map[string]bool) // keys generated in this call
	seen := make(map[string]bool)     // numbers encountered, imported or not
	pending := make([]Guest, 0, im.opts.BatchSize)

	skip := func(rec GuestRecord, reason string) {
		result.SkippedGuests++
		if len(result.GuestSkips) < im.opts.SampleLimit {
			result.GuestSkips = append(result.GuestSkips, SkippedRow{Row: rec.Row, Key: rec.Number, Reason: reason})
		}
	}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := tx.InsertGuests(ctx, pending); err != nil {
			return &StorageError{Op: "insert guests", Err: err}
		}
		result.ImportedGuests += len(pending)
		clear(pending)
		pending = pending[:0]
		return nil
	}

	exists := func(ctx context.Context, code string) (bool, error) {
		if reserved[code] {
			return true, nil
		}
		return tx.GuestCodeExists(ctx, code)
	}

	for rec, err := range GuestRecords(ctx, path, im.opts.Sheet, 0) {
		if err != nil {
			return nil, err
		}

		if col := rec.MissingRequired(); col != "" {
			if rec.Number != "" {
				seen[rec.Number] = true
			}
			skip(rec, SkipMissingField+col)
			continue
		}
		if seen[rec.Number] {
			skip(rec, SkipDuplicateNumber)
			continue
		}
		seen[rec.Number] = true

		if report.NameRegistered(NameKey{FirstName: rec.FirstName, LastName: rec.LastName}) {
			skip(rec, SkipNameRegistered)
			continue
		}

		code, err := GenerateUniqueCode(ctx, exists, im.opts.CodeLength)
		if err != nil {
			return nil, asStorageError("generate guest key", err)
		}
		reserved[code] = true
		keys[rec.Number] = code

		pending = append(pending, NewGuest(code, rec, today))
		if len(pending) >= im.opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (im *Importer) importAnimals(ctx context.Context, tx ImportTx, path string, keys map[string]string, today time.Time, result *ImportResult) error {
	pending := make([]Animal, 0, im.opts.BatchSize)

	skip := func(rec AnimalRecord, reason string) {
		result.SkippedAnimals++
		if len(result.AnimalSkips) < im.opts.SampleLimit {
			result.AnimalSkips = append(result.AnimalSkips, SkippedRow{Row: rec.Row, Key: rec.GuestNumber, Reason: reason})
		}
	}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := tx.InsertAnimals(ctx, pending); err != nil {
			return &StorageError{Op: "insert animals", Err: err}
		}
		result.ImportedAnimals += len(pending)
		clear(pending)
		pending = pending[:0]
		return nil
	}

	for rec, err := range AnimalRecords(ctx, path, im.opts.Sheet, 0) {
		if err != nil {
			return err
		}

		if rec.GuestNumber == "" {
			skip(rec, SkipMissingReference)
			continue
		}
		guestID, ok := keys[rec.GuestNumber]
		if !ok {
			skip(rec, SkipUnknownGuest)
			continue
		}

		pending = append(pending, NewAnimal(guestID, rec, today))
		if len(pending) >= im.opts.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

// asStorageError wraps err unless it already carries a classification.
func asStorageError(op string, err error) error {
	var (
		pe *ParseError
		se *StorageError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &se), errors.As(err, &ve):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &StorageError{Op: op, Err: err}
}
