package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smoky1337/PfotenRegister/internal/logging"
)

const uploadExt = ".xlsx"

// ServiceOptions configure a Service. Zero values fall back to the package
// defaults.
type ServiceOptions struct {
	UploadDir     string
	MaxFileSize   int64
	PreviewRows   int
	ImportTimeout time.Duration
	MaxConcurrent int
	MaxImportWait time.Duration
	NumberPattern string
	Sheet         SheetOptions
	LookupChunk   int
	BatchSize     int
	SampleLimit   int
	CodeLength    int
	Now           func() time.Time
}

// Service is the entry point for the HTTP server and the CLI.
type Service struct {
	store     Store
	opts      ServiceOptions
	uploadDir string

	validator *Validator
	importer  *Importer
	exporter  *Exporter
	numbers   *NumberGenerator
	limiter   *ImportLimiter
	guests    *GuestCache

	claimMu sync.Mutex
	claimed map[string]int // upload names being read, skipped by the janitor
}

// Preview is the read-only view of an uploaded workbook.
type Preview struct {
	File      string            `json:"file"`
	Report    *ValidationReport `json:"report"`
	Guests    []GuestRecord     `json:"guests"`
	Animals   []AnimalRecord    `json:"animals"`
	CanImport bool              `json:"can_import"`
	Problems  []string          `json:"problems,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// NewService wires the pipeline around store and creates the upload
// directory.
func NewService(store Store, opts ServiceOptions) (*Service, error) {
	if opts.UploadDir == "" {
		opts.UploadDir = "tmp"
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 10
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dir, err := filepath.Abs(opts.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	s := &Service{
		store:     store,
		opts:      opts,
		uploadDir: dir,
		validator: NewValidator(store, ValidatorOptions{
			ChunkSize:   opts.LookupChunk,
			SampleLimit: opts.SampleLimit,
			Sheet:       opts.Sheet,
		}),
		importer: NewImporter(store, ImporterOptions{
			BatchSize:   opts.BatchSize,
			SampleLimit: opts.SampleLimit,
			CodeLength:  opts.CodeLength,
			Sheet:       opts.Sheet,
			Now:         opts.Now,
		}),
		exporter: NewExporter(store),
		numbers:  NewNumberGenerator(store, opts.NumberPattern, opts.Now),
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxImportWait),
		guests:   NewGuestCache(store.ListGuests),
		claimed:  make(map[string]int),
	}
	return s, nil
}

// UploadDir is the absolute sandbox directory for uploads.
func (s *Service) UploadDir() string { return s.uploadDir }

// SaveUpload stores an uploaded workbook under a random name and returns
// that name. name is the client's file name and only decides the type.
func (s *Service) SaveUpload(name string, r io.Reader) (string, error) {
	if !strings.EqualFold(filepath.Ext(name), uploadExt) {
		return "", ErrInvalidFileType
	}

	stored := uuid.NewString() + uploadExt
	path := filepath.Join(s.uploadDir, stored)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	src := r
	if s.opts.MaxFileSize > 0 {
		src = io.LimitReader(r, s.opts.MaxFileSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	switch {
	case err != nil:
		err = fmt.Errorf("write upload: %w", err)
	case s.opts.MaxFileSize > 0 && n > s.opts.MaxFileSize:
		err = fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.opts.MaxFileSize)
	case n == 0:
		err = ErrEmptyFile
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return stored, nil
}

// ResolveUploadPath maps a stored upload name to its path. Only bare .xlsx
// names inside the upload directory are accepted.
func (s *Service) ResolveUploadPath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") ||
		filepath.IsAbs(name) || filepath.Base(name) != name ||
		!strings.EqualFold(filepath.Ext(name), uploadExt) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	path := filepath.Join(s.uploadDir, name)
	rel, err := filepath.Rel(s.uploadDir, path)
	if err != nil || rel != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrUploadNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return path, nil
}

// Preview validates an upload and returns sample records of both sheets.
func (s *Service) Preview(ctx context.Context, name string) (*Preview, error) {
	defer s.claim(name)()

	path, err := s.ResolveUploadPath(name)
	if err != nil {
		return nil, err
	}

	report, err := s.validator.Validate(ctx, path)
	if err != nil {
		return nil, err
	}

	p := &Preview{File: name, Report: report, Warnings: report.Warnings()}
	for rec, err := range GuestRecords(ctx, path, s.opts.Sheet, s.opts.PreviewRows) {
		if err != nil {
			return nil, err
		}
		p.Guests = append(p.Guests, rec)
	}
	for rec, err := range AnimalRecords(ctx, path, s.opts.Sheet, s.opts.PreviewRows) {
		if err != nil {
			return nil, err
		}
		p.Animals = append(p.Animals, rec)
	}

	if verr := report.Err(); verr != nil {
		p.Problems = []string{verr.Error()}
	}
	p.CanImport = len(p.Problems) == 0
	return p, nil
}

// Confirm validates an upload again and imports it. On success the upload
// is removed; on failure it stays so the operator can preview it again.
func (s *Service) Confirm(ctx context.Context, name string) (*ImportResult, error) {
	defer s.claim(name)()

	path, err := s.ResolveUploadPath(name)
	if err != nil {
		return nil, err
	}

	_, result, err := s.runImport(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		logging.FromContext(ctx).Warn("remove imported upload", "file", name, "error", err)
	}
	return result, nil
}

// ImportFile validates and imports a workbook outside the upload sandbox.
// The CLI uses it for local files. It shares the import slots and timeout
// of Confirm.
func (s *Service) ImportFile(ctx context.Context, path string) (*ValidationReport, *ImportResult, error) {
	return s.runImport(ctx, path)
}

// runImport holds an import slot, validates path and imports it within the
// import timeout. The report is returned whenever validation ran.
func (s *Service) runImport(ctx context.Context, path string) (*ValidationReport, *ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.ImportTimeout)
	defer cancel()

	report, err := s.validator.Validate(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if err := report.Err(); err != nil {
		return report, nil, err
	}

	result, err := s.importer.Import(ctx, path, report)
	if err != nil {
		return report, nil, err
	}
	s.guests.Invalidate()
	return report, result, nil
}

// claim marks an upload as in use until the returned func is called.
// RemoveStaleUploads leaves claimed uploads alone.
func (s *Service) claim(name string) func() {
	s.claimMu.Lock()
	s.claimed[name]++
	s.claimMu.Unlock()

	return func() {
		s.claimMu.Lock()
		defer s.claimMu.Unlock()
		if s.claimed[name]--; s.claimed[name] <= 0 {
			delete(s.claimed, name)
		}
	}
}

// ValidateFile runs the validator on a local workbook.
func (s *Service) ValidateFile(ctx context.Context, path string) (*ValidationReport, error) {
	return s.validator.Validate(ctx, path)
}

// Export builds the workbook for req. The caller must Close it.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*ExportWorkbook, error) {
	return s.exporter.Build(ctx, req)
}

// ExportFileName is the download name for an export made now.
func (s *Service) ExportFileName() string {
	return ExportFileName(s.opts.Now())
}

// NextGuestNumber allocates a display number for a new registration.
func (s *Service) NextGuestNumber(ctx context.Context) (string, error) {
	return s.numbers.Next(ctx)
}

// Guests returns the cached guest listing.
func (s *Service) Guests(ctx context.Context) ([]GuestSummary, error) {
	guests, err := s.guests.Get(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list guests", Err: err}
	}
	return guests, nil
}

// ImportSettings upserts settings. Existing keys are kept unless overwrite
// is set. A guestNumberFormat without a digit block is refused.
func (s *Service) ImportSettings(ctx context.Context, settings []Setting, overwrite bool) (int, error) {
	for i, st := range settings {
		settings[i].Key = strings.TrimSpace(st.Key)
		if settings[i].Key == "" {
			return 0, fmt.Errorf("setting %d: empty key", i+1)
		}
		if settings[i].Key == SettingGuestNumberFormat {
			if _, err := ParseNumberPattern(st.Value, s.opts.Now()); err != nil {
				return 0, err
			}
		}
	}

	n, err := s.store.UpsertSettings(ctx, settings, overwrite)
	if err != nil {
		return 0, &StorageError{Op: "upsert settings", Err: err}
	}
	logging.FromContext(ctx).Info("settings imported", "rows", len(settings), "written", n, "overwrite", overwrite)
	return n, nil
}

// ImportStatus reports import slot occupancy.
func (s *Service) ImportStatus() ImportLimiterStatus { return s.limiter.Status() }

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
