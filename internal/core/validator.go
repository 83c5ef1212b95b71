package core

// validator.go pre-scans an import workbook without writing anything.
//
// Checks, in order:
//  1. guest numbers occurring more than once in the file (hard failure)
//  2. guest numbers already present in the store (hard failure)
//  3. guests whose name, or name and address, already exist (warning; the
//     importer skips name matches)
//  4. animals whose guest number is blank or not among the file's guests
//     (warning; the importer skips them)
//
// Store lookups are sent in chunks of ChunkSize keys.

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/smoky1337/PfotenRegister/internal/logging"
)

// DefaultLookupChunkSize bounds the keys sent per existence query.
const DefaultLookupChunkSize = 500

// DefaultSampleLimit caps sample lists in reports and results.
const DefaultSampleLimit = 20

// Reasons attached to orphaned animals.
const (
	OrphanMissingNumber = "missing guest number"
	OrphanUnknownGuest  = "guest number not found in file"
)

// DuplicateNumber is a guest number found on several rows.
type DuplicateNumber struct {
	Number string `json:"number"`
	Rows   []int  `json:"rows"`
}

// PersonMatch is a file row matching a stored guest by name and address.
type PersonMatch struct {
	Row int `json:"row"`
	PersonKey
}

// NameMatch is a file row whose name pair is already registered.
type NameMatch struct {
	Row int `json:"row"`
	NameKey
}

// OrphanAnimal is an animal row that cannot be linked to a guest of the file.
type OrphanAnimal struct {
	Row         int    `json:"row"`
	GuestNumber string `json:"guest_number,omitempty"`
	Reason      string `json:"reason"`
}

// ValidationReport is the outcome of Validate. Sample lists are capped at
// the sample limit; the counts are exact.
type ValidationReport struct {
	GuestRows  int `json:"guest_rows"`
	AnimalRows int `json:"animal_rows"`

	DuplicateNumbers []DuplicateNumber `json:"duplicate_numbers,omitempty"`
	ExistingNumbers  []string          `json:"existing_numbers,omitempty"`

	DuplicatePersons     []PersonMatch  `json:"duplicate_persons,omitempty"`
	DuplicatePersonCount int            `json:"duplicate_person_count"`
	ExistingNames        []NameMatch    `json:"existing_names,omitempty"`
	ExistingNameCount    int            `json:"existing_name_count"`
	OrphanAnimals        []OrphanAnimal `json:"orphan_animals,omitempty"`
	OrphanAnimalCount    int            `json:"orphan_animal_count"`

	registeredNames map[NameKey]bool
}

// Err returns the hard validation failure, or nil.
func (r *ValidationReport) Err() error {
	if len(r.DuplicateNumbers) == 0 && len(r.ExistingNumbers) == 0 {
		return nil
	}
	verr := &ValidationError{ExistingNumbers: slices.Clone(r.ExistingNumbers)}
	for _, d := range r.DuplicateNumbers {
		verr.DuplicateNumbers = append(verr.DuplicateNumbers, d.Number)
	}
	return verr
}

// HasWarnings reports whether soft findings exist.
func (r *ValidationReport) HasWarnings() bool {
	return r.DuplicatePersonCount > 0 || r.ExistingNameCount > 0 || r.OrphanAnimalCount > 0
}

// NameRegistered reports whether the name pair exists in the store.
func (r *ValidationReport) NameRegistered(k NameKey) bool {
	return r != nil && r.registeredNames[k]
}

// Warnings renders the soft findings as operator messages.
func (r *ValidationReport) Warnings() []string {
	var out []string
	if r.DuplicatePersonCount > 0 {
		out = append(out, fmt.Sprintf("%d guest(s) already registered with the same name and address", r.DuplicatePersonCount))
	}
	if r.ExistingNameCount > 0 {
		out = append(out, fmt.Sprintf("%d guest(s) already registered with the same name will be skipped", r.ExistingNameCount))
	}
	if r.OrphanAnimalCount > 0 {
		out = append(out, fmt.Sprintf("%d animal(s) without a guest of this file will be skipped", r.OrphanAnimalCount))
	}
	return out
}

// ValidatorOptions configure a Validator.
type ValidatorOptions struct {
	ChunkSize   int
	SampleLimit int
	Sheet       SheetOptions
}

// Validator runs the read-only import checks.
type Validator struct {
	store GuestReader
	opts  ValidatorOptions
}

// NewValidator creates a validator reading from store.
func NewValidator(store GuestReader, opts ValidatorOptions) *Validator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultLookupChunkSize
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	return &Validator{store: store, opts: opts}
}

// Validate scans the workbook at path. A parse or store error is returned as
// the error; validation findings are returned in the report.
func (v *Validator) Validate(ctx context.Context, path string) (*ValidationReport, error) {
	start := time.Now()
	report := &ValidationReport{registeredNames: make(map[NameKey]bool)}

	var (
		numberRows = make(map[string][]int) // guest number -> rows
		numbers    []string                 // unique, file order
		nameRows   = make(map[NameKey][]int)
		names      []NameKey
		personRow  = make(map[PersonKey]int)
		persons    []PersonKey
	)

	for rec, err := range GuestRecords(ctx, path, v.opts.Sheet, 0) {
		if err != nil {
			return nil, err
		}
		report.GuestRows++

		if rec.Number != "" {
			if _, seen := numberRows[rec.Number]; !seen {
				numbers = append(numbers, rec.Number)
			}
			numberRows[rec.Number] = append(numberRows[rec.Number], rec.Row)
		}
		if rec.FirstName != "" && rec.LastName != "" {
			nk := NameKey{FirstName: rec.FirstName, LastName: rec.LastName}
			if _, seen := nameRows[nk]; !seen {
				names = append(names, nk)
			}
			nameRows[nk] = append(nameRows[nk], rec.Row)

			if rec.Address != "" {
				pk := PersonKey{FirstName: rec.FirstName, LastName: rec.LastName, Address: rec.Address}
				if _, seen := personRow[pk]; !seen {
					persons = append(persons, pk)
					personRow[pk] = rec.Row
				}
			}
		}
	}

	// 1. in-file duplicates
	for _, n := range numbers {
		if rows := numberRows[n]; len(rows) > 1 {
			report.DuplicateNumbers = append(report.DuplicateNumbers, DuplicateNumber{Number: n, Rows: rows})
		}
	}

	// 2. numbers already stored
	for chunk := range slices.Chunk(numbers, v.opts.ChunkSize) {
		found, err := v.store.ExistingGuestNumbers(ctx, chunk)
		if err != nil {
			return nil, &StorageError{Op: "check guest numbers", Err: err}
		}
		report.ExistingNumbers = append(report.ExistingNumbers, found...)
	}
	report.ExistingNumbers = inOrder(numbers, report.ExistingNumbers)

	// 3. known people
	for chunk := range slices.Chunk(persons, v.opts.ChunkSize) {
		found, err := v.store.ExistingPersons(ctx, chunk)
		if err != nil {
			return nil, &StorageError{Op: "check persons", Err: err}
		}
		for _, pk := range found {
			report.DuplicatePersonCount++
			if len(report.DuplicatePersons) < v.opts.SampleLimit {
				report.DuplicatePersons = append(report.DuplicatePersons, PersonMatch{Row: personRow[pk], PersonKey: pk})
			}
		}
	}
	slices.SortFunc(report.DuplicatePersons, func(a, b PersonMatch) int { return a.Row - b.Row })

	for chunk := range slices.Chunk(names, v.opts.ChunkSize) {
		found, err := v.store.ExistingNames(ctx, chunk)
		if err != nil {
			return nil, &StorageError{Op: "check names", Err: err}
		}
		for _, nk := range found {
			report.registeredNames[nk] = true
		}
	}
	for _, nk := range names {
		if !report.registeredNames[nk] {
			continue
		}
		for _, row := range nameRows[nk] {
			report.ExistingNameCount++
			if len(report.ExistingNames) < v.opts.SampleLimit {
				report.ExistingNames = append(report.ExistingNames, NameMatch{Row: row, NameKey: nk})
			}
		}
	}

	// 4. orphaned animals
	for rec, err := range AnimalRecords(ctx, path, v.opts.Sheet, 0) {
		if err != nil {
			return nil, err
		}
		report.AnimalRows++

		var reason string
		switch {
		case rec.GuestNumber == "":
			reason = OrphanMissingNumber
		case numberRows[rec.GuestNumber] == nil:
			reason = OrphanUnknownGuest
		default:
			continue
		}
		report.OrphanAnimalCount++
		if len(report.OrphanAnimals) < v.opts.SampleLimit {
			report.OrphanAnimals = append(report.OrphanAnimals, OrphanAnimal{
				Row: rec.Row, GuestNumber: rec.GuestNumber, Reason: reason,
			})
		}
	}

	logging.FromContext(ctx).Info("import validated",
		"guests", report.GuestRows,
		"animals", report.AnimalRows,
		"duplicate_numbers", len(report.DuplicateNumbers),
		"existing_numbers", len(report.ExistingNumbers),
		"warnings", report.HasWarnings(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// inOrder returns the members of subset ordered as in all.
func inOrder(all, subset []string) []string {
	if len(subset) == 0 {
		return nil
	}
	member := make(map[string]bool, len(subset))
	for _, s := range subset {
		member[s] = true
	}
	out := make([]string, 0, len(subset))
	for _, s := range all {
		if member[s] {
			out = append(out, s)
			delete(member, s)
		}
	}
	return out
}
