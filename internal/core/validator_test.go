package core_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/core/coretest"
	"github.com/smoky1337/PfotenRegister/internal/storage/memory"
)

func guestSheet(rows ...[]any) coretest.Sheet {
	return coretest.Sheet{Name: core.SheetGuests, Rows: append([][]any{coretest.GuestHeader}, rows...)}
}

func animalSheet(rows ...[]any) coretest.Sheet {
	return coretest.Sheet{Name: core.SheetAnimals, Rows: append([][]any{coretest.AnimalHeader}, rows...)}
}

func storedGuest(id, number, first, last, address string) core.Guest {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Guest{
		ID: id, Number: number, FirstName: first, LastName: last, Address: address,
		Gender: core.Unknown, Status: true, MemberSince: day, CreatedOn: day, UpdatedOn: day,
	}
}

func newStore(t *testing.T, guests ...core.Guest) *memory.Store {
	t.Helper()
	store := memory.New()
	for _, g := range guests {
		if err := store.AddGuest(g); err != nil {
			t.Fatalf("AddGuest: %v", err)
		}
	}
	return store
}

// countingReader records the size of every existence lookup.
type countingReader struct {
	core.GuestReader
	batches []int
}

func (c *countingReader) ExistingGuestNumbers(ctx context.Context, numbers []string) ([]string, error) {
	c.batches = append(c.batches, len(numbers))
	return c.GuestReader.ExistingGuestNumbers(ctx, numbers)
}

type failingReader struct {
	core.GuestReader
	err error
}

func (f failingReader) ExistingNames(context.Context, []core.NameKey) ([]core.NameKey, error) {
	return nil, f.err
}

func TestValidate_DuplicateNumbersInFile(t *testing.T) {
	path := coretest.Workbook(t,
		guestSheet(
			[]any{"A1", "Ann", "Lee"},
			[]any{"A2", "Bob", "Kim"},
			[]any{"A1", "Cem", "Ory"},
		),
		animalSheet(),
	)

	report, err := core.NewValidator(newStore(t), core.ValidatorOptions{}).Validate(context.Background(), path)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	want := []core.DuplicateNumber{{Number: "A1", Rows: []int{2, 4}}}
	if len(report.DuplicateNumbers) != 1 ||
		report.DuplicateNumbers[0].Number != want[0].Number ||
		!slices.Equal(report.DuplicateNumbers[0].Rows, want[0].Rows) {
		t.Errorf("DuplicateNumbers = %+v, want %+v", report.DuplicateNumbers, want)
	}

	err = report.Err()
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("Err() = %v, want ErrValidation", err)
	}
	var verr *core.ValidationError
	if !errors.As(err, &verr) || !slices.Equal(verr.DuplicateNumbers, []string{"A1"}) {
		t.Errorf("ValidationError = %+v, want duplicates [A1]", verr)
	}
}

func TestValidate_NumbersAlreadyStored(t *testing.T) {
	store := newStore(t, storedGuest("k1", "A2", "Old", "Guest", ""))
	path := coretest.Workbook(t,
		guestSheet(
			[]any{"A1", "Ann", "Lee"},
			[]any{"A2", "Bob", "Kim"},
		),
		animalSheet(),
	)

	report, err := core.NewValidator(store, core.ValidatorOptions{}).Validate(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(report.ExistingNumbers, []string{"A2"}) {
		t.Errorf("ExistingNumbers = %v, want [A2]", report.ExistingNumbers)
	}
	if report.Err() == nil {
		t.Error("Err() = nil, want failure")
	}
}

func TestValidate_SoftWarnings(t *testing.T) {
	store := newStore(t,
		storedGuest("k1", "X1", "Ann", "Lee", "Hauptstr. 1"),
		storedGuest("k2", "X2", "Bob", "Kim", "Ring 5"),
	)
	path := coretest.Workbook(t,
		guestSheet(
			[]any{"B1", "Ann", "Lee", "Hauptstr. 1"},
			[]any{"B2", "Bob", "Kim", "Other 9"},
			[]any{"B3", "Neu", "Gast", "Weg 2"},
		),
		animalSheet(
			[]any{"B3", "Rex", "Hund"},
			[]any{"", "Mia", "Katze"},
			[]any{"Z9", "Tom", "Katze"},
		),
	)

	report, err := core.NewValidator(store, core.ValidatorOptions{}).Validate(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if !report.HasWarnings() {
		t.Error("HasWarnings() = false, want true")
	}

	if report.GuestRows != 3 || report.AnimalRows != 3 {
		t.Errorf("rows = %d/%d, want 3/3", report.GuestRows, report.AnimalRows)
	}
	if report.DuplicatePersonCount != 1 || report.DuplicatePersons[0].Row != 2 {
		t.Errorf("DuplicatePersons = %+v, want row 2", report.DuplicatePersons)
	}
	if report.ExistingNameCount != 2 {
		t.Errorf("ExistingNameCount = %d, want 2", report.ExistingNameCount)
	}
	if !report.NameRegistered(core.NameKey{FirstName: "Bob", LastName: "Kim"}) {
		t.Error("Bob Kim not flagged as registered")
	}
	if report.NameRegistered(core.NameKey{FirstName: "Neu", LastName: "Gast"}) {
		t.Error("Neu Gast flagged as registered")
	}

	wantOrphans := []core.OrphanAnimal{
		{Row: 3, Reason: core.OrphanMissingNumber},
		{Row: 4, GuestNumber: "Z9", Reason: core.OrphanUnknownGuest},
	}
	if !slices.Equal(report.OrphanAnimals, wantOrphans) {
		t.Errorf("OrphanAnimals = %+v, want %+v", report.OrphanAnimals, wantOrphans)
	}
	if got := len(report.Warnings()); got != 3 {
		t.Errorf("len(Warnings()) = %d, want 3", got)
	}
}

func TestValidate_ChunkedLookupsAndSampleLimit(t *testing.T) {
	var rows [][]any
	var animals [][]any
	for i := range 23 {
		rows = append(rows, []any{fmt.Sprintf("N%02d", i), "Vor", fmt.Sprintf("Nach%d", i)})
		animals = append(animals, []any{fmt.Sprintf("Q%02d", i), "Tier", "Hund"})
	}
	path := coretest.Workbook(t, guestSheet(rows...), animalSheet(animals...))

	reader := &countingReader{GuestReader: newStore(t)}
	v := core.NewValidator(reader, core.ValidatorOptions{ChunkSize: 10, SampleLimit: 5})

	report, err := v.Validate(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(reader.batches, []int{10, 10, 3}) {
		t.Errorf("lookup batches = %v, want [10 10 3]", reader.batches)
	}
	if report.OrphanAnimalCount != 23 || len(report.OrphanAnimals) != 5 {
		t.Errorf("orphans = %d (%d samples), want 23 (5 samples)", report.OrphanAnimalCount, len(report.OrphanAnimals))
	}
}

func TestValidate_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	path := coretest.Workbook(t, guestSheet([]any{"A1", "Ann", "Lee"}), animalSheet())

	_, err := core.NewValidator(failingReader{GuestReader: newStore(t), err: boom}, core.ValidatorOptions{}).
		Validate(context.Background(), path)

	var se *core.StorageError
	if !errors.As(err, &se) || !errors.Is(err, boom) {
		t.Errorf("error = %v, want *StorageError wrapping %v", err, boom)
	}
}

func TestValidate_MissingSheet(t *testing.T) {
	path := coretest.Workbook(t, guestSheet([]any{"A1", "Ann", "Lee"}))

	_, err := core.NewValidator(newStore(t), core.ValidatorOptions{}).Validate(context.Background(), path)

	var pe *core.ParseError
	if !errors.As(err, &pe) || !errors.Is(err, core.ErrSheetNotFound) {
		t.Errorf("error = %v, want *ParseError for missing sheet", err)
	}
	if pe != nil && pe.Sheet != core.SheetAnimals {
		t.Errorf("ParseError.Sheet = %q, want %q", pe.Sheet, core.SheetAnimals)
	}
}
