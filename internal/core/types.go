// Package core provides the business logic for spreadsheet import and export.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"
)

// FieldType represents the expected data type for a sheet column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldBool
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldBool:
		return "bool"
	default:
		return "unknown"
	}
}

// FieldSpec describes a single sheet column.
type FieldSpec struct {
	Name       string    // Header name, matched case-insensitively
	Label      string    // Display name
	Type       FieldType // Expected data type
	Required   bool      // Record is skipped when the value is missing
	EnumValues []string  // Canonical values for FieldEnum
	Default    string    // Enum fallback; "true"/"false" for FieldBool
	Aliases    []string  // Alternative header names
}

// Representative is the optional legal representative of a guest.
type Representative struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// IsZero reports whether no representative field is set.
func (r Representative) IsZero() bool {
	return r.Name == "" && r.Phone == "" && r.Email == "" && r.Address == ""
}

// GuestRecord is one parsed row of the guest sheet.
type GuestRecord struct {
	Row            int            `json:"row"`
	Number         string         `json:"number"`
	FirstName      string         `json:"firstname"`
	LastName       string         `json:"lastname"`
	Address        string         `json:"address,omitempty"`
	Zip            string         `json:"zip,omitempty"`
	City           string         `json:"city,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Mobile         string         `json:"mobile,omitempty"`
	Email          string         `json:"email,omitempty"`
	BirthDate      *time.Time     `json:"birth_date,omitempty"`
	Gender         string         `json:"gender,omitempty"`
	MemberSince    *time.Time     `json:"member_since,omitempty"`
	MemberUntil    *time.Time     `json:"member_until,omitempty"`
	Status         *bool          `json:"status,omitempty"`
	Indigence      string         `json:"indigence,omitempty"`
	IndigentUntil  *time.Time     `json:"indigent_until,omitempty"`
	Documents      string         `json:"documents,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Representative Representative `json:"representative"`
	CreatedOn      *time.Time     `json:"created_on,omitempty"`
	UpdatedOn      *time.Time     `json:"updated_on,omitempty"`
}

// MissingRequired returns the name of the first required column without a
// value, or "" when the record is complete.
func (g GuestRecord) MissingRequired() string {
	switch {
	case g.Number == "":
		return ColGuestNumber
	case g.FirstName == "":
		return ColFirstName
	case g.LastName == "":
		return ColLastName
	}
	return ""
}

// AnimalRecord is one parsed row of the animal sheet.
type AnimalRecord struct {
	Row            int        `json:"row"`
	GuestNumber    string     `json:"guest_number"`
	Species        string     `json:"species,omitempty"`
	Breed          string     `json:"breed,omitempty"`
	Name           string     `json:"name,omitempty"`
	Sex            string     `json:"sex,omitempty"`
	Color          string     `json:"color,omitempty"`
	Castrated      string     `json:"castrated,omitempty"`
	Identification string     `json:"identification,omitempty"`
	BirthDate      *time.Time `json:"birth_date,omitempty"`
	WeightOrSize   string     `json:"weight_or_size,omitempty"`
	Illnesses      string     `json:"illnesses,omitempty"`
	Intolerances   string     `json:"intolerances,omitempty"`
	FoodType       string     `json:"food_type,omitempty"`
	CompleteCare   string     `json:"complete_care,omitempty"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	Veterinarian   string     `json:"veterinarian,omitempty"`
	FoodAmountNote string     `json:"food_amount_note,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Active         *bool      `json:"active,omitempty"`
	TaxNoticeUntil *time.Time `json:"tax_notice_until,omitempty"`
	CreatedOn      *time.Time `json:"created_on,omitempty"`
	UpdatedOn      *time.Time `json:"updated_on,omitempty"`
}

// Guest is a persisted aid recipient. ID is the opaque generated key;
// Number is the human-facing display number.
type Guest struct {
	ID             string
	Number         string
	FirstName      string
	LastName       string
	Address        string
	Zip            string
	City           string
	Phone          string
	Mobile         string
	Email          string
	BirthDate      *time.Time
	Gender         string
	MemberSince    time.Time
	MemberUntil    *time.Time
	Status         bool
	Indigence      string
	IndigentUntil  *time.Time
	Documents      string
	Notes          string
	Representative *Representative
	CreatedOn      time.Time
	UpdatedOn      time.Time
}

// Animal is a persisted animal owned by a guest.
type Animal struct {
	ID             int64
	GuestID        string
	Species        string
	Breed          string
	Name           string
	Sex            string
	Color          string
	Castrated      string
	Identification string
	BirthDate      *time.Time
	WeightOrSize   string
	Illnesses      string
	Intolerances   string
	FoodType       string
	CompleteCare   string
	LastSeen       *time.Time
	Veterinarian   string
	FoodAmountNote string
	Notes          string
	Active         bool
	TaxNoticeUntil *time.Time
	CreatedOn      time.Time
	UpdatedOn      time.Time
}

// AnimalExport is an animal joined with its owner's display number.
type AnimalExport struct {
	Animal
	GuestNumber string
}

// Setting is a key/value configuration row kept in the store.
type Setting struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// GuestSummary is the listing view of a guest.
type GuestSummary struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Status    bool   `json:"status"`
}

// NameKey identifies a person by name only.
type NameKey struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// PersonKey identifies a person by name and address.
type PersonKey struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Address   string `json:"address"`
}

// GuestReader is the read side of the guest store used before an import.
// Lookup methods receive at most one chunk of keys per call and return the
// subset that exists.
type GuestReader interface {
	ExistingGuestNumbers(ctx context.Context, numbers []string) ([]string, error)
	ExistingNames(ctx context.Context, names []NameKey) ([]NameKey, error)
	ExistingPersons(ctx context.Context, persons []PersonKey) ([]PersonKey, error)
	GuestCodeExists(ctx context.Context, code string) (bool, error)
}

// NumberStore is the storage needed to allocate display numbers.
type NumberStore interface {
	Setting(ctx context.Context, key string) (string, bool, error)
	// GuestNumbersWithAffixes lists display numbers beginning with prefix and
	// ending with suffix, highest first.
	GuestNumbersWithAffixes(ctx context.Context, prefix, suffix string) ([]string, error)
	// NextCounter atomically advances the counter for scope to
	// max(current, floor) + 1 and returns the new value.
	NextCounter(ctx context.Context, scope string, floor int) (int, error)
}

// ImportTx is the write side available inside an import transaction.
type ImportTx interface {
	GuestCodeExists(ctx context.Context, code string) (bool, error)
	InsertGuests(ctx context.Context, guests []Guest) error
	InsertAnimals(ctx context.Context, animals []Animal) error
}

// ExportSource streams persisted rows for the export builder.
type ExportSource interface {
	StreamGuests(ctx context.Context, fn func(Guest) error) error
	StreamAnimals(ctx context.Context, fn func(AnimalExport) error) error
}

// Store is everything the service needs from persistence.
// WithTx runs fn in one transaction: it commits when fn returns nil and rolls
// back otherwise.
type Store interface {
	GuestReader
	NumberStore
	ExportSource
	WithTx(ctx context.Context, fn func(tx ImportTx) error) error
	ListGuests(ctx context.Context) ([]GuestSummary, error)
	UpsertSettings(ctx context.Context, settings []Setting, overwrite bool) (int, error)
}
