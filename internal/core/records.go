package core

import (
	"context"
	"iter"
	"time"
)

// SheetOptions tune the reader for both import sheets.
type SheetOptions struct {
	BlankRowLimit int
}

// GuestRecords streams the guest sheet of the workbook at path.
func GuestRecords(ctx context.Context, path string, opts SheetOptions, limit int) iter.Seq2[GuestRecord, error] {
	spec := GuestSheet.Spec()
	spec.BlankRowLimit = opts.BlankRowLimit
	return func(yield func(GuestRecord, error) bool) {
		for rec, err := range Records(ctx, path, spec, limit) {
			if err != nil {
				yield(GuestRecord{}, err)
				return
			}
			if !yield(GuestRecordFrom(rec), nil) {
				return
			}
		}
	}
}

// AnimalRecords streams the animal sheet of the workbook at path.
func AnimalRecords(ctx context.Context, path string, opts SheetOptions, limit int) iter.Seq2[AnimalRecord, error] {
	spec := AnimalSheet.Spec()
	spec.BlankRowLimit = opts.BlankRowLimit
	return func(yield func(AnimalRecord, error) bool) {
		for rec, err := range Records(ctx, path, spec, limit) {
			if err != nil {
				yield(AnimalRecord{}, err)
				return
			}
			if !yield(AnimalRecordFrom(rec), nil) {
				return
			}
		}
	}
}

// GuestRecordFrom builds a guest record from a guest sheet row. Enum columns
// are mapped onto their vocabulary; everything else is taken as read.
func GuestRecordFrom(r Record) GuestRecord {
	s := GuestSheet
	return GuestRecord{
		Row:           r.Row,
		Number:        r.String(ColGuestNumber),
		FirstName:     r.String(ColFirstName),
		LastName:      r.String(ColLastName),
		Address:       r.String(ColAddress),
		Zip:           r.String(ColZip),
		City:          r.String(ColCity),
		Phone:         r.String(ColPhone),
		Mobile:        r.String(ColMobile),
		Email:         r.String(ColEmail),
		BirthDate:     r.Date(ColBirthDate),
		Gender:        s.enumValue(ColGender, r.String(ColGender)),
		MemberSince:   r.Date(ColMemberSince),
		MemberUntil:   r.Date(ColMemberUntil),
		Status:        s.boolValue(ColStatus, r.String(ColStatus)),
		Indigence:     r.String(ColIndigence),
		IndigentUntil: r.Date(ColIndigentUntil),
		Documents:     r.String(ColDocuments),
		Notes:         r.String(ColNotes),
		Representative: Representative{
			Name:    r.String(ColRepName),
			Phone:   r.String(ColRepPhone),
			Email:   r.String(ColRepEmail),
			Address: r.String(ColRepAddress),
		},
		CreatedOn: r.Date(ColCreatedOn),
		UpdatedOn: r.Date(ColUpdatedOn),
	}
}

// AnimalRecordFrom builds an animal record from an animal sheet row.
func AnimalRecordFrom(r Record) AnimalRecord {
	s := AnimalSheet
	return AnimalRecord{
		Row:            r.Row,
		GuestNumber:    r.String(ColAnimalGuestNum),
		Species:        s.enumValue(ColSpecies, r.String(ColSpecies)),
		Breed:          r.String(ColBreed),
		Name:           r.String(ColAnimalName),
		Sex:            s.enumValue(ColGender, r.String(ColGender)),
		Color:          r.String(ColColor),
		Castrated:      s.enumValue(ColCastrated, r.String(ColCastrated)),
		Identification: r.String(ColIdentification),
		BirthDate:      r.Date(ColBirthDate),
		WeightOrSize:   r.String(ColWeightOrSize),
		Illnesses:      r.String(ColIllnesses),
		Intolerances:   r.String(ColIntolerances),
		FoodType:       s.enumValue(ColFoodType, r.String(ColFoodType)),
		CompleteCare:   s.enumValue(ColCompleteCare, r.String(ColCompleteCare)),
		LastSeen:       r.Date(ColLastSeen),
		Veterinarian:   r.String(ColVeterinarian),
		FoodAmountNote: r.String(ColFoodAmountNote),
		Notes:          r.String(ColNotes),
		Active:         s.boolValue(ColActive, r.String(ColActive)),
		TaxNoticeUntil: r.Date(ColTaxNoticeUntil),
		CreatedOn:      r.Date(ColCreatedOn),
		UpdatedOn:      r.Date(ColUpdatedOn),
	}
}

// NewGuest builds the entity for a complete record. today fills the audit
// dates and the membership start when the sheet leaves them blank.
func NewGuest(id string, rec GuestRecord, today time.Time) Guest {
	created := dateOr(rec.CreatedOn, today)
	g := Guest{
		ID:            id,
		Number:        rec.Number,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Address:       rec.Address,
		Zip:           rec.Zip,
		City:          rec.City,
		Phone:         rec.Phone,
		Mobile:        rec.Mobile,
		Email:         rec.Email,
		BirthDate:     rec.BirthDate,
		Gender:        rec.Gender,
		MemberSince:   dateOr(rec.MemberSince, created),
		MemberUntil:   rec.MemberUntil,
		Status:        rec.Status == nil || *rec.Status,
		Indigence:     rec.Indigence,
		IndigentUntil: rec.IndigentUntil,
		Documents:     rec.Documents,
		Notes:         rec.Notes,
		CreatedOn:     created,
		UpdatedOn:     dateOr(rec.UpdatedOn, today),
	}
	if g.Gender == "" {
		g.Gender = Unknown
	}
	if !rec.Representative.IsZero() {
		rep := rec.Representative
		g.Representative = &rep
	}
	return g
}

// NewAnimal builds the entity for a record owned by guestID.
func NewAnimal(guestID string, rec AnimalRecord, today time.Time) Animal {
	return Animal{
		GuestID:        guestID,
		Species:        rec.Species,
		Breed:          rec.Breed,
		Name:           rec.Name,
		Sex:            orDefault(rec.Sex, Unknown),
		Color:          rec.Color,
		Castrated:      orDefault(rec.Castrated, Unknown),
		Identification: rec.Identification,
		BirthDate:      rec.BirthDate,
		WeightOrSize:   rec.WeightOrSize,
		Illnesses:      rec.Illnesses,
		Intolerances:   rec.Intolerances,
		FoodType:       rec.FoodType,
		CompleteCare:   orDefault(rec.CompleteCare, Unknown),
		LastSeen:       rec.LastSeen,
		Veterinarian:   rec.Veterinarian,
		FoodAmountNote: rec.FoodAmountNote,
		Notes:          rec.Notes,
		Active:         rec.Active == nil || *rec.Active,
		TaxNoticeUntil: rec.TaxNoticeUntil,
		CreatedOn:      dateOr(rec.CreatedOn, today),
		UpdatedOn:      dateOr(rec.UpdatedOn, today),
	}
}

// guestColumns renders persisted guests back into sheet columns.
var guestColumns = map[string]func(Guest) any{
	ColGuestNumber:   func(g Guest) any { return g.Number },
	ColFirstName:     func(g Guest) any { return g.FirstName },
	ColLastName:      func(g Guest) any { return g.LastName },
	ColAddress:       func(g Guest) any { return g.Address },
	ColZip:           func(g Guest) any { return g.Zip },
	ColCity:          func(g Guest) any { return g.City },
	ColPhone:         func(g Guest) any { return g.Phone },
	ColMobile:        func(g Guest) any { return g.Mobile },
	ColEmail:         func(g Guest) any { return g.Email },
	ColBirthDate:     func(g Guest) any { return dateValue(g.BirthDate) },
	ColGender:        func(g Guest) any { return g.Gender },
	ColMemberSince:   func(g Guest) any { return dateValue(&g.MemberSince) },
	ColMemberUntil:   func(g Guest) any { return dateValue(g.MemberUntil) },
	ColStatus:        func(g Guest) any { return boolText(g.Status) },
	ColIndigence:     func(g Guest) any { return g.Indigence },
	ColIndigentUntil: func(g Guest) any { return dateValue(g.IndigentUntil) },
	ColDocuments:     func(g Guest) any { return g.Documents },
	ColNotes:         func(g Guest) any { return g.Notes },
	ColRepName:       func(g Guest) any { return repField(g, func(r *Representative) string { return r.Name }) },
	ColRepPhone:      func(g Guest) any { return repField(g, func(r *Representative) string { return r.Phone }) },
	ColRepEmail:      func(g Guest) any { return repField(g, func(r *Representative) string { return r.Email }) },
	ColRepAddress:    func(g Guest) any { return repField(g, func(r *Representative) string { return r.Address }) },
	ColCreatedOn:     func(g Guest) any { return dateValue(&g.CreatedOn) },
	ColUpdatedOn:     func(g Guest) any { return dateValue(&g.UpdatedOn) },
}

// animalColumns renders persisted animals back into sheet columns.
var animalColumns = map[string]func(AnimalExport) any{
	ColAnimalGuestNum: func(a AnimalExport) any { return a.GuestNumber },
	ColSpecies:        func(a AnimalExport) any { return a.Species },
	ColBreed:          func(a AnimalExport) any { return a.Breed },
	ColAnimalName:     func(a AnimalExport) any { return a.Name },
	ColGender:         func(a AnimalExport) any { return a.Sex },
	ColColor:          func(a AnimalExport) any { return a.Color },
	ColCastrated:      func(a AnimalExport) any { return a.Castrated },
	ColIdentification: func(a AnimalExport) any { return a.Identification },
	ColBirthDate:      func(a AnimalExport) any { return dateValue(a.BirthDate) },
	ColWeightOrSize:   func(a AnimalExport) any { return a.WeightOrSize },
	ColIllnesses:      func(a AnimalExport) any { return a.Illnesses },
	ColIntolerances:   func(a AnimalExport) any { return a.Intolerances },
	ColFoodType:       func(a AnimalExport) any { return a.FoodType },
	ColCompleteCare:   func(a AnimalExport) any { return a.CompleteCare },
	ColLastSeen:       func(a AnimalExport) any { return dateValue(a.LastSeen) },
	ColVeterinarian:   func(a AnimalExport) any { return a.Veterinarian },
	ColFoodAmountNote: func(a AnimalExport) any { return a.FoodAmountNote },
	ColNotes:          func(a AnimalExport) any { return a.Notes },
	ColActive:         func(a AnimalExport) any { return boolText(a.Active) },
	ColTaxNoticeUntil: func(a AnimalExport) any { return dateValue(a.TaxNoticeUntil) },
	ColCreatedOn:      func(a AnimalExport) any { return dateValue(&a.CreatedOn) },
	ColUpdatedOn:      func(a AnimalExport) any { return dateValue(&a.UpdatedOn) },
}

func repField(g Guest, get func(*Representative) string) string {
	if g.Representative == nil {
		return ""
	}
	return get(g.Representative)
}

// dateValue returns nil for unset dates so the cell stays empty.
func dateValue(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

// boolText writes flags the way operators type them, so exports re-import.
func boolText(b bool) string {
	if b {
		return "Ja"
	}
	return "Nein"
}

func dateOr(t *time.Time, def time.Time) time.Time {
	if t == nil {
		return truncateDay(def)
	}
	return *t
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
