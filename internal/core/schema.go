package core

// Sheet names of the import/export workbook.
const (
	SheetGuests  = "gaeste"
	SheetAnimals = "tiere"
)

// Guest sheet columns.
const (
	ColGuestNumber    = "nummer"
	ColFirstName      = "vorname"
	ColLastName       = "nachname"
	ColAddress        = "adresse"
	ColZip            = "plz"
	ColCity           = "ort"
	ColPhone          = "festnetz"
	ColMobile         = "mobil"
	ColEmail          = "email"
	ColBirthDate      = "geburtsdatum"
	ColGender         = "geschlecht"
	ColMemberSince    = "eintritt"
	ColMemberUntil    = "austritt"
	ColStatus         = "status"
	ColIndigence      = "beduerftigkeit"
	ColIndigentUntil  = "beduerftig_bis"
	ColDocuments      = "dokumente"
	ColNotes          = "notizen"
	ColRepName        = "vertreter_name"
	ColRepPhone       = "vertreter_telefon"
	ColRepEmail       = "vertreter_email"
	ColRepAddress     = "vertreter_adresse"
	ColCreatedOn      = "erstellt_am"
	ColUpdatedOn      = "aktualisiert_am"
	ColAnimalGuestNum = "gast_nummer"
)

// Animal sheet columns not shared with the guest sheet.
const (
	ColSpecies        = "art"
	ColBreed          = "rasse"
	ColAnimalName     = "name"
	ColColor          = "farbe"
	ColCastrated      = "kastriert"
	ColIdentification = "identifikation"
	ColWeightOrSize   = "gewicht_oder_groesse"
	ColIllnesses      = "krankheiten"
	ColIntolerances   = "unvertraeglichkeiten"
	ColFoodType       = "futter"
	ColCompleteCare   = "vollversorgung"
	ColLastSeen       = "zuletzt_gesehen"
	ColVeterinarian   = "tierarzt"
	ColFoodAmountNote = "futtermengeneintrag"
	ColActive         = "aktiv"
	ColTaxNoticeUntil = "steuerbescheid_bis"
)

// Enum vocabularies.
var (
	GuestGenders   = []string{"Frau", "Mann", "Divers", "Unbekannt"}
	AnimalSpecies  = []string{"Hund", "Katze", "Vogel", "Nager", "Sonstige"}
	AnimalSexes    = []string{"M", "F", "Unbekannt"}
	YesNoUnknown   = []string{"Ja", "Nein", "Unbekannt"}
	AnimalFoodType = []string{"Misch", "Trocken", "Nass", "Barf"}
)

// Unknown is the fallback for enums that have an explicit unknown value.
const Unknown = "Unbekannt"

// GuestSheet describes the guest sheet.
var GuestSheet = &SheetSchema{
	Name:    SheetGuests,
	Label:   "Gäste",
	Aliases: []string{"guests"},
	Fields: []FieldSpec{
		{Name: ColGuestNumber, Label: "Nummer", Type: FieldText, Required: true},
		{Name: ColFirstName, Label: "Vorname", Type: FieldText, Required: true},
		{Name: ColLastName, Label: "Nachname", Type: FieldText, Required: true},
		{Name: ColAddress, Label: "Adresse", Type: FieldText},
		{Name: ColZip, Label: "PLZ", Type: FieldText},
		{Name: ColCity, Label: "Ort", Type: FieldText},
		{Name: ColPhone, Label: "Festnetz", Type: FieldText},
		{Name: ColMobile, Label: "Mobil", Type: FieldText},
		{Name: ColEmail, Label: "E-Mail", Type: FieldText},
		{Name: ColBirthDate, Label: "Geburtsdatum", Type: FieldDate},
		{Name: ColGender, Label: "Geschlecht", Type: FieldEnum, EnumValues: GuestGenders, Default: Unknown},
		{Name: ColMemberSince, Label: "Eintritt", Type: FieldDate},
		{Name: ColMemberUntil, Label: "Austritt", Type: FieldDate},
		{Name: ColStatus, Label: "Status", Type: FieldBool, Default: "true"},
		{Name: ColIndigence, Label: "Bedürftigkeit", Type: FieldText},
		{Name: ColIndigentUntil, Label: "Bedürftig bis", Type: FieldDate, Aliases: []string{"beduerftig"}},
		{Name: ColDocuments, Label: "Dokumente", Type: FieldText},
		{Name: ColNotes, Label: "Notizen", Type: FieldText},
		{Name: ColRepName, Label: "Vertreter Name", Type: FieldText},
		{Name: ColRepPhone, Label: "Vertreter Telefon", Type: FieldText},
		{Name: ColRepEmail, Label: "Vertreter E-Mail", Type: FieldText},
		{Name: ColRepAddress, Label: "Vertreter Adresse", Type: FieldText},
		{Name: ColCreatedOn, Label: "Erstellt am", Type: FieldDate},
		{Name: ColUpdatedOn, Label: "Aktualisiert am", Type: FieldDate},
	},
}

// AnimalSheet describes the animal sheet.
var AnimalSheet = &SheetSchema{
	Name:    SheetAnimals,
	Label:   "Tiere",
	Aliases: []string{"animals"},
	Fields: []FieldSpec{
		{Name: ColAnimalGuestNum, Label: "Gastnummer", Type: FieldText},
		{Name: ColSpecies, Label: "Art", Type: FieldEnum, EnumValues: AnimalSpecies},
		{Name: ColBreed, Label: "Rasse", Type: FieldText},
		{Name: ColAnimalName, Label: "Name", Type: FieldText},
		{Name: ColGender, Label: "Geschlecht", Type: FieldEnum, EnumValues: AnimalSexes, Default: Unknown},
		{Name: ColColor, Label: "Farbe", Type: FieldText},
		{Name: ColCastrated, Label: "Kastriert", Type: FieldEnum, EnumValues: YesNoUnknown, Default: Unknown},
		{Name: ColIdentification, Label: "Identifikation", Type: FieldText},
		{Name: ColBirthDate, Label: "Geburtsdatum", Type: FieldDate},
		{Name: ColWeightOrSize, Label: "Gewicht oder Größe", Type: FieldText},
		{Name: ColIllnesses, Label: "Krankheiten", Type: FieldText},
		{Name: ColIntolerances, Label: "Unverträglichkeiten", Type: FieldText},
		{Name: ColFoodType, Label: "Futter", Type: FieldEnum, EnumValues: AnimalFoodType},
		{Name: ColCompleteCare, Label: "Vollversorgung", Type: FieldEnum, EnumValues: YesNoUnknown, Default: Unknown},
		{Name: ColLastSeen, Label: "Zuletzt gesehen", Type: FieldDate},
		{Name: ColVeterinarian, Label: "Tierarzt", Type: FieldText},
		{Name: ColFoodAmountNote, Label: "Futtermengeneintrag", Type: FieldText},
		{Name: ColNotes, Label: "Notizen", Type: FieldText},
		{Name: ColActive, Label: "Aktiv", Type: FieldBool, Default: "true", Aliases: []string{"active"}},
		{Name: ColTaxNoticeUntil, Label: "Steuerbescheid bis", Type: FieldDate},
		{Name: ColCreatedOn, Label: "Erstellt am", Type: FieldDate},
		{Name: ColUpdatedOn, Label: "Aktualisiert am", Type: FieldDate},
	},
}

// SheetSchema is the declarative description of one workbook sheet.
type SheetSchema struct {
	Name    string
	Label   string
	Aliases []string
	Fields  []FieldSpec
}

// Columns returns all column names in sheet order.
func (s *SheetSchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// DateColumns returns the names of date columns.
func (s *SheetSchema) DateColumns() []string {
	var cols []string
	for _, f := range s.Fields {
		if f.Type == FieldDate {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// StringColumns returns every non-date column. Enum and boolean columns are
// read as text and interpreted when the record is built.
func (s *SheetSchema) StringColumns() []string {
	var cols []string
	for _, f := range s.Fields {
		if f.Type != FieldDate {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// Field looks up a column by name.
func (s *SheetSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Spec returns the reader configuration for this sheet.
func (s *SheetSchema) Spec() SheetSpec {
	spec := SheetSpec{
		Name:          s.Name,
		Columns:       s.Columns(),
		DateColumns:   s.DateColumns(),
		StringColumns: s.StringColumns(),
	}
	for _, f := range s.Fields {
		for _, a := range f.Aliases {
			if spec.Aliases == nil {
				spec.Aliases = make(map[string]string)
			}
			spec.Aliases[a] = f.Name
		}
	}
	return spec
}

// enumValue maps raw onto the field's vocabulary.
func (s *SheetSchema) enumValue(col, raw string) string {
	f, ok := s.Field(col)
	if !ok {
		return raw
	}
	return MapEnum(raw, f.EnumValues, f.Default)
}

// boolValue interprets raw for a boolean column; nil means "not given".
func (s *SheetSchema) boolValue(col, raw string) *bool {
	if raw == "" {
		return nil
	}
	f, _ := s.Field(col)
	b := ParseBoolean(raw, f.Default == "true")
	return &b
}
