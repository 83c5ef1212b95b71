// Package core implements the spreadsheet import and export pipeline of the
// registry: guests and their animals move between .xlsx workbooks and the
// store.
//
// # Pipeline
//
// A workbook has the sheets gaeste and tiere, described by [GuestSheet] and
// [AnimalSheet]. The flow is:
//
//  1. [Records] streams a sheet row by row, normalizing cells on the way
//     (see [NormalizeDate], [NormalizeString]).
//  2. [Validator.Validate] scans the file read-only and reports duplicate or
//     already registered guest numbers (hard failures) and soft findings such
//     as known names and animals without a guest.
//  3. [Importer.Import] writes guests and animals in batches inside one store
//     transaction. Guests receive an opaque key from [GenerateUniqueCode];
//     animals are linked through the guest numbers of the same file only.
//  4. [Exporter.Build] writes selected columns back into a workbook that the
//     importer accepts again.
//
// [NumberGenerator] hands out display numbers for new registrations from the
// guestNumberFormat setting.
//
// # Errors
//
// Failures are typed ([ParseError], [ValidationError], [StorageError]) or
// sentinels; [MapError] turns any of them into a coded [UserMessage].
//
// [Service] bundles all of this for the HTTP server and the CLI.
package core
