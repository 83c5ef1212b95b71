package core

// error_messages.go turns errors into operator-facing messages with a code
// that can be quoted to support.
//
// Typed errors from this package are mapped first. Everything else, mostly
// driver errors wrapped in a StorageError, is matched case-insensitively
// against known patterns; the first match wins.
//
//	DB001-DB007    store constraints and connectivity
//	IMP001-IMP004  workbook reading and import writes
//	VAL001-VAL003  hard validation failures
//	FILE001-FILE005 upload files
//	UPL001-UPL005  upload session and request lifecycle
//	EXP001-EXP002  export
//	RATE001        throttling
//	ERR000         anything else; check the logs for the technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage is what an operator sees for an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgDuplicateInFile = UserMessage{
		Message: "The file contains the same guest number more than once",
		Action:  "Make every guest number in the file unique and upload it again",
		Code:    "VAL001",
	}
	msgNumberExists = UserMessage{
		Message: "Some guest numbers are already registered",
		Action:  "Remove or renumber these guests in the file",
		Code:    "VAL002",
	}
	msgStorage = UserMessage{
		Message: "The data could not be saved; nothing was changed",
		Action:  "Please try again or contact support",
		Code:    "IMP003",
	}
	msgUnreadable = UserMessage{
		Message: "The workbook could not be read",
		Action:  "Save the file again as .xlsx and upload it",
		Code:    "IMP002",
	}
)

// sentinelMessages are checked with errors.Is, in order.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrSheetNotFound, UserMessage{
		Message: "The workbook is missing a required sheet",
		Action:  "The workbook needs the sheets gaeste and tiere; download the template",
		Code:    "IMP001",
	}},
	{ErrInvalidNumberPattern, UserMessage{
		Message: "The guest number format setting is invalid",
		Action:  "Set guestNumberFormat to a pattern with a digit block such as GT-YYYY-NNNN",
		Code:    "IMP004",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller workbooks",
		Code:    "FILE001",
	}},
	{ErrInvalidFileType, UserMessage{
		Message: "Only .xlsx workbooks can be imported",
		Action:  "Save the file as Excel workbook (.xlsx)",
		Code:    "FILE002",
	}},
	{ErrInvalidPath, UserMessage{
		Message: "Invalid file reference",
		Action:  "Upload the file again",
		Code:    "FILE003",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a workbook with data rows",
		Code:    "FILE005",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Another import is running",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{ErrUploadNotFound, UserMessage{
		Message: "Uploaded file not found",
		Action:  "The upload may have been imported or removed. Please upload the file again",
		Code:    "UPL003",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}},
	{ErrNothingToExport, UserMessage{
		Message: "Nothing selected for export",
		Action:  "Select at least one column of guests or animals",
		Code:    "EXP001",
	}},
	{ErrBadExportRequest, UserMessage{
		Message: "The export request could not be read",
		Action:  "Send a JSON body with tables and columns",
		Code:    "EXP002",
	}},
}

// errorPatterns are matched against the lower-cased error text, in order.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Please try the import again",
		Code:    "DB001",
	}},
	{"unique constraint", UserMessage{
		Message: "This value must be unique but already exists",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{"violates unique", UserMessage{
		Message: "A duplicate value was found",
		Action:  "Check for duplicate entries in your file",
		Code:    "DB002",
	}},
	{"foreign key", UserMessage{
		Message: "Referenced guest does not exist",
		Action:  "Make sure every animal belongs to a guest of the same file",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB007",
	}},
	{"required field", UserMessage{
		Message: "Required field is empty",
		Action:  "Fill in nummer, vorname and nachname for every guest",
		Code:    "VAL003",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Please select an .xlsx file to upload",
		Code:    "FILE004",
	}},
	{"upload cancelled", UserMessage{
		Message: "Upload was cancelled",
		Action:  "Start a new upload when ready",
		Code:    "UPL001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to an operator message. A nil error maps to the
// zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		if len(verr.DuplicateNumbers) > 0 {
			return msgDuplicateInFile
		}
		return msgNumberExists
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		return msgUnreadable
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(text, ep.pattern) {
			return ep.msg
		}
	}

	var se *StorageError
	if errors.As(err, &se) {
		return msgStorage
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
