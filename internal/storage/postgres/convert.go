package postgres

// convert.go maps between domain values and pgtype values. Empty strings and
// nil dates are stored as NULL; NULL reads back as "" or nil.

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// toText converts a string to pgtype.Text, NULL when blank.
func toText(s string) pgtype.Text {
	if strings.TrimSpace(s) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toDate converts an optional date to pgtype.Date.
func toDate(t *time.Time) pgtype.Date {
	if t == nil || t.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func toRequiredDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}

func fromText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func fromDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// likePattern builds a LIKE pattern matching values that begin with prefix
// and end with suffix. Wildcards in either are escaped with a backslash.
func likePattern(prefix, suffix string) string {
	return escapeLike(prefix) + "%" + escapeLike(suffix)
}

// affixLength is the minimum length of a value carrying both affixes, in
// characters as counted by length().
func affixLength(prefix, suffix string) int {
	return utf8.RuneCountInString(prefix) + utf8.RuneCountInString(suffix)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
