package postgres

import (
	"testing"
	"time"
)

func TestToText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
	}{
		{"Hauptstr. 1", true},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		got := toText(tt.input)
		if got.Valid != tt.wantValid {
			t.Errorf("toText(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
		}
		if got.Valid && got.String != tt.input {
			t.Errorf("toText(%q).String = %q", tt.input, got.String)
		}
		if back := fromText(got); tt.wantValid && back != tt.input {
			t.Errorf("fromText(toText(%q)) = %q", tt.input, back)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	day := time.Date(1980, time.May, 17, 0, 0, 0, 0, time.UTC)

	if got := fromDate(toDate(&day)); got == nil || !got.Equal(day) {
		t.Errorf("round trip = %v, want %v", got, day)
	}
	if toDate(nil).Valid {
		t.Error("toDate(nil) is valid")
	}
	if toDate(&time.Time{}).Valid {
		t.Error("toDate(zero) is valid")
	}
	if fromDate(toDate(nil)) != nil {
		t.Error("fromDate(NULL) != nil")
	}
	if !toRequiredDate(day).Valid {
		t.Error("toRequiredDate is not valid")
	}
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		prefix, suffix string
		want           string
	}{
		{"GT-2025-", "", "GT-2025-%"},
		{"P", "S", "P%S"},
		{"", "", "%"},
		{"50%_", "", `50\%\_%`},
		{`A\`, "_x", `A\\%\_x`},
	}
	for _, tt := range tests {
		if got := likePattern(tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("likePattern(%q, %q) = %q, want %q", tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestAffixLength(t *testing.T) {
	tests := []struct {
		prefix, suffix string
		want           int
	}{
		{"GT-2025-", "", 8},
		{"GÄ-", "", 3},
		{"Ü", "-ß", 3},
		{"", "", 0},
	}
	for _, tt := range tests {
		if got := affixLength(tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("affixLength(%q, %q) = %d, want %d", tt.prefix, tt.suffix, got, tt.want)
		}
	}
}
