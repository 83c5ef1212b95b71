package core

// numbering.go allocates human-facing guest numbers from an admin-defined
// pattern such as "GT-YYYY-NNNN".
//
// The pattern's last run of N or 0 characters is the counter; its length is
// the zero-padded width. YYYY, YY and MM in the text around it are replaced by
// the current date. Allocation goes through the store's per-scope counter,
// an atomic increment, so two registrations never receive the same number.
// The counter never falls below the highest number already stored, which
// keeps numbers imported from spreadsheets or typed by hand from being
// handed out again.

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SettingGuestNumberFormat is the settings key holding the number pattern.
const SettingGuestNumberFormat = "guestNumberFormat"

// DefaultNumberPattern is used when neither the setting nor the
// configuration provides a pattern.
const DefaultNumberPattern = "GT-YYYY-NNNN"

// NumberPattern is a pattern expanded for one date.
type NumberPattern struct {
	Prefix string
	Suffix string
	Width  int
}

// ParseNumberPattern expands pattern for now.
func ParseNumberPattern(pattern string, now time.Time) (NumberPattern, error) {
	end := strings.LastIndexAny(pattern, "N0")
	if end < 0 {
		return NumberPattern{}, fmt.Errorf("%w: %q has no digit block", ErrInvalidNumberPattern, pattern)
	}
	start := end
	for start > 0 && isCounterChar(pattern[start-1]) {
		start--
	}

	dates := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", now.Year()),
		"YY", fmt.Sprintf("%02d", now.Year()%100),
		"MM", fmt.Sprintf("%02d", int(now.Month())),
	)

	return NumberPattern{
		Prefix: dates.Replace(pattern[:start]),
		Suffix: dates.Replace(pattern[end+1:]),
		Width:  end - start + 1,
	}, nil
}

func isCounterChar(c byte) bool { return c == 'N' || c == '0' }

// Format renders counter n. Counters wider than the pattern are not truncated.
func (p NumberPattern) Format(n int) string {
	return p.Prefix + fmt.Sprintf("%0*d", p.Width, n) + p.Suffix
}

// Scope identifies the counter shared by every number of this shape.
func (p NumberPattern) Scope() string {
	return p.Prefix + "#" + strconv.Itoa(p.Width) + "#" + p.Suffix
}

// Highest returns the largest counter among numbers that match the pattern
// exactly, or 0 when none does.
func (p NumberPattern) Highest(numbers []string) int {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(p.Prefix) +
		`(\d{` + strconv.Itoa(p.Width) + `})` + regexp.QuoteMeta(p.Suffix) + `$`)

	highest := 0
	for _, num := range numbers {
		m := re.FindStringSubmatch(num)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// NumberGenerator allocates guest numbers.
type NumberGenerator struct {
	store          NumberStore
	defaultPattern string
	now            func() time.Time
}

// NewNumberGenerator creates a generator. defaultPattern applies when the
// guestNumberFormat setting is missing or blank; now defaults to time.Now.
func NewNumberGenerator(store NumberStore, defaultPattern string, now func() time.Time) *NumberGenerator {
	if strings.TrimSpace(defaultPattern) == "" {
		defaultPattern = DefaultNumberPattern
	}
	if now == nil {
		now = time.Now
	}
	return &NumberGenerator{store: store, defaultPattern: defaultPattern, now: now}
}

// Pattern returns the pattern currently in effect.
func (g *NumberGenerator) Pattern(ctx context.Context) (string, error) {
	value, ok, err := g.store.Setting(ctx, SettingGuestNumberFormat)
	if err != nil {
		return "", &StorageError{Op: "read number format", Err: err}
	}
	if !ok || strings.TrimSpace(value) == "" {
		return g.defaultPattern, nil
	}
	return strings.TrimSpace(value), nil
}

// Next allocates the next guest number.
func (g *NumberGenerator) Next(ctx context.Context) (string, error) {
	pattern, err := g.Pattern(ctx)
	if err != nil {
		return "", err
	}
	p, err := ParseNumberPattern(pattern, g.now())
	if err != nil {
		return "", err
	}

	existing, err := g.store.GuestNumbersWithAffixes(ctx, p.Prefix, p.Suffix)
	if err != nil {
		return "", &StorageError{Op: "list guest numbers", Err: err}
	}

	n, err := g.store.NextCounter(ctx, p.Scope(), p.Highest(existing))
	if err != nil {
		return "", &StorageError{Op: "advance number counter", Err: err}
	}
	return p.Format(n), nil
}
