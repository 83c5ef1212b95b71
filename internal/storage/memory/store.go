// Package memory provides an in-memory registry store.
//
// It backs the test suites and the STORAGE_DRIVER=memory development mode.
// Transactions buffer their writes and apply them atomically on commit, so a
// failed import leaves the store exactly as it was.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/smoky1337/PfotenRegister/internal/core"
)

// ErrNotFound is returned when a referenced guest does not exist.
var ErrNotFound = errors.New("not found")

// Store is a concurrency-safe in-memory implementation of core.Store.
type Store struct {
	mu       sync.RWMutex
	guests   map[string]core.Guest
	order    []string // guest ids in insertion order
	animals  []core.Animal
	nextID   int64
	settings map[string]core.Setting
	counters map[string]int

	txMu sync.Mutex // serializes transactions
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		guests:   make(map[string]core.Guest),
		settings: make(map[string]core.Setting),
		counters: make(map[string]int),
	}
}

// AddGuest stores g directly, bypassing the import path.
func (s *Store) AddGuest(g core.Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.guests[g.ID]; exists {
		return fmt.Errorf("guest %s: duplicate key", g.ID)
	}
	s.guests[g.ID] = g
	s.order = append(s.order, g.ID)
	return nil
}

// SetSetting stores a setting value.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = core.Setting{Key: key, Value: value}
}

// Guests returns all guests in insertion order.
func (s *Store) Guests() []core.Guest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Guest, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.guests[id])
	}
	return out
}

// Animals returns all animals in insertion order.
func (s *Store) Animals() []core.Animal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.animals)
}

func (s *Store) ExistingGuestNumbers(_ context.Context, numbers []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	have := make(map[string]bool, len(s.guests))
	for _, g := range s.guests {
		have[g.Number] = true
	}
	var out []string
	for _, n := range numbers {
		if have[n] && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) ExistingNames(_ context.Context, names []core.NameKey) ([]core.NameKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	have := make(map[core.NameKey]bool, len(s.guests))
	for _, g := range s.guests {
		have[core.NameKey{FirstName: g.FirstName, LastName: g.LastName}] = true
	}
	var out []core.NameKey
	for _, k := range names {
		if have[k] && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) ExistingPersons(_ context.Context, persons []core.PersonKey) ([]core.PersonKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	have := make(map[core.PersonKey]bool, len(s.guests))
	for _, g := range s.guests {
		have[core.PersonKey{FirstName: g.FirstName, LastName: g.LastName, Address: g.Address}] = true
	}
	var out []core.PersonKey
	for _, k := range persons {
		if have[k] && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) GuestCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.guests[code]
	return ok, nil
}

func (s *Store) Setting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[key]
	return st.Value, ok, nil
}

func (s *Store) GuestNumbersWithAffixes(_ context.Context, prefix, suffix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, g := range s.guests {
		if len(g.Number) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(g.Number, prefix) && strings.HasSuffix(g.Number, suffix) {
			out = append(out, g.Number)
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out, nil
}

func (s *Store) NextCounter(_ context.Context, scope string, floor int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := max(s.counters[scope], floor) + 1
	s.counters[scope] = next
	return next, nil
}

func (s *Store) StreamGuests(ctx context.Context, fn func(core.Guest) error) error {
	for _, g := range s.Guests() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) StreamAnimals(ctx context.Context, fn func(core.AnimalExport) error) error {
	s.mu.RLock()
	rows := make([]core.AnimalExport, 0, len(s.animals))
	for _, a := range s.animals {
		rows = append(rows, core.AnimalExport{Animal: a, GuestNumber: s.guests[a.GuestID].Number})
	}
	s.mu.RUnlock()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListGuests(_ context.Context) ([]core.GuestSummary, error) {
	s.mu.RLock()
	out := make([]core.GuestSummary, 0, len(s.guests))
	for _, g := range s.guests {
		out = append(out, core.GuestSummary{
			ID: g.ID, Number: g.Number, FirstName: g.FirstName, LastName: g.LastName, Status: g.Status,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.GuestSummary) int {
		return cmp.Or(
			cmp.Compare(a.LastName, b.LastName),
			cmp.Compare(a.FirstName, b.FirstName),
			cmp.Compare(a.Number, b.Number),
		)
	})
	return out, nil
}

func (s *Store) UpsertSettings(_ context.Context, settings []core.Setting, overwrite bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, st := range settings {
		if _, exists := s.settings[st.Key]; exists && !overwrite {
			continue
		}
		s.settings[st.Key] = st
		written++
	}
	return written, nil
}

// Truncate empties the named tables. Unknown names are an error and leave
// the store untouched.
func (s *Store) Truncate(_ context.Context, tables ...string) error {
	for _, t := range tables {
		switch t {
		case "guests", "representatives", "animals", "number_counters", "settings":
		default:
			return fmt.Errorf("truncate %q: unknown table", t)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		switch t {
		case "guests":
			clear(s.guests)
			s.order = nil
		case "representatives":
			for id, g := range s.guests {
				g.Representative = nil
				s.guests[id] = g
			}
		case "animals":
			s.animals = nil
			s.nextID = 0
		case "number_counters":
			clear(s.counters)
		case "settings":
			clear(s.settings)
		}
	}
	return nil
}

// WithTx runs fn against a write buffer and applies it if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.ImportTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{store: s, codes: make(map[string]bool)}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range t.guests {
		if _, exists := s.guests[g.ID]; exists {
			return fmt.Errorf("guest %s: duplicate key", g.ID)
		}
	}
	for _, g := range t.guests {
		s.guests[g.ID] = g
		s.order = append(s.order, g.ID)
	}
	for _, a := range t.animals {
		s.nextID++
		a.ID = s.nextID
		s.animals = append(s.animals, a)
	}
	return nil
}

// tx buffers the writes of one transaction.
type tx struct {
	store   *Store
	guests  []core.Guest
	codes   map[string]bool
	animals []core.Animal
}

func (t *tx) GuestCodeExists(ctx context.Context, code string) (bool, error) {
	if t.codes[code] {
		return true, nil
	}
	return t.store.GuestCodeExists(ctx, code)
}

func (t *tx) InsertGuests(ctx context.Context, guests []core.Guest) error {
	for _, g := range guests {
		taken, err := t.GuestCodeExists(ctx, g.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("guest %s: duplicate key", g.ID)
		}
		if g.Representative != nil {
			rep := *g.Representative
			g.Representative = &rep
		}
		t.codes[g.ID] = true
		t.guests = append(t.guests, g)
	}
	return nil
}

func (t *tx) InsertAnimals(ctx context.Context, animals []core.Animal) error {
	for _, a := range animals {
		known, err := t.GuestCodeExists(ctx, a.GuestID)
		if err != nil {
			return err
		}
		if !known {
			return fmt.Errorf("animal %q owner %s: %w", a.Name, a.GuestID, ErrNotFound)
		}
		t.animals = append(t.animals, a)
	}
	return nil
}
