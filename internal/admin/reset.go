// Package admin provides destructive maintenance operations on the registry.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// Registry tables, children first.
const (
	TableAnimals         = "animals"
	TableRepresentatives = "representatives"
	TableGuests          = "guests"
	TableCounters        = "number_counters"
	TableSettings        = "settings"
)

// Tables lists every table a reset may empty.
var Tables = []string{TableAnimals, TableRepresentatives, TableGuests, TableCounters, TableSettings}

// Truncater empties tables in one step.
type Truncater interface {
	Truncate(ctx context.Context, tables ...string) error
}

// Reset empties the registry. Settings survive unless IncludeSettings is set.
type Reset struct {
	Store           Truncater
	IncludeSettings bool
}

// Targets returns the tables Run empties.
func (r *Reset) Targets() []string {
	if r.IncludeSettings {
		return slices.Clone(Tables)
	}
	return slices.DeleteFunc(slices.Clone(Tables), func(t string) bool { return t == TableSettings })
}

// Run empties the target tables. This cannot be undone.
func (r *Reset) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	tables := r.Targets()
	if err := r.Store.Truncate(ctx, tables...); err != nil {
		return fmt.Errorf("reset registry: %w", err)
	}
	slog.Warn("registry reset", "tables", tables)
	return nil
}
