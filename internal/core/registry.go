package core

import (
	"fmt"
	"strings"
	"sync"
)

var (
	registry   = make(map[string]*SheetSchema)
	registryMu sync.RWMutex
)

func init() {
	Register(GuestSheet)
	Register(AnimalSheet)
}

// Register adds a sheet schema under its name and aliases.
// Panics if any of them is already registered.
func Register(s *SheetSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, key := range append([]string{s.Name}, s.Aliases...) {
		key = strings.ToLower(key)
		if _, exists := registry[key]; exists {
			panic(fmt.Sprintf("sheet already registered: %s", key))
		}
		registry[key] = s
	}
}

// Schema returns a sheet schema by name or alias, case-insensitively.
func Schema(name string) (*SheetSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Schemas returns the workbook sheets in workbook order.
func Schemas() []*SheetSchema {
	return []*SheetSchema{GuestSheet, AnimalSheet}
}
