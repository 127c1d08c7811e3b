// Package memory keeps exported ledger rows in process. It backs the export
// command when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "finanzen/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	years map[int][]ports.Row
}

var _ ports.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{years: map[int][]ports.Row{}}
}

// Upsert replaces the row with r.ID in r's year or appends it.
func (s *Store) Upsert(_ context.Context, r ports.Row) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("ledger row without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	year := r.Date.Year()
	rows := s.years[year]
	if i := slices.IndexFunc(rows, func(x ports.Row) bool { return x.ID == r.ID }); i >= 0 {
		rows[i] = r
		return fmt.Sprintf("mem:%d:%d", year, i+1), nil
	}
	s.years[year] = append(rows, r)
	return fmt.Sprintf("mem:%d:%d", year, len(s.years[year])), nil
}

func (s *Store) Remove(_ context.Context, year int, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.years[year] = slices.DeleteFunc(s.years[year], func(x ports.Row) bool { return x.ID == id })
	return nil
}

// Rows returns a copy of the rows of year in sheet order.
func (s *Store) Rows(year int) []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.years[year])
}
