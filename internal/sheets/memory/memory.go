package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lifedash/internal/core"
	ports "lifedash/internal/sheets"
)

// Store is an in-process stand-in for the spreadsheet mirror, used by the
// sync worker when no spreadsheet is configured and in tests.
type Store struct {
	mu    sync.Mutex
	years map[int]map[string]core.Transaction
}

var (
	_ ports.TransactionWriter = (*Store)(nil)
	_ ports.TransactionLister = (*Store)(nil)
)

func New() *Store {
	return &Store{years: map[int]map[string]core.Transaction{}}
}

// Upsert stores tx and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		return "", fmt.Errorf("transaction without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	year := tx.Date.Year()
	if s.years[year] == nil {
		s.years[year] = map[string]core.Transaction{}
	}
	s.years[year][tx.ID] = tx
	return fmt.Sprintf("mem:%d:%s", year, tx.ID), nil
}

func (s *Store) Delete(_ context.Context, id string, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.years[year], id)
	return nil
}

// ListTransactions returns the month's transactions ordered by date, then ID.
func (s *Store) ListTransactions(_ context.Context, year int, month int) ([]core.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.years[year] {
		if int(tx.Date.Month()) == month {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len returns the number of mirrored transactions across all years.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.years {
		n += len(m)
	}
	return n
}
