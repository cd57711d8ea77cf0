package ingest

import (
	"fmt"
	"sort"

	"github.com/dwhitley/personabench/internal/domain"
)

// MemoryStore implements domain.MarketStore over records held in memory for
// the life of a run. Records are read-only after construction, so the store
// needs no locking for its unlimited concurrent readers.
type MemoryStore struct {
	byTicker map[string]*domain.MarketRecord
	ordered  []*domain.MarketRecord
}

// NewMemoryStore builds a store from the given records, ordered by resolution
// time (ties broken by ticker) so every iteration of the benchmark set is
// deterministic.
func NewMemoryStore(records []*domain.MarketRecord) *MemoryStore {
	ordered := append([]*domain.MarketRecord(nil), records...)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].ClosedAt.Equal(ordered[j].ClosedAt) {
			return ordered[i].ClosedAt.Before(ordered[j].ClosedAt)
		}
		return ordered[i].Ticker < ordered[j].Ticker
	})

	byTicker := make(map[string]*domain.MarketRecord, len(ordered))
	for _, r := range ordered {
		byTicker[r.Ticker] = r
	}
	return &MemoryStore{byTicker: byTicker, ordered: ordered}
}

// Get returns the record for ticker or domain.ErrNotFound.
func (s *MemoryStore) Get(ticker string) (*domain.MarketRecord, error) {
	r, ok := s.byTicker[ticker]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", ticker, domain.ErrNotFound)
	}
	return r, nil
}

// List returns all records in resolution order.
func (s *MemoryStore) List() []*domain.MarketRecord {
	return append([]*domain.MarketRecord(nil), s.ordered...)
}

// Count returns the number of admitted markets.
func (s *MemoryStore) Count() int {
	return len(s.ordered)
}
