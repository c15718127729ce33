package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/agri-market/internal/domain/market"
)

type entry struct {
	records   []market.PriceRecord
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]market.PriceRecord, bool, error) {
	s.mu.RLock()
	item, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && item.expiresAt.Before(s.now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return append([]market.PriceRecord(nil), item.records...), true, nil
}

// Save caches records with an optional TTL.
func (s *MemoryStore) Save(_ context.Context, key string, records []market.PriceRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.entries[key] = entry{
		records:   append([]market.PriceRecord(nil), records...),
		expiresAt: exp,
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
