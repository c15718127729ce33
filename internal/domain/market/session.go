package market

import (
	"sync"

	"github.com/google/uuid"
)

type storedRecord struct {
	record     PriceRecord
	generation uint64
	load       string
	fallback   bool
}

// Snapshot is an immutable copy of the store taken under the read lock.
type Snapshot struct {
	Generation    uint64
	Version       uint64
	UsingFallback bool
	Records       []PriceRecord
}

// Session owns the append-only price store for one user-visible data session.
// Every mutation goes through Accept, Reset or the load-state methods.
type Session struct {
	mu            sync.RWMutex
	id            uuid.UUID
	generation    uint64
	version       uint64
	usingFallback bool
	records       []storedRecord
	states        map[string]LoadState
}

// NewSession starts at generation 0 with an empty store.
func NewSession() *Session {
	return &Session{
		id:     uuid.New(),
		states: make(map[string]LoadState),
	}
}

// ID identifies the session in logs and API responses.
func (s *Session) ID() string {
	return s.id.String()
}

// Generation returns the current generation counter.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// UsingFallback reports whether a non-live record is held in this generation.
// Resolutions that contribute no records never set it.
func (s *Session) UsingFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usingFallback
}

// Accept appends a resolution issued under generation. Results from an older
// generation are dropped and reported with ok=false.
func (s *Session) Accept(generation uint64, res Resolution) (accepted int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return 0, false
	}
	for _, rec := range res.Records {
		if !rec.Valid() {
			continue
		}
		fallback := res.UsedFallback() || rec.SourceTier != TierLive
		s.records = append(s.records, storedRecord{record: rec, generation: generation, load: res.Category, fallback: fallback})
		s.usingFallback = s.usingFallback || fallback
		accepted++
	}
	if accepted > 0 {
		s.version++
	}
	return accepted, true
}

// Size returns the number of records in the current generation.
func (s *Session) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot copies the records of the current generation.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PriceRecord, 0, len(s.records))
	for _, stored := range s.records {
		if stored.generation == s.generation {
			out = append(out, stored.record)
		}
	}
	return Snapshot{
		Generation:    s.generation,
		Version:       s.version,
		UsingFallback: s.usingFallback,
		Records:       out,
	}
}

// Reset starts a new generation: the store, load states and fallback flag are cleared.
func (s *Session) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.version++
	s.usingFallback = false
	s.records = nil
	s.states = make(map[string]LoadState)
	return s.generation
}

// LoadState returns the lazy-load state of a category in the current generation.
func (s *Session) LoadState(category string) LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[category]; ok {
		return state
	}
	return StateNotLoaded
}

// BeginLoading moves a category from NotLoaded to Loading and returns the
// generation the load belongs to. started is false when the category is
// already loading or loaded.
func (s *Session) BeginLoading(category string) (generation uint64, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[category]; ok && state != StateNotLoaded {
		return s.generation, false
	}
	s.states[category] = StateLoading
	return s.generation, true
}

// FinishLoading marks a category Loaded if generation is still current.
func (s *Session) FinishLoading(category string, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.states[category] = StateLoaded
	return true
}

// AbandonLoading returns an interrupted category to NotLoaded and discards the
// records its partial load appended, so a retry does not duplicate them. The
// fallback flag is recomputed from the records that remain.
func (s *Session) AbandonLoading(category string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.states[category] != StateLoading {
		return
	}
	delete(s.states, category)
	kept := s.records[:0]
	for _, stored := range s.records {
		if stored.load != category {
			kept = append(kept, stored)
		}
	}
	if len(kept) != len(s.records) {
		clear(s.records[len(kept):])
		s.records = kept
		s.usingFallback = anyFallback(kept)
		s.version++
	}
}

func anyFallback(records []storedRecord) bool {
	for _, stored := range records {
		if stored.fallback {
			return true
		}
	}
	return false
}
