package market

import (
	"context"
	"time"
)

// FetchResult is the outcome of a single upstream request. OK is false on any failure.
type FetchResult struct {
	Records []PriceRecord
	OK      bool
}

// Gateway fetches live price records for one commodity. Implementations never return errors.
type Gateway interface {
	Fetch(ctx context.Context, commodity, category string) FetchResult
}

// SnapshotSource serves bundled price records keyed by commodity.
type SnapshotSource interface {
	Lookup(ctx context.Context, commodity string) ([]PriceRecord, error)
}

// BatchEvent describes one accepted loader batch.
type BatchEvent struct {
	SessionID  string       `json:"sessionId"`
	Generation uint64       `json:"generation"`
	Category   string       `json:"category"`
	Batch      int          `json:"batch"`
	Records    int          `json:"records"`
	Tiers      []SourceTier `json:"tiers"`
	IngestedAt time.Time    `json:"ingestedAt"`
}

// EventPublisher announces ingested batches to downstream consumers.
type EventPublisher interface {
	PublishBatch(ctx context.Context, event BatchEvent) error
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveFetch(outcome string)
	ObserveResolution(tier string)
	ObserveBatch(category string, elapsed time.Duration, records int)
	ObserveStaleDrop(records int)
	SetStoreSize(records int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string) {}
func (nopRecorder) ObserveResolution(string) {}
func (nopRecorder) ObserveBatch(string, time.Duration, int) {}
func (nopRecorder) ObserveStaleDrop(int) {}
func (nopRecorder) SetStoreSize(int) {}

type nopPublisher struct{}

func (nopPublisher) PublishBatch(context.Context, BatchEvent) error { return nil }
