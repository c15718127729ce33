package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/yanqian/agri-market/pkg/errors"
)

// Loader defaults.
const (
	DefaultBatchSize  = 3
	DefaultBatchDelay = 100 * time.Millisecond
)

// LoaderConfig controls batching of category loads.
type LoaderConfig struct {
	BatchSize           int
	BatchDelay          time.Duration
	RecordsPerCommodity int
}

type resolver interface {
	Resolve(ctx context.Context, commodity, category string, count int) Resolution
}

// Loader expands categories on demand, feeding resolutions into the session.
type Loader struct {
	cfg       LoaderConfig
	cascade   resolver
	session   *Session
	registry  *Registry
	publisher EventPublisher
	recorder  Recorder
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewLoader builds a loader bound to one session.
func NewLoader(cfg LoaderConfig, cascade *Cascade, session *Session, registry *Registry, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *Loader {
	return newLoader(cfg, cascade, session, registry, publisher, recorder, logger)
}

func newLoader(cfg LoaderConfig, cascade resolver, session *Session, registry *Registry, publisher EventPublisher, recorder Recorder, logger *slog.Logger) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RecordsPerCommodity <= 0 {
		cfg.RecordsPerCommodity = DefaultRecordsPerCommodity
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Loader{
		cfg:       cfg,
		cascade:   cascade,
		session:   session,
		registry:  registry,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.With("component", "market.loader"),
		sleep:     sleepContext,
	}
}

// Expand loads every commodity of category in sequential batches. It returns
// started=false when the category is already loading or loaded in this generation.
func (l *Loader) Expand(ctx context.Context, category string) (bool, error) {
	cat, ok := l.registry.Category(category)
	if !ok {
		return false, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown category %q", category), nil)
	}
	generation, started := l.session.BeginLoading(cat.Key)
	if !started {
		l.logger.Debug("category already expanded", "category", cat.Key, "generation", generation)
		return false, nil
	}

	batches := partition(cat.Commodities, l.cfg.BatchSize)
	l.logger.Info("category load start", "category", cat.Key, "generation", generation, "commodities", len(cat.Commodities), "batches", len(batches))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			l.session.AbandonLoading(cat.Key, generation)
			return true, err
		}
		if l.session.Generation() != generation {
			l.logger.Info("category load superseded by refresh", "category", cat.Key, "generation", generation, "batch", i)
			return true, nil
		}
		if !l.runBatch(ctx, cat.Key, generation, i, batch) {
			l.logger.Info("category load superseded by refresh", "category", cat.Key, "generation", generation, "batch", i)
			return true, nil
		}
		if i < len(batches)-1 {
			if err := l.sleep(ctx, l.cfg.BatchDelay); err != nil {
				l.session.AbandonLoading(cat.Key, generation)
				return true, err
			}
		}
	}

	if l.session.FinishLoading(cat.Key, generation) {
		l.logger.Info("category load complete", "category", cat.Key, "generation", generation)
	}
	return true, nil
}

// runBatch fans the batch out, waits for every commodity and appends the
// results. It returns false when the generation moved on.
func (l *Loader) runBatch(ctx context.Context, category string, generation uint64, index int, batch []string) bool {
	start := time.Now()
	results := make([]Resolution, len(batch))

	var group errgroup.Group
	group.SetLimit(len(batch))
	for i, commodity := range batch {
		group.Go(func() error {
			results[i] = l.resolve(ctx, commodity, category)
			return nil
		})
	}
	_ = group.Wait()

	var (
		accepted int
		stale    bool
		tiers    = make([]SourceTier, 0, len(results))
	)
	for _, res := range results {
		n, ok := l.session.Accept(generation, res)
		if !ok {
			stale = true
			l.recorder.ObserveStaleDrop(len(res.Records))
			continue
		}
		accepted += n
		tiers = append(tiers, res.Tier)
	}
	if stale {
		l.logger.Debug("dropped stale batch", "category", category, "generation", generation, "batch", index)
		return false
	}

	l.recorder.ObserveBatch(category, time.Since(start), accepted)
	l.recorder.SetStoreSize(l.session.Size())

	event := BatchEvent{
		SessionID:  l.session.ID(),
		Generation: generation,
		Category:   category,
		Batch:      index,
		Records:    accepted,
		Tiers:      tiers,
		IngestedAt: time.Now().UTC(),
	}
	if err := l.publisher.PublishBatch(ctx, event); err != nil {
		l.logger.Warn("batch event publish failed", "category", category, "batch", index, "error", err)
	}
	return true
}

// resolve isolates one commodity so a panic cannot abort its batch.
func (l *Loader) resolve(ctx context.Context, commodity, category string) (res Resolution) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("commodity resolution panicked", "commodity", commodity, "category", category, "panic", r)
			res = Resolution{Commodity: commodity, Category: category, Tier: TierSynthetic}
		}
	}()
	return l.cascade.Resolve(ctx, commodity, category, l.cfg.RecordsPerCommodity)
}

func partition(items []string, size int) [][]string {
	batches := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
