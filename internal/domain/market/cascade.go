package market

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// DefaultRecordsPerCommodity bounds how many records a resolution keeps.
const DefaultRecordsPerCommodity = 5

// Resolution is the output of the fallback cascade for one commodity.
type Resolution struct {
	Commodity string
	Category  string
	Tier      SourceTier
	Records   []PriceRecord
}

// UsedFallback reports whether the bundled or synthetic tier served the records.
func (r Resolution) UsedFallback() bool {
	return r.Tier != TierLive
}

// Cascade resolves a commodity through live, bundled and synthetic tiers in that order.
type Cascade struct {
	gateway  Gateway
	snapshot SnapshotSource
	synth    *Synthesizer
	registry *Registry
	recorder Recorder
	logger   *slog.Logger
}

// NewCascade wires the tiers. Missing tiers are a configuration defect and fail here.
func NewCascade(gateway Gateway, snapshot SnapshotSource, synth *Synthesizer, registry *Registry, recorder Recorder, logger *slog.Logger) (*Cascade, error) {
	if gateway == nil {
		return nil, errors.New("market cascade requires a gateway")
	}
	if snapshot == nil {
		return nil, errors.New("market cascade requires a snapshot source")
	}
	if synth == nil {
		return nil, errors.New("market cascade requires a synthesizer")
	}
	if registry == nil {
		return nil, errors.New("market cascade requires a category registry")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Cascade{
		gateway:  gateway,
		snapshot: snapshot,
		synth:    synth,
		registry: registry,
		recorder: recorder,
		logger:   logger.With("component", "market.cascade"),
	}, nil
}

// Resolve returns up to count records for commodity. The result is empty only
// when count is not positive.
func (c *Cascade) Resolve(ctx context.Context, commodity, category string, count int) Resolution {
	commodity = strings.TrimSpace(commodity)
	if category == "" {
		category = c.registry.Resolve(commodity)
	}
	if count <= 0 {
		count = DefaultRecordsPerCommodity
	}

	if live := c.gateway.Fetch(ctx, commodity, category); live.OK {
		if records := usable(live.Records, count); len(records) > 0 {
			c.recorder.ObserveResolution(string(TierLive))
			return Resolution{Commodity: commodity, Category: category, Tier: TierLive, Records: records}
		}
	}

	bundled, err := c.snapshot.Lookup(ctx, commodity)
	if err != nil {
		c.logger.Warn("snapshot lookup failed", "commodity", commodity, "error", err)
	}
	if records := usable(bundled, count); len(records) > 0 {
		for i := range records {
			records[i].Commodity = commodity
			if records[i].Category == "" {
				records[i].Category = category
			}
		}
		c.logger.Debug("serving bundled snapshot", "commodity", commodity, "records", len(records))
		c.recorder.ObserveResolution(string(TierStatic))
		return Resolution{Commodity: commodity, Category: category, Tier: TierStatic, Records: records}
	}

	c.logger.Debug("serving synthetic records", "commodity", commodity, "count", count)
	c.recorder.ObserveResolution(string(TierSynthetic))
	return Resolution{
		Commodity: commodity,
		Category:  category,
		Tier:      TierSynthetic,
		Records:   c.synth.Generate(commodity, category, count),
	}
}

func usable(records []PriceRecord, limit int) []PriceRecord {
	out := make([]PriceRecord, 0, min(len(records), limit))
	for _, rec := range records {
		if len(out) == limit {
			break
		}
		if rec.Valid() {
			out = append(out, rec)
		}
	}
	return out
}
