package market

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC)
}

func onionStatic() []PriceRecord {
	base := PriceRecord{Commodity: "Onion", DisplayName: "Onion", Unit: UnitPerQuintal, SourceTier: TierStatic}
	mk := func(price, qty float64, state string) PriceRecord {
		rec := base
		rec.Price, rec.MinPrice, rec.MaxPrice = price, price-300, price+300
		rec.Quantity = qty
		rec.State = state
		return rec
	}
	return []PriceRecord{
		mk(5127, 514, "Maharashtra"),
		mk(5068, 910, "Karnataka"),
		mk(5429, 934, "Tamil Nadu"),
	}
}

// countingGateway fails every fetch and counts calls per commodity.
type countingGateway struct {
	mu     sync.Mutex
	calls  map[string]int
	result func(commodity string) FetchResult
}

func newCountingGateway() *countingGateway {
	return &countingGateway{calls: make(map[string]int)}
}

func (g *countingGateway) Fetch(_ context.Context, commodity, _ string) FetchResult {
	g.mu.Lock()
	g.calls[commodity]++
	g.mu.Unlock()
	if g.result != nil {
		return g.result(commodity)
	}
	return FetchResult{}
}

func (g *countingGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

type mapSnapshot map[string][]PriceRecord

func (m mapSnapshot) Lookup(_ context.Context, commodity string) ([]PriceRecord, error) {
	return m[commodity], nil
}

func newTestCascade(gw Gateway, snap SnapshotSource, registry *Registry) *Cascade {
	c, err := NewCascade(gw, snap, NewSynthesizerWithRand(newRand(7), fixedNow), registry, nil, testLogger())
	if err != nil {
		panic(err)
	}
	return c
}
