package pricecache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// Gateway serves recent successful live fetches from a Store before calling upstream.
// Failed or empty fetches are never cached so the cascade keeps falling back.
type Gateway struct {
	next   market.Gateway
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewGateway wraps next with a read-through cache.
func NewGateway(next market.Gateway, store Store, ttl time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "pricecache"),
	}
}

// Fetch implements market.Gateway.
func (g *Gateway) Fetch(ctx context.Context, commodity, category string) market.FetchResult {
	key := cacheKey(commodity, category)
	records, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("price cache read failed", "key", key, "error", err)
	}
	if ok && len(records) > 0 {
		g.logger.Debug("price cache hit", "key", key, "records", len(records))
		return market.FetchResult{Records: records, OK: true}
	}

	res := g.next.Fetch(ctx, commodity, category)
	if !res.OK || len(res.Records) == 0 {
		return res
	}
	if err := g.store.Save(ctx, key, res.Records, g.ttl); err != nil {
		g.logger.Warn("price cache write failed", "key", key, "error", err)
	}
	return res
}

func cacheKey(commodity, category string) string {
	commodity = strings.ToLower(strings.TrimSpace(commodity))
	category = strings.ToLower(strings.TrimSpace(category))
	return category + ":" + commodity
}

var _ market.Gateway = (*Gateway)(nil)
