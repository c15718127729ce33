package pricecache

import (
	"context"
	"time"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// Store persists recent live fetch results keyed by commodity and category.
type Store interface {
	Get(ctx context.Context, key string) ([]market.PriceRecord, bool, error)
	Save(ctx context.Context, key string, records []market.PriceRecord, ttl time.Duration) error
}
