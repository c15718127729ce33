package snapshot

import (
	"context"
	"log/slog"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// Chain consults primary first and falls back to secondary when primary
// errors or has nothing for the commodity.
type Chain struct {
	primary   market.SnapshotSource
	secondary market.SnapshotSource
	logger    *slog.Logger
}

// NewChain builds a two-level snapshot source.
func NewChain(primary, secondary market.SnapshotSource, logger *slog.Logger) *Chain {
	return &Chain{primary: primary, secondary: secondary, logger: logger.With("component", "snapshot.chain")}
}

// Lookup implements market.SnapshotSource.
func (c *Chain) Lookup(ctx context.Context, commodity string) ([]market.PriceRecord, error) {
	records, err := c.primary.Lookup(ctx, commodity)
	if err != nil {
		c.logger.Warn("primary snapshot lookup failed", "commodity", commodity, "error", err)
	}
	if err == nil && len(records) > 0 {
		return records, nil
	}
	return c.secondary.Lookup(ctx, commodity)
}

var _ market.SnapshotSource = (*Chain)(nil)
