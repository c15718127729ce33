package snapshot

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// maxPostgresRows caps how many snapshot rows one lookup reads.
const maxPostgresRows = 20

// PostgresSource serves snapshot records from the price_snapshots table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource constructs the source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Lookup returns the most recent snapshot rows for commodity.
func (s *PostgresSource) Lookup(ctx context.Context, commodity string) ([]market.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT commodity, category, market, district, state, variety, grade,
		       min_price, max_price, modal_price, arrival_date, arrivals_qtl
		FROM price_snapshots
		WHERE lower(commodity) = $1
		ORDER BY arrival_date DESC, modal_price DESC
		LIMIT $2
	`, lookupKey(commodity), maxPostgresRows)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.PriceRecord
	for rows.Next() {
		rec, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		if rec.Valid() {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

// scanSnapshotRow reads one row. Only commodity, modal_price and arrival_date
// are NOT NULL in price_snapshots; the rest may be missing.
func scanSnapshotRow(row pgx.Row) (market.PriceRecord, error) {
	var (
		raw                            docRecord
		category, mkt, district, state *string
		variety, grade                 *string
		minPrice, maxPrice, quantity   *float64
		arrival                        time.Time
	)
	if err := row.Scan(
		&raw.Commodity,
		&category,
		&mkt,
		&district,
		&state,
		&variety,
		&grade,
		&minPrice,
		&maxPrice,
		&raw.ModalPrice,
		&arrival,
		&quantity,
	); err != nil {
		return market.PriceRecord{}, err
	}
	raw.Category = deref(category)
	raw.Market = deref(mkt)
	raw.District = deref(district)
	raw.State = deref(state)
	raw.Variety = deref(variety)
	raw.Grade = deref(grade)
	raw.MinPrice = deref(minPrice)
	raw.MaxPrice = deref(maxPrice)
	raw.Quantity = deref(quantity)

	rec := raw.toRecord(arrival)
	rec.ArrivalDate = arrival
	return rec, nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

var _ market.SnapshotSource = (*PostgresSource)(nil)
