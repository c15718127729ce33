package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// Document is the on-disk snapshot format shared by the bundled file and the R2 object.
type Document struct {
	Source      string      `json:"source"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Records     []docRecord `json:"records"`
}

type docRecord struct {
	Commodity   string  `json:"commodity"`
	DisplayName string  `json:"displayName"`
	Category    string  `json:"category"`
	Market      string  `json:"market"`
	District    string  `json:"district"`
	State       string  `json:"state"`
	Variety     string  `json:"variety"`
	Grade       string  `json:"grade"`
	MinPrice    float64 `json:"minPrice"`
	MaxPrice    float64 `json:"maxPrice"`
	ModalPrice  float64 `json:"modalPrice"`
	ArrivalDate string  `json:"arrivalDate"`
	Quantity    float64 `json:"quantity"`
}

// Index is an immutable commodity -> records lookup built from a Document.
type Index struct {
	source      string
	generatedAt time.Time
	byCommodity map[string][]market.PriceRecord
	total       int
}

// Decode parses a snapshot document. Records that violate price invariants are skipped.
func Decode(r io.Reader) (*Index, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return NewIndex(doc), nil
}

// NewIndex builds an Index from an already decoded document.
func NewIndex(doc Document) *Index {
	idx := &Index{
		source:      doc.Source,
		generatedAt: doc.GeneratedAt,
		byCommodity: make(map[string][]market.PriceRecord),
	}
	for _, raw := range doc.Records {
		rec := raw.toRecord(doc.GeneratedAt)
		if rec.Commodity == "" || !rec.Valid() {
			continue
		}
		key := lookupKey(rec.Commodity)
		idx.byCommodity[key] = append(idx.byCommodity[key], rec)
		idx.total++
	}
	return idx
}

// Lookup implements market.SnapshotSource. Unknown commodities return no records.
func (i *Index) Lookup(_ context.Context, commodity string) ([]market.PriceRecord, error) {
	records := i.byCommodity[lookupKey(commodity)]
	return append([]market.PriceRecord(nil), records...), nil
}

// Len returns the number of indexed records.
func (i *Index) Len() int { return i.total }

// GeneratedAt reports when the snapshot was produced.
func (i *Index) GeneratedAt() time.Time { return i.generatedAt }

// Source names where the snapshot came from.
func (i *Index) Source() string { return i.source }

func (r docRecord) toRecord(generatedAt time.Time) market.PriceRecord {
	commodity := strings.TrimSpace(r.Commodity)
	price := r.ModalPrice
	trending, change, changePercent := market.DeriveTrend(price, r.MinPrice, r.MaxPrice)
	return market.PriceRecord{
		Commodity:     commodity,
		DisplayName:   firstNonEmpty(strings.TrimSpace(r.DisplayName), commodity),
		Category:      strings.ToLower(strings.TrimSpace(r.Category)),
		Price:         price,
		MinPrice:      r.MinPrice,
		MaxPrice:      r.MaxPrice,
		Market:        strings.TrimSpace(r.Market),
		District:      strings.TrimSpace(r.District),
		State:         strings.TrimSpace(r.State),
		Unit:          market.UnitPerQuintal,
		Variety:       firstNonEmpty(strings.TrimSpace(r.Variety), market.DefaultVariety),
		Grade:         firstNonEmpty(strings.TrimSpace(r.Grade), market.DefaultGrade),
		ArrivalDate:   parseDate(r.ArrivalDate, generatedAt),
		Quantity:      r.Quantity,
		Trending:      trending,
		Change:        change,
		ChangePercent: changePercent,
		SourceTier:    market.TierStatic,
	}
}

func parseDate(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02", "02/01/2006", time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return fallback
}

func lookupKey(commodity string) string {
	return strings.ToLower(strings.TrimSpace(commodity))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ market.SnapshotSource = (*Index)(nil)
