package market

import "time"

// SourceTier records where a price record came from.
type SourceTier string

const (
	// TierLive marks records fetched from the upstream API.
	TierLive SourceTier = "LIVE"
	// TierStatic marks records served from the bundled snapshot.
	TierStatic SourceTier = "STATIC"
	// TierSynthetic marks generated placeholder records.
	TierSynthetic SourceTier = "SYNTHETIC"
)

// Trend direction values.
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// UnitPerQuintal is the pricing basis of every record.
const UnitPerQuintal = "per quintal"

// PriceRecord is one observation of a commodity at a market on a date.
type PriceRecord struct {
	Commodity     string     `json:"commodity"`
	DisplayName   string     `json:"displayName"`
	Category      string     `json:"category"`
	Price         float64    `json:"price"`
	MinPrice      float64    `json:"minPrice"`
	MaxPrice      float64    `json:"maxPrice"`
	Market        string     `json:"market"`
	District      string     `json:"district"`
	State         string     `json:"state"`
	Unit          string     `json:"unit"`
	Variety       string     `json:"variety"`
	Grade         string     `json:"grade"`
	ArrivalDate   time.Time  `json:"arrivalDate"`
	Quantity      float64    `json:"quantity"`
	Trending      string     `json:"trending"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"changePercent"`
	SourceTier    SourceTier `json:"sourceTier"`
}

// Valid reports whether the record satisfies the price invariants.
func (r PriceRecord) Valid() bool {
	if r.Price <= 0 || r.Quantity < 0 {
		return false
	}
	if r.MinPrice > 0 && r.MaxPrice > 0 {
		return r.MinPrice <= r.Price && r.Price <= r.MaxPrice
	}
	return true
}

// Category groups commodities sharing a broad type and growing season.
type Category struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Icon        string   `json:"icon"`
	SeasonTag   string   `json:"seasonTag"`
	Commodities []string `json:"commodities"`
}

// LoadState tracks lazy loading progress for a category within one generation.
type LoadState string

const (
	StateNotLoaded LoadState = "not_loaded"
	StateLoading   LoadState = "loading"
	StateLoaded    LoadState = "loaded"
)

// CategoryView is a category plus its load flags for the current generation.
type CategoryView struct {
	Category
	Loaded  bool `json:"loaded"`
	Loading bool `json:"loading"`
}

// CommodityStat is derived from the current store snapshot and never persisted.
type CommodityStat struct {
	Commodity       string    `json:"commodity"`
	DisplayName     string    `json:"displayName"`
	Category        string    `json:"category"`
	Prices          []float64 `json:"prices"`
	DistinctStates  []string  `json:"distinctStates"`
	TotalQuantity   float64   `json:"totalQuantity"`
	AvgPrice        float64   `json:"avgPrice"`
	MinPrice        float64   `json:"minPrice"`
	MaxPrice        float64   `json:"maxPrice"`
	PriceVariance   float64   `json:"priceVariance"`
	VolatilityPct   float64   `json:"volatilityPct"`
	DemandScore     float64   `json:"demandScore"`
	ProfitPotential float64   `json:"profitPotential"`
}

// RecommendationType names the five fixed ranking purposes.
type RecommendationType string

const (
	RecommendProfit     RecommendationType = "profit"
	RecommendSeasonal   RecommendationType = "seasonal"
	RecommendDemand     RecommendationType = "demand"
	RecommendNationwide RecommendationType = "nationwide"
	RecommendLowRisk    RecommendationType = "lowrisk"
)

// Priority values for recommendations.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Recommendation is a ranked list of crops for one purpose.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Icon        string             `json:"icon"`
	Crops       []CommodityStat    `json:"crops"`
	Priority    string             `json:"priority"`
}

// Status summarizes the session for the "sample data" banner.
type Status struct {
	SessionID     string `json:"sessionId"`
	Generation    uint64 `json:"generation"`
	UsingFallback bool   `json:"usingFallback"`
	Records       int    `json:"records"`
	Version       uint64 `json:"version"`
}

// DeriveTrend compares price against the midpoint of its daily range. Records
// with no usable range report no change and trend up.
func DeriveTrend(price, minPrice, maxPrice float64) (trending string, change, changePercent float64) {
	midpoint := (minPrice + maxPrice) / 2
	if midpoint <= 0 {
		return TrendUp, 0, 0
	}
	change = price - midpoint
	trending = TrendUp
	if change < 0 {
		trending = TrendDown
	}
	return trending, round2(change), round2(change / midpoint * 100)
}
