package market

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// syntheticSpread is the distance between the generated price and its min/max.
const syntheticSpread = 200.0

type priceBand struct {
	low, high float64
}

// Base price bands per category, in rupees per quintal. They only keep generated
// placeholders in a plausible range and carry no market signal.
var syntheticBands = map[string]priceBand{
	"vegetables":   {low: 1000, high: 3000},
	"grains":       {low: 1800, high: 3000},
	"pulses":       {low: 5000, high: 8000},
	"spices":       {low: 6000, high: 14000},
	"fruits":       {low: 3000, high: 8000},
	"oilseeds":     {low: 4000, high: 7000},
	"cashcrops":    {low: 2500, high: 7500},
	OthersCategory: {low: 2000, high: 5000},
}

const syntheticMaxOffset = 300.0

type syntheticMarket struct {
	market, district, state string
}

var syntheticMarkets = []syntheticMarket{
	{market: "Azadpur", district: "Delhi", state: "NCT of Delhi"},
	{market: "Vashi APMC", district: "Thane", state: "Maharashtra"},
	{market: "Lasalgaon", district: "Nashik", state: "Maharashtra"},
	{market: "Yeshwanthpur", district: "Bangalore", state: "Karnataka"},
	{market: "Koyambedu", district: "Chennai", state: "Tamil Nadu"},
	{market: "Bowenpally", district: "Hyderabad", state: "Telangana"},
	{market: "Indore", district: "Indore", state: "Madhya Pradesh"},
	{market: "Kota", district: "Kota", state: "Rajasthan"},
}

// Synthesizer generates placeholder records when no live or bundled data exists.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewSynthesizer builds a generator backed by a seeded random source.
func NewSynthesizer(seed int64) *Synthesizer {
	return NewSynthesizerWithRand(rand.New(rand.NewSource(seed)), time.Now)
}

// NewSynthesizerWithRand injects the random source and clock.
func NewSynthesizerWithRand(rng *rand.Rand, now func() time.Time) *Synthesizer {
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{rng: rng, now: now}
}

// Generate returns exactly count synthetic records for commodity.
func (s *Synthesizer) Generate(commodity, category string, count int) []PriceRecord {
	if count <= 0 {
		return nil
	}
	band, ok := syntheticBands[category]
	if !ok {
		band = syntheticBands[OthersCategory]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := band.low + s.rng.Float64()*(band.high-band.low)
	arrival := truncateDay(s.now())
	out := make([]PriceRecord, 0, count)
	for i := 0; i < count; i++ {
		offset := (s.rng.Float64()*2 - 1) * syntheticMaxOffset
		price := math.Max(math.Round(base+offset), 2*syntheticSpread)
		minPrice := price - syntheticSpread
		maxPrice := price + syntheticSpread

		trending := TrendUp
		change := math.Round((maxPrice - minPrice) / 2 * s.rng.Float64())
		if s.rng.Intn(2) == 0 {
			trending = TrendDown
			change = -change
		}

		loc := syntheticMarkets[i%len(syntheticMarkets)]
		out = append(out, PriceRecord{
			Commodity:     commodity,
			DisplayName:   commodity,
			Category:      category,
			Price:         price,
			MinPrice:      minPrice,
			MaxPrice:      maxPrice,
			Market:        loc.market,
			District:      loc.district,
			State:         loc.state,
			Unit:          UnitPerQuintal,
			Variety:       DefaultVariety,
			Grade:         DefaultGrade,
			ArrivalDate:   arrival,
			Quantity:      float64(100 + s.rng.Intn(1000)),
			Trending:      trending,
			Change:        change,
			ChangePercent: round2(change / price * 100),
			SourceTier:    TierSynthetic,
		})
	}
	return out
}

// Defaults applied when upstream data omits variety or grade.
const (
	DefaultVariety = "Other"
	DefaultGrade   = "FAQ"
)

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
