package market

import (
	"math"
	"sort"
)

// Aggregate computes per-commodity statistics from a store snapshot. It never
// mutates its input and always recomputes from scratch.
func Aggregate(records []PriceRecord) map[string]CommodityStat {
	type group struct {
		stat   CommodityStat
		states map[string]struct{}
		sum    float64
	}
	groups := make(map[string]*group)
	for _, rec := range records {
		g, ok := groups[rec.Commodity]
		if !ok {
			g = &group{
				stat: CommodityStat{
					Commodity:   rec.Commodity,
					DisplayName: firstNonEmpty(rec.DisplayName, rec.Commodity),
					Category:    rec.Category,
					MinPrice:    rec.Price,
					MaxPrice:    rec.Price,
				},
				states: make(map[string]struct{}),
			}
			groups[rec.Commodity] = g
		}
		g.stat.Prices = append(g.stat.Prices, rec.Price)
		g.sum += rec.Price
		g.stat.MinPrice = math.Min(g.stat.MinPrice, rec.Price)
		g.stat.MaxPrice = math.Max(g.stat.MaxPrice, rec.Price)
		g.stat.TotalQuantity += rec.Quantity
		if rec.State != "" {
			g.states[rec.State] = struct{}{}
		}
	}

	out := make(map[string]CommodityStat, len(groups))
	for key, g := range groups {
		stat := g.stat
		stat.AvgPrice = g.sum / float64(len(stat.Prices))
		stat.PriceVariance = stat.MaxPrice - stat.MinPrice
		if stat.AvgPrice != 0 {
			stat.VolatilityPct = stat.PriceVariance / stat.AvgPrice * 100
		}
		stat.DistinctStates = make([]string, 0, len(g.states))
		for state := range g.states {
			stat.DistinctStates = append(stat.DistinctStates, state)
		}
		sort.Strings(stat.DistinctStates)
		states := float64(len(stat.DistinctStates))
		stat.DemandScore = stat.TotalQuantity * states
		stat.ProfitPotential = (stat.AvgPrice / 1000) * (stat.TotalQuantity / 100) * states
		out[key] = stat
	}
	return out
}

// RoundedAvgPrice is the display form of AvgPrice.
func (s CommodityStat) RoundedAvgPrice() int64 {
	return int64(math.Round(s.AvgPrice))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
