package market

import (
	"sort"
	"strings"
	"time"
)

const (
	recommendationTopN     = 5
	recommendationMaxCrops = 6
	nationwideMinStates    = 5
	lowRiskMaxVolatility   = 30.0
)

// Season names derived from the calendar month.
const (
	SeasonKharif = "Kharif"
	SeasonRabi   = "Rabi"
	SeasonZaid   = "Zaid"
)

// SeasonForMonth maps a calendar month to its cropping season.
func SeasonForMonth(month time.Month) string {
	switch {
	case month >= time.June && month <= time.October:
		return SeasonKharif
	case month >= time.November || month <= time.March:
		return SeasonRabi
	default:
		return SeasonZaid
	}
}

// Generate builds the five fixed recommendation lists. seasonTag resolves a
// category key to its season tag.
func Generate(stats map[string]CommodityStat, month time.Month, seasonTag func(category string) string) []Recommendation {
	all := make([]CommodityStat, 0, len(stats))
	for _, stat := range stats {
		all = append(all, stat)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Commodity < all[j].Commodity })

	season := SeasonForMonth(month)
	byProfit := func(a, b CommodityStat) bool { return a.ProfitPotential > b.ProfitPotential }

	return []Recommendation{
		{
			Type:        RecommendProfit,
			Title:       "Most Profitable Crops",
			Description: "Crops with the highest profit potential across current markets",
			Icon:        "trending-up",
			Crops:       rank(all, nil, byProfit),
			Priority:    PriorityHigh,
		},
		{
			Type:        RecommendSeasonal,
			Title:       season + " Season Picks",
			Description: "Best performing crops suited to the " + season + " season",
			Icon:        "calendar",
			Crops: rank(all, func(s CommodityStat) bool {
				tag := strings.ToLower(seasonTag(s.Category))
				return tag == SeasonAll || strings.Contains(tag, strings.ToLower(season))
			}, byProfit),
			Priority: PriorityMedium,
		},
		{
			Type:        RecommendDemand,
			Title:       "High Demand Crops",
			Description: "Crops with the largest arrivals across the most states",
			Icon:        "users",
			Crops:       rank(all, nil, func(a, b CommodityStat) bool { return a.DemandScore > b.DemandScore }),
			Priority:    PriorityHigh,
		},
		{
			Type:        RecommendNationwide,
			Title:       "Nationwide Markets",
			Description: "Crops traded in five or more states, ranked by average price",
			Icon:        "map",
			Crops: rank(all, func(s CommodityStat) bool {
				return len(s.DistinctStates) >= nationwideMinStates
			}, func(a, b CommodityStat) bool { return a.AvgPrice > b.AvgPrice }),
			Priority: PriorityHigh,
		},
		{
			Type:        RecommendLowRisk,
			Title:       "Low Risk Crops",
			Description: "Stable prices with volatility under 30%",
			Icon:        "shield",
			Crops: rank(all, func(s CommodityStat) bool {
				return s.VolatilityPct < lowRiskMaxVolatility
			}, byProfit),
			Priority: PriorityMedium,
		},
	}
}

// rank filters and orders stats; input must already be sorted by commodity so ties stay deterministic.
func rank(stats []CommodityStat, keep func(CommodityStat) bool, less func(a, b CommodityStat) bool) []CommodityStat {
	out := make([]CommodityStat, 0, len(stats))
	for _, stat := range stats {
		if keep == nil || keep(stat) {
			out = append(out, stat)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	limit := min(recommendationTopN, recommendationMaxCrops)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
