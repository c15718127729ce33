package market

import (
	"strings"
	"sync"
)

// OthersCategory is the sentinel for commodities missing from the registry.
const OthersCategory = "others"

// Season tags used by the taxonomy.
const (
	SeasonAll        = "all"
	SeasonRabiKharif = "rabi/kharif"
	SeasonKharifRabi = "kharif/rabi"
)

// DefaultCategories is the static taxonomy served by the portal.
func DefaultCategories() []Category {
	return []Category{
		{Key: "vegetables", Label: "Vegetables", Icon: "carrot", SeasonTag: SeasonAll, Commodities: []string{
			"Onion", "Potato", "Tomato", "Brinjal", "Cabbage", "Cauliflower", "Green Chilli", "Bhindi(Ladies Finger)", "Carrot",
		}},
		{Key: "grains", Label: "Grains", Icon: "wheat", SeasonTag: SeasonRabiKharif, Commodities: []string{
			"Wheat", "Rice", "Paddy(Dhan)(Common)", "Maize", "Bajra(Pearl Millet/Cumbu)", "Jowar(Sorghum)",
		}},
		{Key: "pulses", Label: "Pulses", Icon: "bean", SeasonTag: SeasonRabiKharif, Commodities: []string{
			"Arhar (Tur/Red Gram)(Whole)", "Bengal Gram(Gram)(Whole)", "Green Gram (Moong)(Whole)", "Black Gram (Urd Beans)(Whole)", "Lentil (Masur)(Whole)",
		}},
		{Key: "spices", Label: "Spices", Icon: "pepper", SeasonTag: SeasonKharifRabi, Commodities: []string{
			"Turmeric", "Dry Chillies", "Coriander(Leaves)", "Cummin Seed(Jeera)", "Garlic", "Ginger(Dry)",
		}},
		{Key: "fruits", Label: "Fruits", Icon: "apple", SeasonTag: SeasonAll, Commodities: []string{
			"Banana", "Apple", "Mango", "Grapes", "Pomegranate", "Orange",
		}},
		{Key: "oilseeds", Label: "Oilseeds", Icon: "seedling", SeasonTag: SeasonKharifRabi, Commodities: []string{
			"Soyabean", "Groundnut", "Mustard", "Sunflower", "Sesamum(Sesame,Gingelly,Til)",
		}},
		{Key: "cashcrops", Label: "Cash Crops", Icon: "sprout", SeasonTag: SeasonKharifRabi, Commodities: []string{
			"Cotton", "Sugarcane", "Jute", "Copra",
		}},
	}
}

// Registry maps commodities to categories. It is immutable after construction.
type Registry struct {
	base        []Category
	byKey       map[string]Category
	byCommodity map[string]string

	mu        sync.Mutex
	localized map[string][]Category
}

// NewRegistry indexes the given taxonomy.
func NewRegistry(categories []Category) *Registry {
	r := &Registry{
		base:        cloneCategories(categories),
		byKey:       make(map[string]Category, len(categories)+1),
		byCommodity: make(map[string]string),
		localized:   make(map[string][]Category),
	}
	for _, cat := range r.base {
		r.byKey[cat.Key] = cat
		for _, commodity := range cat.Commodities {
			r.byCommodity[canonicalKey(commodity)] = cat.Key
		}
	}
	if _, ok := r.byKey[OthersCategory]; !ok {
		r.byKey[OthersCategory] = Category{Key: OthersCategory, Label: "Others", Icon: "basket", SeasonTag: SeasonAll}
	}
	return r
}

// Categories returns the base taxonomy in display order.
func (r *Registry) Categories() []Category {
	return cloneCategories(r.base)
}

// Category looks up a category by key, including the sentinel.
func (r *Registry) Category(key string) (Category, bool) {
	cat, ok := r.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Category{}, false
	}
	cat.Commodities = append([]string(nil), cat.Commodities...)
	return cat, true
}

// Resolve returns the category key for a commodity, or OthersCategory.
func (r *Registry) Resolve(commodity string) string {
	if key, ok := r.byCommodity[canonicalKey(commodity)]; ok {
		return key
	}
	return OthersCategory
}

// SeasonTag returns the season tag for a category key.
func (r *Registry) SeasonTag(category string) string {
	if cat, ok := r.byKey[category]; ok {
		return cat.SeasonTag
	}
	return SeasonAll
}

// Localized returns the taxonomy with labels for locale, computed once per locale.
func (r *Registry) Localized(locale string, labels map[string]string) []Category {
	locale = strings.ToLower(strings.TrimSpace(locale))
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.localized[locale]; ok {
		return cloneCategories(cached)
	}
	built := BuildCategories(r.base, labels)
	r.localized[locale] = built
	return cloneCategories(built)
}

// BuildCategories merges localized labels into the base taxonomy. Missing labels keep the base label.
func BuildCategories(base []Category, labels map[string]string) []Category {
	out := cloneCategories(base)
	for i := range out {
		if label := strings.TrimSpace(labels[out[i].Key]); label != "" {
			out[i].Label = label
		}
	}
	return out
}

func cloneCategories(in []Category) []Category {
	out := make([]Category, len(in))
	for i, cat := range in {
		cat.Commodities = append([]string(nil), cat.Commodities...)
		out[i] = cat
	}
	return out
}

func canonicalKey(commodity string) string {
	return strings.ToLower(strings.TrimSpace(commodity))
}
