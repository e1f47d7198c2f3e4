// Package taxonomy defines the closed category set used across the search
// pipeline, the keyword multi-maps that drive intent classification, and the
// auxiliary tables (micro-categories, chains, related categories) consumed by
// the ranker and the fallback expander.
package taxonomy

import (
	"sort"
	"strings"
)

// Category is the authoritative macro taxonomy. Routing and ranking only ever
// see these values; micro-categories are additive and affect novelty scoring.
type Category string

const (
	CategoryFood      Category = "food"
	CategoryNightlife Category = "nightlife"
	CategoryMusic     Category = "music"
	CategoryArt       Category = "art"
	CategoryHistory   Category = "history"
	CategoryFitness   Category = "fitness"
	CategoryOutdoor   Category = "outdoor"
	CategorySocial    Category = "social"
	CategoryOther     Category = "other"
)

// Categories lists every valid macro category.
var Categories = []Category{
	CategoryFood, CategoryNightlife, CategoryMusic, CategoryArt,
	CategoryHistory, CategoryFitness, CategoryOutdoor, CategorySocial,
	CategoryOther,
}

// ParseCategory maps a free-form string onto the closed set.
// Unknown values collapse to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return known
		}
	}
	return CategoryOther
}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PlaceKeywords maps canonical place terms to their query variants.
// Classification enumerates hits against the variant lists.
var PlaceKeywords = map[string][]string{
	"restaurant": {"restaurant", "restaurants", "food", "eat", "eats", "dinner", "lunch", "brunch", "dining"},
	"coffee":     {"coffee", "cafe", "cafes", "espresso", "latte", "coffeeshop"},
	"bar":        {"bar", "bars", "pub", "pubs", "drinks", "beer", "cocktail", "cocktails", "brewery", "wine"},
	"pizza":      {"pizza", "pizzeria", "slice"},
	"sushi":      {"sushi", "sashimi", "omakase"},
	"tacos":      {"taco", "tacos", "taqueria"},
	"dessert":    {"dessert", "ice cream", "gelato", "bakery", "donuts", "boba"},
	"museum":     {"museum", "museums", "gallery", "galleries", "exhibit", "exhibits"},
	"park":       {"park", "parks", "trail", "trails", "hike", "hiking", "garden"},
	"gym":        {"gym", "gyms", "yoga", "pilates", "climbing", "workout"},
	"club":       {"club", "clubs", "nightclub", "dancing", "dance floor"},
	"shop":       {"shop", "shops", "shopping", "boutique", "bookstore", "store"},
	"spot":       {"spot", "spots", "place", "places", "venue", "venues"},
}

// EventKeywords maps canonical event terms to their query variants.
var EventKeywords = map[string][]string{
	"concert":  {"concert", "concerts", "show", "shows", "gig", "gigs", "live music", "performance"},
	"festival": {"festival", "festivals", "fest", "fair"},
	"event":    {"event", "events", "happening", "happenings", "whats on", "what's on"},
	"party":    {"party", "parties", "rave", "mixer"},
	"comedy":   {"comedy", "standup", "stand-up", "open mic", "improv"},
	"theater":  {"theater", "theatre", "play", "musical", "opera", "ballet"},
	"sports":   {"game", "games", "match", "tournament"},
	"market":   {"market", "markets", "pop-up", "popup", "fleamarket", "flea market"},
	"class":    {"class", "classes", "workshop", "workshops", "meetup", "meetups"},
}

// categoryKeywords maps query keywords to macro categories for inference.
var categoryKeywords = map[Category][]string{
	CategoryFood:      {"restaurant", "food", "eat", "pizza", "sushi", "taco", "tacos", "coffee", "cafe", "brunch", "dinner", "lunch", "dessert", "bakery", "ramen", "burger", "bbq", "vegan", "seafood", "ice cream", "boba"},
	CategoryNightlife: {"bar", "bars", "pub", "drinks", "beer", "cocktail", "cocktails", "club", "nightclub", "brewery", "wine", "rooftop", "speakeasy", "karaoke", "dancing", "party", "lounge"},
	CategoryMusic:     {"music", "concert", "concerts", "show", "gig", "dj", "band", "jazz", "vinyl", "live music", "karaoke", "festival"},
	CategoryArt:       {"art", "gallery", "galleries", "exhibit", "museum", "mural", "studio", "theater", "theatre", "film", "photography"},
	CategoryHistory:   {"history", "historic", "historical", "landmark", "monument", "heritage", "memorial"},
	CategoryFitness:   {"gym", "yoga", "pilates", "run", "running", "climbing", "workout", "fitness", "cycling", "spin"},
	CategoryOutdoor:   {"park", "trail", "hike", "hiking", "outdoor", "outdoors", "beach", "garden", "picnic", "kayak", "bike"},
	CategorySocial:    {"meetup", "meetups", "social", "mixer", "networking", "singles", "trivia", "game night", "hangout", "friends", "people"},
}

// InferCategories returns the macro categories implied by the given tokens,
// preserving the closed-set ordering and never duplicating entries. Keywords
// match whole tokens only, so "brunch" never implies fitness via "run".
func InferCategories(tokens []string) []Category {
	joined := " " + strings.ToLower(strings.Join(tokens, " ")) + " "
	var out []Category
	for _, cat := range Categories {
		if cat == CategoryOther {
			continue
		}
		for _, kw := range categoryKeywords[cat] {
			if matchesTerm(joined, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	return out
}

// matchesTerm matches a term against space-padded text at token boundaries.
// Multi-word terms match as whole phrases; a trailing plural "s" on the text
// side is accepted so "restaurants" still hits "restaurant".
func matchesTerm(padded, term string) bool {
	return strings.Contains(padded, " "+term+" ") ||
		strings.Contains(padded, " "+term+"s ")
}

// MicroCategories is the narrow sub-taxon set. Membership only influences
// novelty scoring and faceting, never routing.
var MicroCategories = map[string]bool{
	"rooftop bar": true, "speakeasy": true, "jazz lounge": true, "wine bar": true,
	"ramen shop": true, "omakase": true, "taqueria": true, "dim sum": true,
	"third wave coffee": true, "natural wine": true, "tiki bar": true,
	"listening bar": true, "izakaya": true, "supper club": true,
	"art house cinema": true, "record store": true, "board game cafe": true,
	"climbing gym": true, "night market": true, "food hall": true,
	"comedy cellar": true, "open mic": true, "poetry reading": true,
	"vintage shop": true, "botanical garden": true, "sculpture garden": true,
}

// IsMicroCategory reports whether the given category string is a micro-category.
func IsMicroCategory(s string) bool {
	return MicroCategories[strings.ToLower(strings.TrimSpace(s))]
}

// ChainTokens are title substrings identifying national chains. A hit applies
// the strongest independence penalty.
var ChainTokens = []string{"starbucks", "mcdonalds", "mcdonald's", "subway", "chipotle", "taco bell"}

// CorporateTokens are weaker signals of non-independent operations.
var CorporateTokens = []string{"franchise", "corporate", "outlet", "chain"}

// IndieTokens mark venues that should receive the independence boost.
var IndieTokens = []string{"local", "indie", "family", "independent"}

// RelatedCategories is the closed relation map used by fallback strategy 5:
// when a narrow query returns too little, retry with its neighbors.
var RelatedCategories = map[string][]string{
	"sushi":   {"japanese", "asian", "seafood", "restaurant"},
	"jazz":    {"music", "live music", "lounge", "bar"},
	"pizza":   {"italian", "restaurant", "casual dining"},
	"tacos":   {"mexican", "latin", "restaurant"},
	"ramen":   {"japanese", "noodles", "asian", "restaurant"},
	"coffee":  {"cafe", "bakery", "breakfast"},
	"vegan":   {"vegetarian", "healthy", "restaurant"},
	"comedy":  {"entertainment", "theater", "bar"},
	"hiking":  {"outdoor", "park", "trail"},
	"yoga":    {"fitness", "wellness", "gym"},
	"museum":  {"art", "gallery", "history"},
	"brewery": {"beer", "bar", "taproom"},
}

// PlaceTypesByCategory derives the places-provider type filter from a macro
// category. At most the first three entries of the combined filter are sent.
var PlaceTypesByCategory = map[Category][]string{
	CategoryFood:      {"restaurant", "cafe"},
	CategoryNightlife: {"bar", "night_club"},
	CategoryArt:       {"museum", "art_gallery"},
	CategoryHistory:   {"museum", "tourist_attraction"},
	CategoryFitness:   {"gym"},
	CategoryOutdoor:   {"park", "tourist_attraction"},
}

// KeywordHits counts variant hits of a canonical→variants multi-map within
// normalized text, returning the canonical terms that matched. Output order
// is stable so classification stays deterministic.
func KeywordHits(text string, table map[string][]string) []string {
	padded := " " + strings.ToLower(text) + " "
	keys := make([]string, 0, len(table))
	for canonical := range table {
		keys = append(keys, canonical)
	}
	sort.Strings(keys)
	var hits []string
	for _, canonical := range keys {
		for _, v := range table[canonical] {
			if matchesTerm(padded, v) {
				hits = append(hits, canonical)
				break
			}
		}
	}
	return hits
}
