// Package entity extracts typed spans (dates, times, prices, distances,
// locations, social context) from normalized query text. Extraction is pure
// regex work: deterministic, locale-independent, never failing.
package entity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hrygo/citypulse/search/intent"
)

// MatchKind discriminates extracted entities.
type MatchKind string

const (
	KindDate     MatchKind = "date"
	KindTime     MatchKind = "time"
	KindLocation MatchKind = "location"
	KindPrice    MatchKind = "price"
	KindDistance MatchKind = "distance"
	KindSocial   MatchKind = "social"
)

// Match is one extracted entity with its raw span in the input.
type Match struct {
	Kind  MatchKind `json:"kind"`
	Label string    `json:"label"` // canonical tag, e.g. "tonight", "happy_hour", "under_price"
	Value string    `json:"value"` // raw matched text
	Num   float64   `json:"num,omitempty"`
	Start int       `json:"start"`
	End   int       `json:"end"`
}

// Entities is the full extraction result.
type Entities struct {
	Dates     []Match `json:"dates,omitempty"`
	Times     []Match `json:"times,omitempty"`
	Locations []Match `json:"locations,omitempty"`
	Prices    []Match `json:"prices,omitempty"`
	Distances []Match `json:"distances,omitempty"`
	Social    []Match `json:"social,omitempty"`
}

var (
	namedDateRegex    = regexp.MustCompile(`\b(tonight|today|tomorrow|weekend|this week|next week|this month)\b`)
	relativeDayRegex  = regexp.MustCompile(`\bnext (monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	absoluteDateRegex = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)

	namedTimeRegex    = regexp.MustCompile(`\b(happy hour|after work|brunch|late night|morning|afternoon|evening)\b`)
	absoluteTimeRegex = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

	proximityRegex    = regexp.MustCompile(`\b(near me|nearby|close by|around here|walking distance)\b`)
	neighborhoodRegex = regexp.MustCompile(`\b(downtown|uptown|midtown|[a-z]+ district|[a-z]+ village|old town|waterfront)\b`)
	zipRegex          = regexp.MustCompile(`\b(\d{5})\b`)
	inCityRegex       = regexp.MustCompile(`\bin ([a-z][a-z\s]{1,25})\b`)

	freeRegex       = regexp.MustCompile(`\bfree\b`)
	underPriceRegex = regexp.MustCompile(`\bunder \$(\d+)\b`)
	dollarSignRegex = regexp.MustCompile(`(\${1,4})(?:\s|$)`)
	priceRangeRegex = regexp.MustCompile(`\$?(\d+)\s*-\s*\$?(\d+)\b`)

	withinRegex  = regexp.MustCompile(`\bwithin (\d+(?:\.\d+)?)\s*(miles?|mi|km|kilometers?|blocks?)\b`)
	walkingRegex = regexp.MustCompile(`\bwalking distance\b`)
)

// socialTerms maps phrases to group sizes.
var socialTerms = []struct {
	phrase string
	group  intent.GroupSize
}{
	{"date night", intent.GroupDate},
	{"with my date", intent.GroupDate},
	{"romantic", intent.GroupDate},
	{"solo", intent.GroupSolo},
	{"by myself", intent.GroupSolo},
	{"alone", intent.GroupSolo},
	{"with friends", intent.GroupSmall},
	{"few friends", intent.GroupSmall},
	{"small group", intent.GroupSmall},
	{"big group", intent.GroupLarge},
	{"large group", intent.GroupLarge},
	{"the whole crew", intent.GroupLarge},
	{"team outing", intent.GroupLarge},
}

// Extract pulls all typed entities from text. Input is expected lowercase
// (normalizer output), but Extract lowercases defensively.
func Extract(text string) *Entities {
	text = strings.ToLower(text)
	e := &Entities{}

	for _, m := range namedDateRegex.FindAllStringSubmatchIndex(text, -1) {
		label := strings.ReplaceAll(text[m[2]:m[3]], " ", "_")
		e.Dates = append(e.Dates, Match{Kind: KindDate, Label: label, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range relativeDayRegex.FindAllStringSubmatchIndex(text, -1) {
		e.Dates = append(e.Dates, Match{Kind: KindDate, Label: "next_" + text[m[2]:m[3]], Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range absoluteDateRegex.FindAllStringSubmatchIndex(text, -1) {
		e.Dates = append(e.Dates, Match{Kind: KindDate, Label: "absolute", Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}

	for _, m := range namedTimeRegex.FindAllStringSubmatchIndex(text, -1) {
		label := strings.ReplaceAll(text[m[2]:m[3]], " ", "_")
		e.Times = append(e.Times, Match{Kind: KindTime, Label: label, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range absoluteTimeRegex.FindAllStringSubmatchIndex(text, -1) {
		e.Times = append(e.Times, Match{Kind: KindTime, Label: "absolute", Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}

	for _, m := range proximityRegex.FindAllStringIndex(text, -1) {
		e.Locations = append(e.Locations, Match{Kind: KindLocation, Label: "proximity", Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range neighborhoodRegex.FindAllStringIndex(text, -1) {
		e.Locations = append(e.Locations, Match{Kind: KindLocation, Label: "neighborhood", Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range zipRegex.FindAllStringSubmatchIndex(text, -1) {
		e.Locations = append(e.Locations, Match{Kind: KindLocation, Label: "zip", Value: text[m[2]:m[3]], Start: m[0], End: m[1]})
	}
	for _, m := range inCityRegex.FindAllStringSubmatchIndex(text, -1) {
		e.Locations = append(e.Locations, Match{Kind: KindLocation, Label: "city", Value: strings.TrimSpace(text[m[2]:m[3]]), Start: m[0], End: m[1]})
	}

	e.Prices = extractPrices(text)
	e.Distances = extractDistances(text)

	for _, st := range socialTerms {
		if idx := strings.Index(text, st.phrase); idx >= 0 {
			e.Social = append(e.Social, Match{
				Kind: KindSocial, Label: string(st.group), Value: st.phrase,
				Start: idx, End: idx + len(st.phrase),
			})
		}
	}
	return e
}

func extractPrices(text string) []Match {
	var out []Match
	for _, m := range freeRegex.FindAllStringIndex(text, -1) {
		out = append(out, Match{Kind: KindPrice, Label: "free", Value: "free", Start: m[0], End: m[1]})
	}
	for _, m := range underPriceRegex.FindAllStringSubmatchIndex(text, -1) {
		n, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
		out = append(out, Match{Kind: KindPrice, Label: "under", Value: text[m[0]:m[1]], Num: n, Start: m[0], End: m[1]})
	}
	for _, m := range priceRangeRegex.FindAllStringSubmatchIndex(text, -1) {
		lo, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
		hi, _ := strconv.ParseFloat(text[m[4]:m[5]], 64)
		// 5-digit zips also match N-M; skip implausible ranges.
		if lo < hi && hi <= 1000 {
			out = append(out, Match{Kind: KindPrice, Label: "range", Value: text[m[0]:m[1]], Num: lo, Start: m[0], End: m[1]})
		}
	}
	for _, m := range dollarSignRegex.FindAllStringSubmatchIndex(text, -1) {
		signs := m[3] - m[2]
		out = append(out, Match{Kind: KindPrice, Label: "level", Value: text[m[2]:m[3]], Num: float64(signs), Start: m[2], End: m[3]})
	}
	return out
}

func extractDistances(text string) []Match {
	var out []Match
	for _, m := range withinRegex.FindAllStringSubmatchIndex(text, -1) {
		n, _ := strconv.ParseFloat(text[m[2]:m[3]], 64)
		unit := text[m[4]:m[5]]
		miles := n
		switch {
		case strings.HasPrefix(unit, "km"), strings.HasPrefix(unit, "kilometer"):
			miles = n * 0.621371
		case strings.HasPrefix(unit, "block"):
			miles = n * 0.05 // ~20 blocks per mile
		}
		out = append(out, Match{Kind: KindDistance, Label: "within", Value: text[m[0]:m[1]], Num: miles, Start: m[0], End: m[1]})
	}
	if loc := walkingRegex.FindStringIndex(text); loc != nil {
		out = append(out, Match{Kind: KindDistance, Label: "walking", Value: "walking distance", Num: 0.5, Start: loc[0], End: loc[1]})
	}
	return out
}

// HasTimeSensitivity reports whether the query carries any temporal entity.
func (e *Entities) HasTimeSensitivity() bool {
	return len(e.Dates) > 0 || len(e.Times) > 0
}

// HasLocationSpecificity reports whether the query carries any location
// entity beyond bare proximity.
func (e *Entities) HasLocationSpecificity() bool {
	return len(e.Locations) > 0
}

// BudgetLevel derives the budget sub-intent from price entities.
func (e *Entities) BudgetLevel() (intent.BudgetLevel, bool) {
	for _, p := range e.Prices {
		switch p.Label {
		case "free":
			return intent.BudgetFree, true
		case "under":
			if p.Num <= 20 {
				return intent.BudgetBudget, true
			}
			return intent.BudgetModerate, true
		case "level":
			switch int(p.Num) {
			case 1:
				return intent.BudgetBudget, true
			case 2:
				return intent.BudgetModerate, true
			default:
				return intent.BudgetUpscale, true
			}
		}
	}
	return "", false
}

// DistanceConstraintMiles returns the tightest distance constraint, if any.
func (e *Entities) DistanceConstraintMiles() (float64, bool) {
	found := false
	minMiles := 0.0
	for _, d := range e.Distances {
		if !found || d.Num < minMiles {
			minMiles = d.Num
			found = true
		}
	}
	return minMiles, found
}

// GroupSize returns the social-context group size, if any phrase matched.
func (e *Entities) GroupSize() (intent.GroupSize, bool) {
	if len(e.Social) == 0 {
		return "", false
	}
	return intent.GroupSize(e.Social[0].Label), true
}
