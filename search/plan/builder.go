// Package plan routes a classified intent to providers and resolves the
// human location/time hints into concrete coordinates and UTC windows.
package plan

import (
	"fmt"

	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/taxonomy"
)

// ProviderPlan is the deterministic routing decision for one query.
type ProviderPlan struct {
	CallPlaces bool `json:"callPlaces"`
	CallEvents bool `json:"callEvents"`

	PlacesRadiusMeters int      `json:"placesRadiusMeters,omitempty"` // ≤ 50000
	PlacesMaxResults   int      `json:"placesMaxResults,omitempty"`   // ≤ 40
	PlacesTypes        []string `json:"placesTypes,omitempty"`        // ≤ 3

	EventsRadiusMiles int `json:"eventsRadiusMiles,omitempty"` // ≤ 100
	EventsMaxResults  int `json:"eventsMaxResults,omitempty"`  // ≤ 50

	PlacesKeyword        string `json:"placesKeyword,omitempty"`        // length 3–40
	EventsKeyword        string `json:"eventsKeyword,omitempty"`        // length 3–60
	EventsClassification string `json:"eventsClassification,omitempty"` // single tag

	Reasoning []string `json:"reasoning,omitempty"`
}

// Build routes a SearchIntent to providers. Pure: the same intent always
// yields the same plan. Internal inconsistencies degrade to the conservative
// places-only default rather than failing.
func Build(si *intent.SearchIntent) ProviderPlan {
	if si == nil {
		return defaultPlacesPlan("nil intent, conservative default")
	}

	p := ProviderPlan{}
	note := func(format string, args ...any) {
		p.Reasoning = append(p.Reasoning, fmt.Sprintf(format, args...))
	}

	// Browse mode: empty queries fan out to both providers conservatively.
	if len(si.Keywords) == 0 && si.Time.Label == intent.TimeNone && !hasRealCategory(si) {
		p.CallPlaces = true
		p.CallEvents = true
		p.PlacesRadiusMeters = 3000
		p.PlacesMaxResults = 25
		p.EventsRadiusMiles = 15
		p.EventsMaxResults = 25
		note("browse mode: empty query, both providers with conservative caps")
		return p
	}

	eventSignal := si.Kind == intent.KindEvent ||
		si.HasCategory(taxonomy.CategoryMusic) ||
		hasEventKeyword(si.Keywords)
	placeSignal := si.Kind == intent.KindPlace || si.Kind == intent.KindBoth ||
		si.HasCategory(taxonomy.CategoryFood) || si.HasCategory(taxonomy.CategoryNightlife)
	mixed := si.HasCategory(taxonomy.CategorySocial) ||
		si.HasCategory(taxonomy.CategoryNightlife) ||
		hasAbstractKeyword(si.Keywords)

	switch {
	case si.Confidence < 0.4:
		if eventSignal && si.Kind == intent.KindEvent {
			p.CallEvents = true
			note("low confidence with pure event signal: events only")
		} else {
			p.CallPlaces = true
			note("low confidence: places only")
		}
	case si.Confidence >= 0.7:
		switch si.Kind {
		case intent.KindPlace:
			p.CallPlaces = true
			note("high confidence place intent")
		case intent.KindEvent:
			p.CallEvents = true
			note("high confidence event intent")
		default:
			p.CallPlaces = true
			p.CallEvents = true
			note("high confidence mixed intent: both providers")
		}
		if si.Kind != intent.KindBoth && mixed {
			p.CallPlaces = true
			p.CallEvents = true
			note("mixed/abstract signals widen routing to both")
		}
	default:
		switch {
		case eventSignal && !placeSignal:
			p.CallEvents = true
			note("medium confidence, event-leaning: events only")
		case placeSignal && !eventSignal:
			p.CallPlaces = true
			note("medium confidence, place-leaning: places only")
		default:
			p.CallPlaces = true
			p.CallEvents = true
			note("medium confidence, mixed: both providers")
		}
	}

	// Any temporal context enables events.
	timeOnlyEvents := false
	if si.Time.Label != intent.TimeNone && !p.CallEvents {
		p.CallEvents = true
		timeOnlyEvents = !eventSignal
		note("time context %q enables events", si.Time.Label)
	}

	// Guarantee at least one provider.
	if !p.CallPlaces && !p.CallEvents {
		p.CallPlaces = true
		note("no provider selected, defaulting to places")
	}

	if p.CallPlaces {
		p.PlacesRadiusMeters, p.PlacesMaxResults = placesCaps(si)
		p.PlacesTypes = placeTypes(si)
		p.PlacesKeyword = topKeyword(si.Keywords, 40)
	}
	if p.CallEvents {
		p.EventsRadiusMiles, p.EventsMaxResults = eventsCaps(si)
		if timeOnlyEvents {
			// Events enabled only by time context get the tight caps.
			if p.EventsRadiusMiles > 15 {
				p.EventsRadiusMiles = 15
			}
			if p.EventsMaxResults > 25 {
				p.EventsMaxResults = 25
			}
			note("events enabled by time context only: caps clamped to 15mi/25")
		}
		p.EventsKeyword = topKeyword(si.Keywords, 60)
		if si.HasCategory(taxonomy.CategoryMusic) {
			p.EventsClassification = "music"
		}
	}
	return p
}

// topKeyword returns the first keyword within provider length bounds.
func topKeyword(keywords []string, maxLen int) string {
	for _, kw := range keywords {
		if len(kw) >= 3 && len(kw) <= maxLen {
			return kw
		}
	}
	return ""
}

func hasRealCategory(si *intent.SearchIntent) bool {
	for _, c := range si.Categories {
		if c != taxonomy.CategoryOther {
			return true
		}
	}
	return false
}

func defaultPlacesPlan(reason string) ProviderPlan {
	return ProviderPlan{
		CallPlaces:         true,
		PlacesRadiusMeters: 5000,
		PlacesMaxResults:   20,
		Reasoning:          []string{reason},
	}
}

func placesCaps(si *intent.SearchIntent) (radiusMeters, maxResults int) {
	switch {
	case si.HasCategory(taxonomy.CategoryNightlife):
		radiusMeters = 2500
	case si.HasCategory(taxonomy.CategorySocial):
		radiusMeters = 3000
	case si.Confidence < 0.4:
		radiusMeters = 4000
	default:
		radiusMeters = 5000
	}
	switch {
	case si.Confidence < 0.4:
		maxResults = 20
	case si.Confidence < 0.7:
		maxResults = 30
	default:
		maxResults = 40
	}
	return radiusMeters, maxResults
}

func eventsCaps(si *intent.SearchIntent) (radiusMiles, maxResults int) {
	switch {
	case isMajorCityHint(si.Location):
		radiusMiles = 35
	case si.Confidence < 0.4:
		radiusMiles = 15
	default:
		radiusMiles = 25
	}
	switch {
	case si.Confidence < 0.4:
		maxResults = 25
	case si.Confidence < 0.7:
		maxResults = 40
	default:
		maxResults = 50
	}
	return radiusMiles, maxResults
}

func isMajorCityHint(hint intent.LocationHint) bool {
	if hint.Kind != intent.LocationCity {
		return false
	}
	c, ok := geo.LookupCity(hint.Value)
	return ok && c.Major
}

// placeTypes derives the places type filter from category priority, capped
// at three entries.
func placeTypes(si *intent.SearchIntent) []string {
	var types []string
	seen := map[string]bool{}
	for _, cat := range si.Categories {
		for _, t := range taxonomy.PlaceTypesByCategory[cat] {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
			if len(types) == 3 {
				return types
			}
		}
	}
	return types
}

func hasEventKeyword(keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := taxonomy.EventKeywords[kw]; ok {
			return true
		}
	}
	return false
}

func hasAbstractKeyword(keywords []string) bool {
	for _, kw := range keywords {
		switch kw {
		case "things", "activities", "social", "fun", "hangout":
			return true
		}
	}
	return false
}
