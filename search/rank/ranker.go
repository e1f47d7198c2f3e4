// Package rank implements the adaptive multi-factor scorer. Eight factor
// scores in [0,1] are blended by intent-adapted weights, followed by an
// anti-bias pass that damps mega-chains and lifts exceptional small venues.
package rank

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/provider"
	"github.com/hrygo/citypulse/search/taxonomy"
)

// Context carries the situational inputs the factors depend on.
type Context struct {
	Intent       *intent.SearchIntent
	UserLocation *geo.Point
	Now          time.Time
	IsWeekend    bool

	// Rollback switches, zero value means every factor runs. DisableAdaptive
	// pins the base weight table; the rest neutralize one scoring input each.
	DisableAdaptive        bool
	DisableMicroCategories bool
	DisableSmallVenueBoost bool
	DisableIndependence    bool
	DisableMomentum        bool
	DisableVibrancy        bool
	DisableNeighborhood    bool
	DisableHyperlocal      bool
}

// Breakdown is the per-factor score trace attached to each ranked result.
type Breakdown struct {
	Proximity    float64 `json:"proximity"`
	Rating       float64 `json:"rating"`
	Popularity   float64 `json:"popularity"`
	Novelty      float64 `json:"novelty"`
	Temporal     float64 `json:"temporal"`
	IntentMatch  float64 `json:"intentMatch"`
	Vibrancy     float64 `json:"vibrancy"`
	Independence float64 `json:"independence"`
	Final        float64 `json:"final"`
}

// Ranked pairs a result with its factor trace.
type Ranked struct {
	provider.Result
	Breakdown Breakdown `json:"breakdown"`
}

// Rank scores and sorts candidates descending by final score. The input
// slice is not mutated. Ranking is a pure function of (candidates, ctx).
func Rank(candidates []provider.Result, ctx Context) []Ranked {
	weights := AdaptWeights(ctx)
	if ctx.DisableAdaptive {
		weights = BaseWeights()
	}
	out := make([]Ranked, 0, len(candidates))

	for _, cand := range candidates {
		b := Breakdown{
			Proximity:    proximityScore(cand),
			Rating:       ratingScore(cand),
			Popularity:   popularityScore(cand),
			Novelty:      noveltyScore(cand, ctx),
			Temporal:     temporalScore(cand, ctx),
			IntentMatch:  intentMatchScore(cand, ctx.Intent),
			Vibrancy:     vibrancyScore(cand, candidates, ctx),
			Independence: independenceScore(cand, ctx),
		}
		score := weights.Proximity*b.Proximity +
			weights.Rating*b.Rating +
			weights.Popularity*b.Popularity +
			weights.Novelty*b.Novelty +
			weights.Temporal*b.Temporal +
			weights.IntentMatch*b.IntentMatch +
			weights.Vibrancy*b.Vibrancy +
			weights.Independence*b.Independence

		score = antiBias(score, cand, ctx)
		score = localityBoost(score, cand, ctx)
		if score < 0 {
			score = 0
		}
		b.Final = score

		r := Ranked{Result: cand, Breakdown: b}
		r.Score = score
		r.Reason = reasonTag(b, cand)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID // stable total order on ties
	})
	return out
}

// proximityScore applies the piecewise decay over Haversine distance.
func proximityScore(r provider.Result) float64 {
	d := r.DistanceMeters
	switch {
	case d <= 500:
		return 1.0
	case d <= 1000:
		return 0.85
	case d <= 2000:
		return 0.65
	case d <= 5000:
		return 0.40
	case d <= 10000:
		return 0.20
	case d <= 20000:
		return 0.10
	default:
		return 0.05
	}
}

func ratingScore(r provider.Result) float64 {
	if r.Place == nil || r.Place.Rating == nil {
		return 0.5
	}
	return *r.Place.Rating / 5
}

// popularityScore is a review-count sigmoid centered at 250 reviews, which
// keeps mega-chains from dominating on volume alone.
func popularityScore(r provider.Result) float64 {
	if r.Place == nil || r.Place.ReviewCount == nil {
		return 0.25
	}
	n := float64(*r.Place.ReviewCount)
	return 1 / (1 + math.Exp(-0.008*(n-250)))
}

// noveltyScore rewards highly rated but lightly reviewed venues and
// micro-category members.
func noveltyScore(r provider.Result, ctx Context) float64 {
	score := 0.0
	var rating float64
	reviews := math.MaxInt32
	if r.Place != nil {
		if r.Place.Rating != nil {
			rating = *r.Place.Rating
		}
		if r.Place.ReviewCount != nil {
			reviews = *r.Place.ReviewCount
		}
	}
	if rating >= 4.5 && reviews < 50 {
		score += 0.4
	}
	if rating >= 4.7 && reviews < 20 {
		score += 0.3
	}
	if reviews < 15 {
		score += 0.2
	}
	if !ctx.DisableMicroCategories && taxonomy.IsMicroCategory(r.Category) {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}

// temporalScore handles places (open-now) and events (hours-to-start) per
// the urgency of the request.
func temporalScore(r provider.Result, ctx Context) float64 {
	urgency := intent.UrgencyPlanning
	if ctx.Intent != nil && ctx.Intent.Sub != nil && ctx.Intent.Sub.Urgency != "" {
		urgency = ctx.Intent.Sub.Urgency
	}

	if r.Kind == provider.KindPlace {
		var open *bool
		if r.Place != nil {
			open = r.Place.OpenNow
		}
		if urgency == intent.UrgencyImmediate {
			switch {
			case open == nil:
				return 0.5
			case *open:
				return 1.0
			default:
				return 0.05
			}
		}
		if open != nil && *open {
			return 0.7
		}
		return 0.5
	}

	// Events.
	if r.Event == nil || r.Event.Start == nil {
		return 0.5
	}
	hours := r.Event.Start.Sub(ctx.Now).Hours()
	if hours < 0 {
		if hours > -3 && !ctx.DisableMomentum {
			return 0.8 // just started, still joinable
		}
		return 0.1
	}
	switch urgency {
	case intent.UrgencyImmediate:
		switch {
		case hours < 3:
			return 1.0
		case hours < 6:
			return 0.85
		case hours < 24:
			return 0.5
		default:
			return 0.2
		}
	case intent.UrgencyNearFuture:
		switch {
		case hours < 48:
			return 1.0
		case hours < 168:
			return 0.7
		default:
			return 0.4
		}
	default: // planning
		if hours < 720 {
			return 0.9
		}
		return 0.6
	}
}

// intentMatchScore rewards kind, category, keyword, and vibe alignment.
func intentMatchScore(r provider.Result, si *intent.SearchIntent) float64 {
	if si == nil {
		return 0
	}
	score := 0.0
	switch {
	case si.Kind == intent.KindBoth:
		score += 0.25
	case (si.Kind == intent.KindPlace && r.Kind == provider.KindPlace) ||
		(si.Kind == intent.KindEvent && r.Kind == provider.KindEvent):
		score += 0.35
	}

	cat := strings.ToLower(r.Category)
	for _, c := range si.Categories {
		if c != taxonomy.CategoryOther && strings.Contains(cat, string(c)) {
			score += 0.25
			break
		}
	}

	title := strings.ToLower(r.Title)
	kwBonus := 0.0
	for _, kw := range si.Keywords {
		if strings.Contains(title, strings.ToLower(kw)) {
			kwBonus += 0.15
			if kwBonus >= 0.30 {
				break
			}
		}
	}
	score += kwBonus

	for _, vibe := range si.Vibes {
		if strings.Contains(title, vibe) {
			score += 0.10
			break
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// vibrancyScore counts candidate neighbors within 200 m: clusters of venues
// signal a lively block.
func vibrancyScore(r provider.Result, all []provider.Result, ctx Context) float64 {
	if ctx.DisableVibrancy {
		return 0
	}
	neighbors := 0
	for _, other := range all {
		if other.ID == r.ID {
			continue
		}
		d := geo.Haversine(r.Point, other.Point)
		if !r.Point.Valid() || !other.Point.Valid() {
			// Degenerate coordinates: approximate via distance-from-user deltas.
			d = math.Abs(r.DistanceMeters - other.DistanceMeters)
		}
		if d <= 200 {
			neighbors++
		}
	}
	v := float64(neighbors) / 10
	if v > 1 {
		v = 1
	}
	return v
}

// independenceScore starts neutral and shifts on indie/chain signals. When
// the factor is disabled every venue stays neutral.
func independenceScore(r provider.Result, ctx Context) float64 {
	if ctx.DisableIndependence {
		return 0.5
	}
	score := 0.5
	title := strings.ToLower(r.Title)
	for _, tok := range taxonomy.IndieTokens {
		if strings.Contains(title, tok) {
			score += 0.3
			break
		}
	}
	if r.Place != nil && r.Place.ReviewCount != nil && *r.Place.ReviewCount < 200 {
		score += 0.2
	}
	for _, chain := range taxonomy.ChainTokens {
		if strings.Contains(title, chain) {
			score -= 0.6
			break
		}
	}
	for _, tok := range taxonomy.CorporateTokens {
		if strings.Contains(title, tok) {
			score -= 0.2
			break
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// antiBias damps review-volume giants and lifts exceptional hidden gems.
func antiBias(score float64, r provider.Result, ctx Context) float64 {
	if r.Place == nil {
		return score
	}
	if r.Place.ReviewCount != nil && *r.Place.ReviewCount > 2000 {
		score *= 0.95
	}
	if !ctx.DisableSmallVenueBoost &&
		r.Place.Rating != nil && r.Place.ReviewCount != nil &&
		*r.Place.Rating >= 4.6 && *r.Place.ReviewCount < 30 {
		score *= 1.15
	}
	return score
}

// localityBoost applies the walking-distance and neighborhood multipliers
// after the weighted blend.
func localityBoost(score float64, r provider.Result, ctx Context) float64 {
	if !ctx.DisableHyperlocal && r.DistanceMeters > 0 && r.DistanceMeters <= 800 {
		score *= 1.05
	}
	if !ctx.DisableNeighborhood {
		score *= NeighborhoodBoost(r.Point)
	}
	return score
}

// reasonTag emits a short factual tag for the dominant factor.
func reasonTag(b Breakdown, r provider.Result) string {
	type factor struct {
		name  string
		value float64
	}
	factors := []factor{
		{"very close by", b.Proximity},
		{"highly rated", b.Rating},
		{"local favorite", b.Popularity},
		{"hidden gem", b.Novelty},
		{"happening soon", b.Temporal},
		{"matches your search", b.IntentMatch},
		{"lively area", b.Vibrancy},
		{"independent spot", b.Independence},
	}
	best := factors[0]
	for _, f := range factors[1:] {
		if f.value > best.value {
			best = f
		}
	}
	if r.Kind == provider.KindEvent && best.name == "highly rated" {
		return "matches your search"
	}
	return best.name
}
