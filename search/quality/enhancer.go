// Package quality applies the post-ranking polish pass: rating floor,
// open-now boost, category diversity caps, quality assessment, and the
// zero-result UX feedback.
package quality

import (
	"sort"
	"strings"

	"github.com/hrygo/citypulse/search/rank"
)

// Level grades the overall result quality.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelPoor       Level = "poor"
)

// Result-count thresholds for the quality grades.
const (
	MinAcceptable = 5
	MinGood       = 15
)

// Options configures the enhancer.
type Options struct {
	MinRating         float64 // filter floor, default 3.5
	PreferOpenNow     bool    // 1.3x boost for open places
	MaxCategoryShare  float64 // diversity cap, default 0.30
	MinResults        int     // deferred results re-enter below this, default MinAcceptable
	DiversityEnforced bool
}

// DefaultOptions mirrors the production configuration.
func DefaultOptions() Options {
	return Options{
		MinRating:         3.5,
		MaxCategoryShare:  0.30,
		MinResults:        MinAcceptable,
		DiversityEnforced: true,
	}
}

// Assessment summarizes the final list for the response meta and the
// operator diagnostics.
type Assessment struct {
	Level       Level    `json:"level"`
	Count       int      `json:"count"`
	AvgRating   float64  `json:"avgRating"`
	ActionHints []string `json:"actionHints,omitempty"`
}

// Assess summarizes an already-final list, used when results come back
// from the ranked cache and only the summary must be recomputed.
func Assess(results []rank.Ranked) Assessment {
	return assess(results)
}

// Enhance applies the polish pass and returns the final list plus its
// assessment. Pure aside from ordering work on a copied slice.
func Enhance(ranked []rank.Ranked, opts Options) ([]rank.Ranked, Assessment) {
	if opts.MinRating == 0 {
		opts.MinRating = 3.5
	}
	if opts.MaxCategoryShare == 0 {
		opts.MaxCategoryShare = 0.30
	}
	if opts.MinResults == 0 {
		opts.MinResults = MinAcceptable
	}

	kept := make([]rank.Ranked, 0, len(ranked))
	for _, r := range ranked {
		if r.Place != nil && r.Place.Rating != nil && *r.Place.Rating < opts.MinRating {
			continue
		}
		if opts.PreferOpenNow && r.Place != nil && r.Place.OpenNow != nil && *r.Place.OpenNow {
			r.Score *= 1.3
		}
		kept = append(kept, r)
	}

	var deferred []rank.Ranked
	if opts.DiversityEnforced {
		kept, deferred = enforceDiversity(kept, opts.MaxCategoryShare)
	}

	// Deferred overflow re-enters best-rating first only while the list is
	// still short.
	if len(kept) < opts.MinResults && len(deferred) > 0 {
		sort.SliceStable(deferred, func(i, j int) bool {
			return ratingOf(deferred[i]) > ratingOf(deferred[j])
		})
		for _, d := range deferred {
			if len(kept) >= opts.MinResults {
				break
			}
			kept = append(kept, d)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ID < kept[j].ID
	})

	return kept, assess(kept)
}

// enforceDiversity caps any single category at the configured share of the
// list, deferring overflow.
func enforceDiversity(in []rank.Ranked, maxShare float64) (kept, deferred []rank.Ranked) {
	if len(in) == 0 {
		return in, nil
	}
	maxPerCategory := int(float64(len(in)) * maxShare)
	if maxPerCategory < 1 {
		maxPerCategory = 1
	}
	counts := map[string]int{}
	for _, r := range in {
		cat := strings.ToLower(r.Category)
		if counts[cat] >= maxPerCategory {
			deferred = append(deferred, r)
			continue
		}
		counts[cat]++
		kept = append(kept, r)
	}
	return kept, deferred
}

func ratingOf(r rank.Ranked) float64 {
	if r.Place != nil && r.Place.Rating != nil {
		return *r.Place.Rating
	}
	return 0
}

// assess grades the list from count and average rating and emits operator
// action hints.
func assess(results []rank.Ranked) Assessment {
	a := Assessment{Count: len(results)}
	rated := 0
	for _, r := range results {
		if rr := ratingOf(r); rr > 0 {
			a.AvgRating += rr
			rated++
		}
	}
	if rated > 0 {
		a.AvgRating /= float64(rated)
	}

	switch {
	case a.Count >= MinGood && a.AvgRating >= 4.3:
		a.Level = LevelExcellent
	case a.Count >= MinGood || (a.Count >= MinAcceptable && a.AvgRating >= 4.0):
		a.Level = LevelGood
	case a.Count >= MinAcceptable:
		a.Level = LevelAcceptable
	default:
		a.Level = LevelPoor
	}

	if a.Count < MinAcceptable {
		a.ActionHints = append(a.ActionHints, "expand_radius")
	}
	if a.Count < MinGood && a.AvgRating > 0 && a.AvgRating < 4.0 {
		a.ActionHints = append(a.ActionHints, "relax_rating_filter")
	}
	if a.Count < MinAcceptable {
		a.ActionHints = append(a.ActionHints, "broaden_query")
	}
	return a
}
