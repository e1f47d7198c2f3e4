package executor

import (
	"context"
	"strings"

	"github.com/hrygo/citypulse/search/provider"
	"github.com/hrygo/citypulse/search/taxonomy"
)

// Fallback thresholds and caps.
const (
	FallbackMinResults     = 5
	FallbackMaxRadiusMiles = 50
)

// Fallback strategy names, in order of application.
const (
	StrategyExact           = "exact"
	StrategyDoubleRadius    = "double_radius"
	StrategyQuadRadius      = "quad_radius"
	StrategyBroadenedQuery  = "broadened_query"
	StrategyRelatedCategory = "related_category"
	StrategyModelRephrase   = "model_rephrase"
	StrategyEmptyMaxRadius  = "empty_max_radius"
)

// Attempt records one fallback search for the trace.
type Attempt struct {
	Strategy    string `json:"strategy"`
	Query       string `json:"query"`
	RadiusMiles int    `json:"radiusMiles"`
	Count       int    `json:"count"`
	Success     bool   `json:"success"`
}

// SearchFn re-runs the full pipeline for a rewritten query and radius.
// Supplied by the orchestrator so fallbacks reuse classification,
// planning, and the executor's caches.
type SearchFn func(ctx context.Context, query string, radiusMiles int) []provider.Result

// RephraseFn asks the model classifier for alternative keyword sets.
// Nil when the model is unavailable.
type RephraseFn func(ctx context.Context, query string) []string

// modifier tokens stripped first when broadening a query.
var broadenModifiers = map[string]struct{}{
	"cheap": {}, "free": {}, "budget": {}, "affordable": {},
	"fancy": {}, "upscale": {}, "expensive": {},
	"chill": {}, "cozy": {}, "quiet": {}, "lively": {},
	"romantic": {}, "trendy": {}, "aesthetic": {}, "hip": {},
	"best": {}, "good": {}, "great": {},
}

// RunFallbacks applies the never-empty strategy ladder. It stops as soon
// as a strategy yields at least FallbackMinResults and otherwise returns
// the largest set found, with the complete attempt trace.
func RunFallbacks(ctx context.Context, query string, radiusMiles int, initial []provider.Result, search SearchFn, rephrase RephraseFn) ([]provider.Result, []Attempt) {
	best := initial
	var attempts []Attempt

	record := func(strategy, q string, radius int, results []provider.Result) bool {
		ok := len(results) >= FallbackMinResults
		attempts = append(attempts, Attempt{
			Strategy:    strategy,
			Query:       q,
			RadiusMiles: radius,
			Count:       len(results),
			Success:     ok,
		})
		if len(results) > len(best) {
			best = results
		}
		return ok
	}

	if record(StrategyExact, query, radiusMiles, initial) {
		return initial, attempts
	}
	if ctx.Err() != nil {
		return best, attempts
	}

	for _, mult := range []struct {
		strategy string
		factor   int
	}{{StrategyDoubleRadius, 2}, {StrategyQuadRadius, 4}} {
		radius := radiusMiles * mult.factor
		if radius > FallbackMaxRadiusMiles {
			radius = FallbackMaxRadiusMiles
		}
		results := search(ctx, query, radius)
		if record(mult.strategy, query, radius, results) {
			return results, attempts
		}
		if ctx.Err() != nil {
			return best, attempts
		}
	}

	for _, q := range BroadenQueries(query) {
		results := search(ctx, q, FallbackMaxRadiusMiles)
		if record(StrategyBroadenedQuery, q, FallbackMaxRadiusMiles, results) {
			return results, attempts
		}
		if ctx.Err() != nil {
			return best, attempts
		}
	}

	for _, q := range RelatedQueries(query) {
		results := search(ctx, q, FallbackMaxRadiusMiles)
		if record(StrategyRelatedCategory, q, FallbackMaxRadiusMiles, results) {
			return results, attempts
		}
		if ctx.Err() != nil {
			return best, attempts
		}
	}

	if rephrase != nil {
		for _, q := range rephrase(ctx, query) {
			results := search(ctx, q, FallbackMaxRadiusMiles)
			if record(StrategyModelRephrase, q, FallbackMaxRadiusMiles, results) {
				return results, attempts
			}
			if ctx.Err() != nil {
				return best, attempts
			}
		}
	}

	results := search(ctx, "", FallbackMaxRadiusMiles)
	record(StrategyEmptyMaxRadius, "", FallbackMaxRadiusMiles, results)
	if len(results) > 0 {
		return results, attempts
	}
	return best, attempts
}

// BroadenQueries produces progressively wider rewrites: first with mood
// and budget modifiers removed, then with trailing tokens dropped one at
// a time. Duplicates and the original are omitted.
func BroadenQueries(query string) []string {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	var out []string
	seen := map[string]struct{}{strings.Join(tokens, " "): {}}
	add := func(toks []string) {
		q := strings.Join(toks, " ")
		if q == "" {
			return
		}
		if _, dup := seen[q]; dup {
			return
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}

	stripped := tokens[:0:0]
	for _, t := range tokens {
		if _, mod := broadenModifiers[t]; !mod {
			stripped = append(stripped, t)
		}
	}
	add(stripped)

	base := stripped
	if len(base) == 0 {
		base = tokens
	}
	for i := len(base) - 1; i >= 1; i-- {
		add(base[:i])
	}
	return out
}

// RelatedQueries maps query tokens through the closed category relation
// table so "sushi" fans out to japanese/asian/seafood and so on.
func RelatedQueries(query string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, token := range strings.Fields(strings.ToLower(query)) {
		for _, rel := range taxonomy.RelatedCategories[token] {
			if _, dup := seen[rel]; dup {
				continue
			}
			seen[rel] = struct{}{}
			out = append(out, rel)
		}
	}
	return out
}
