package rank

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/provider"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }

func placeAt(id string, distMeters float64) provider.Result {
	return provider.Result{
		ID: id, Kind: provider.KindPlace, Title: id,
		Point:          geo.Point{Lat: 40.73, Lng: -73.99},
		DistanceMeters: distMeters,
		Place:          &provider.PlaceFields{},
	}
}

func TestProximityScore(t *testing.T) {
	tests := []struct {
		meters float64
		want   float64
	}{
		{100, 1.0},
		{500, 1.0},
		{800, 0.85},
		{1500, 0.65},
		{4000, 0.40},
		{8000, 0.20},
		{15000, 0.10},
		{30000, 0.05},
	}
	for _, tt := range tests {
		got := proximityScore(placeAt("x", tt.meters))
		require.Equal(t, tt.want, got, "distance %v", tt.meters)
	}
}

func TestRatingScore(t *testing.T) {
	r := placeAt("x", 100)
	require.Equal(t, 0.5, ratingScore(r)) // missing rating is neutral

	r.Place.Rating = floatPtr(4.5)
	require.InDelta(t, 0.9, ratingScore(r), 1e-9)
}

func TestPopularityScore(t *testing.T) {
	r := placeAt("x", 100)
	require.Equal(t, 0.25, popularityScore(r))

	r.Place.ReviewCount = intPtr(250)
	require.InDelta(t, 0.5, popularityScore(r), 1e-9) // sigmoid midpoint

	r.Place.ReviewCount = intPtr(5000)
	require.Greater(t, popularityScore(r), 0.99)

	r.Place.ReviewCount = intPtr(5)
	require.Less(t, popularityScore(r), 0.2)
}

func TestNoveltyScore(t *testing.T) {
	gem := placeAt("gem", 100)
	gem.Place.Rating = floatPtr(4.8)
	gem.Place.ReviewCount = intPtr(12)
	// 0.4 + 0.3 + 0.2 with no micro category.
	require.InDelta(t, 0.9, noveltyScore(gem, Context{}), 1e-9)

	chain := placeAt("chain", 100)
	chain.Place.Rating = floatPtr(4.0)
	chain.Place.ReviewCount = intPtr(5000)
	require.Equal(t, 0.0, noveltyScore(chain, Context{}))

	micro := placeAt("micro", 100)
	micro.Category = "speakeasy"
	micro.Place.ReviewCount = intPtr(100)
	require.InDelta(t, 0.15, noveltyScore(micro, Context{}), 1e-9)
}

func TestTemporalScore_Places(t *testing.T) {
	now := time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC)
	immediate := Context{
		Now:    now,
		Intent: &intent.SearchIntent{Sub: &intent.SubIntents{Urgency: intent.UrgencyImmediate}},
	}
	planning := Context{Now: now}

	open := placeAt("open", 100)
	open.Place.OpenNow = boolPtr(true)
	closed := placeAt("closed", 100)
	closed.Place.OpenNow = boolPtr(false)
	unknown := placeAt("unknown", 100)

	require.Equal(t, 1.0, temporalScore(open, immediate))
	require.Equal(t, 0.05, temporalScore(closed, immediate))
	require.Equal(t, 0.5, temporalScore(unknown, immediate))

	require.Equal(t, 0.7, temporalScore(open, planning))
	require.Equal(t, 0.5, temporalScore(closed, planning))
}

func TestTemporalScore_Events(t *testing.T) {
	now := time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC)
	event := func(startIn time.Duration) provider.Result {
		start := now.Add(startIn)
		return provider.Result{
			ID: "e", Kind: provider.KindEvent,
			Event: &provider.EventFields{Start: &start},
		}
	}
	immediate := Context{
		Now:    now,
		Intent: &intent.SearchIntent{Sub: &intent.SubIntents{Urgency: intent.UrgencyImmediate}},
	}

	require.Equal(t, 1.0, temporalScore(event(time.Hour), immediate))
	require.Equal(t, 0.85, temporalScore(event(5*time.Hour), immediate))
	require.Equal(t, 0.2, temporalScore(event(48*time.Hour), immediate))

	// Just-started events stay joinable; long-over events sink.
	require.Equal(t, 0.8, temporalScore(event(-time.Hour), immediate))
	require.Equal(t, 0.1, temporalScore(event(-5*time.Hour), immediate))

	// With the momentum lift off, a just-started event sinks like any
	// other past event.
	noMomentum := immediate
	noMomentum.DisableMomentum = true
	require.Equal(t, 0.1, temporalScore(event(-time.Hour), noMomentum))

	// Missing start is neutral.
	noStart := provider.Result{Kind: provider.KindEvent, Event: &provider.EventFields{}}
	require.Equal(t, 0.5, temporalScore(noStart, immediate))
}

func TestIntentMatchScore(t *testing.T) {
	si := &intent.SearchIntent{
		Kind:     intent.KindPlace,
		Keywords: []string{"jazz"},
		Vibes:    []string{"cozy"},
	}
	r := placeAt("x", 100)
	r.Title = "Cozy Jazz Cellar"
	// 0.35 kind + 0.15 keyword + 0.10 vibe.
	require.InDelta(t, 0.60, intentMatchScore(r, si), 1e-9)

	require.Equal(t, 0.0, intentMatchScore(r, nil))

	mismatch := provider.Result{Kind: provider.KindEvent, Title: "Opera Gala"}
	require.Equal(t, 0.0, intentMatchScore(mismatch, si))
}

func TestIndependenceScore(t *testing.T) {
	indie := placeAt("indie", 100)
	indie.Title = "Family Owned Trattoria"
	indie.Place.ReviewCount = intPtr(80)
	// 0.5 + 0.3 indie token + 0.2 low reviews.
	require.Equal(t, 1.0, independenceScore(indie, Context{}))

	chain := placeAt("chain", 100)
	chain.Title = "Starbucks Reserve"
	require.LessOrEqual(t, independenceScore(chain, Context{}), 0.1)
}

func TestRank_SortsDescendingWithStableTies(t *testing.T) {
	near := placeAt("near", 200)
	near.Place.Rating = floatPtr(4.8)
	near.Place.ReviewCount = intPtr(400)
	far := placeAt("far", 18000)

	out := Rank([]provider.Result{far, near}, Context{})
	require.Len(t, out, 2)
	require.Equal(t, "near", out[0].ID)
	require.GreaterOrEqual(t, out[0].Score, out[1].Score)

	// Identical candidates tie-break by ID for a total order.
	a := placeAt("aaa", 300)
	b := placeAt("bbb", 300)
	out = Rank([]provider.Result{b, a}, Context{})
	require.Equal(t, "aaa", out[0].ID)
	require.Equal(t, out[0].Score, out[1].Score)
}

func TestRank_ScoresInRange(t *testing.T) {
	gem := placeAt("gem", 100)
	gem.Place.Rating = floatPtr(4.9)
	gem.Place.ReviewCount = intPtr(10)
	giant := placeAt("giant", 100)
	giant.Place.Rating = floatPtr(4.2)
	giant.Place.ReviewCount = intPtr(9000)

	out := Rank([]provider.Result{gem, giant}, Context{})
	for _, r := range out {
		require.GreaterOrEqual(t, r.Score, 0.0)
		require.False(t, math.IsNaN(r.Score))
		require.Equal(t, r.Score, r.Breakdown.Final)
		require.NotEmpty(t, r.Reason)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	in := []provider.Result{placeAt("a", 100), placeAt("b", 9000)}
	Rank(in, Context{})
	require.Equal(t, "a", in[0].ID)
	require.Equal(t, 0.0, in[0].Score)
}

func TestRank_Deterministic(t *testing.T) {
	in := []provider.Result{placeAt("a", 100), placeAt("b", 2500), placeAt("c", 700)}
	ctx := Context{Intent: &intent.SearchIntent{Kind: intent.KindPlace, Keywords: []string{"bar"}}}
	first := Rank(in, ctx)
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(first, Rank(in, ctx)) {
			t.Fatal("Rank is not deterministic")
		}
	}
}

func TestBaseWeightsSumToOne(t *testing.T) {
	w := BaseWeights()
	sum := w.Proximity + w.Rating + w.Popularity + w.Novelty +
		w.Temporal + w.IntentMatch + w.Vibrancy + w.Independence
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestAdaptWeights(t *testing.T) {
	eventCtx := Context{Intent: &intent.SearchIntent{
		Kind: intent.KindEvent,
		Sub:  &intent.SubIntents{Urgency: intent.UrgencyImmediate},
	}}
	w := AdaptWeights(eventCtx)
	base := BaseWeights()
	require.Greater(t, w.Temporal, base.Temporal)
	require.Less(t, w.Proximity, base.Proximity)

	sum := w.Proximity + w.Rating + w.Popularity + w.Novelty +
		w.Temporal + w.IntentMatch + w.Vibrancy + w.Independence
	require.InDelta(t, 1.0, sum, 1e-9)

	// Nil intent keeps the base profile.
	require.Equal(t, base, AdaptWeights(Context{}))

	// Adventurous mood boosts novelty.
	moodCtx := Context{Intent: &intent.SearchIntent{
		Sub: &intent.SubIntents{Mood: "adventurous"},
	}}
	require.Greater(t, AdaptWeights(moodCtx).Novelty, base.Novelty)
}

func TestRank_DisableAdaptivePinsBaseWeights(t *testing.T) {
	in := []provider.Result{placeAt("a", 100)}
	si := &intent.SearchIntent{Kind: intent.KindEvent, Sub: &intent.SubIntents{Urgency: intent.UrgencyImmediate}}

	adaptive := Rank(in, Context{Intent: si})
	pinned := Rank(in, Context{Intent: si, DisableAdaptive: true})
	baseline := Rank(in, Context{DisableAdaptive: true})

	// With adaptive off, the weight profile no longer follows the intent.
	require.NotEqual(t, adaptive[0].Score, pinned[0].Score)
	_ = baseline
}

func TestAntiBias(t *testing.T) {
	giant := placeAt("giant", 100)
	giant.Place.ReviewCount = intPtr(5000)
	require.InDelta(t, 0.95, antiBias(1.0, giant, Context{}), 1e-9)

	gem := placeAt("gem", 100)
	gem.Place.Rating = floatPtr(4.8)
	gem.Place.ReviewCount = intPtr(12)
	require.InDelta(t, 1.15, antiBias(1.0, gem, Context{}), 1e-9)

	event := provider.Result{Kind: provider.KindEvent}
	require.Equal(t, 0.7, antiBias(0.7, event, Context{}))
}

func TestFactorToggles(t *testing.T) {
	micro := placeAt("micro", 100)
	micro.Category = "speakeasy"
	micro.Place.ReviewCount = intPtr(100)
	require.Equal(t, 0.0, noveltyScore(micro, Context{DisableMicroCategories: true}))

	indie := placeAt("indie", 100)
	indie.Title = "Family Owned Trattoria"
	indie.Place.ReviewCount = intPtr(80)
	require.Equal(t, 0.5, independenceScore(indie, Context{DisableIndependence: true}))

	cluster := []provider.Result{placeAt("a", 100), placeAt("b", 120), placeAt("c", 140)}
	require.Equal(t, 0.0, vibrancyScore(cluster[0], cluster, Context{DisableVibrancy: true}))
	require.Greater(t, vibrancyScore(cluster[0], cluster, Context{}), 0.0)

	gem := placeAt("gem", 100)
	gem.Place.Rating = floatPtr(4.8)
	gem.Place.ReviewCount = intPtr(12)
	require.Equal(t, 1.0, antiBias(1.0, gem, Context{DisableSmallVenueBoost: true}))
}

func TestLocalityBoost(t *testing.T) {
	// placeAt pins candidates in the East Village cell, which carries a
	// 1.06 neighborhood multiplier.
	walkable := placeAt("walkable", 400)
	require.InDelta(t, 1.05*1.06, localityBoost(1.0, walkable, Context{}), 1e-9)
	require.InDelta(t, 1.06, localityBoost(1.0, walkable, Context{DisableHyperlocal: true}), 1e-9)
	require.InDelta(t, 1.05, localityBoost(1.0, walkable, Context{DisableNeighborhood: true}), 1e-9)

	farAway := placeAt("far", 5000)
	farAway.Point = geo.Point{Lat: 44.98, Lng: -93.27}
	require.Equal(t, 1.0, localityBoost(1.0, farAway, Context{}))
}

func TestNeighborhoodBoost(t *testing.T) {
	require.InDelta(t, 1.06, NeighborhoodBoost(geo.Point{Lat: 40.731, Lng: -73.988}), 1e-9)
	require.InDelta(t, 1.05, NeighborhoodBoost(geo.Point{Lat: 41.909, Lng: -87.677}), 1e-9)
	require.Equal(t, 1.0, NeighborhoodBoost(geo.Point{Lat: 44.98, Lng: -93.27}))
	require.Equal(t, 1.0, NeighborhoodBoost(geo.Point{}))
}
