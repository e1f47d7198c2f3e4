package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/citypulse/search/breaker"
	"github.com/hrygo/citypulse/search/cache"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/provider"
)

type fakePlaces struct {
	mu      sync.Mutex
	calls   int
	results []provider.Result
	err     error
}

func (f *fakePlaces) SearchPlaces(_ context.Context, _ provider.PlacesQuery) ([]provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

func (f *fakePlaces) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEvents struct {
	mu      sync.Mutex
	calls   int
	results []provider.Result
	err     error
}

func (f *fakeEvents) SearchEvents(_ context.Context, _ provider.EventsQuery) ([]provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

func (f *fakeEvents) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func placeResults(ids ...string) []provider.Result {
	out := make([]provider.Result, 0, len(ids))
	for _, id := range ids {
		out = append(out, provider.Result{ID: id, Kind: provider.KindPlace, Title: id})
	}
	return out
}

func testIntent(kw string) *intent.SearchIntent {
	return &intent.SearchIntent{
		Kind:     intent.KindBoth,
		Keywords: []string{kw},
		Location: intent.LocationHint{Kind: intent.LocationNearMe},
	}
}

func resolvedBoth(kw string) plan.ResolvedPlan {
	return plan.ResolvedPlan{
		ProviderPlan: plan.ProviderPlan{
			CallPlaces:         true,
			CallEvents:         true,
			PlacesRadiusMeters: 2500,
			PlacesMaxResults:   20,
			EventsRadiusMiles:  25,
			EventsMaxResults:   25,
			PlacesKeyword:      kw,
			EventsKeyword:      kw,
		},
		Center: geo.Point{Lat: 40.7128, Lng: -74.0060},
	}
}

func TestExecute_UnresolvedPlanSkipsProviders(t *testing.T) {
	places := &fakePlaces{results: placeResults("a")}
	e := New(Config{Places: places})

	results, meta := e.Execute(context.Background(), testIntent("jazz"), plan.ResolvedPlan{
		ProviderPlan: plan.ProviderPlan{CallPlaces: true},
	}, nil)
	require.Empty(t, results)
	require.Equal(t, 0, places.callCount())
	require.NotEmpty(t, meta.ProviderNotes)
}

func TestExecute_FanOutMergesProviders(t *testing.T) {
	places := &fakePlaces{results: placeResults("p1", "p2")}
	events := &fakeEvents{results: []provider.Result{{ID: "e1", Kind: provider.KindEvent, Title: "e1"}}}
	e := New(Config{Places: places, Events: events})

	results, meta := e.Execute(context.Background(), testIntent("jazz"), resolvedBoth("jazz"), nil)
	require.Len(t, results, 3)
	require.True(t, meta.UsedPlaces)
	require.True(t, meta.UsedEvents)
	require.False(t, meta.CacheHit)
	require.Equal(t, 1, places.callCount())
	require.Equal(t, 1, events.callCount())
}

func TestExecute_SecondCallServedFromRankedCache(t *testing.T) {
	places := &fakePlaces{results: placeResults("p1", "p2")}
	e := New(Config{Places: places})
	rp := resolvedBoth("jazz")
	rp.CallEvents = false

	first, meta := e.Execute(context.Background(), testIntent("jazz"), rp, nil)
	require.False(t, meta.CacheHit)

	second, meta := e.Execute(context.Background(), testIntent("jazz"), rp, nil)
	require.True(t, meta.CacheHit)
	require.True(t, meta.UsedPlaces)
	require.Equal(t, len(first), len(second))
	require.Equal(t, 1, places.callCount())
}

func TestExecute_RankFuncAppliedBeforeCaching(t *testing.T) {
	places := &fakePlaces{results: placeResults("low", "high")}
	e := New(Config{Places: places})
	rp := resolvedBoth("jazz")
	rp.CallEvents = false

	reverse := func(in []provider.Result) []provider.Result {
		out := make([]provider.Result, len(in))
		for i, r := range in {
			out[len(in)-1-i] = r
		}
		return out
	}

	first, _ := e.Execute(context.Background(), testIntent("jazz"), rp, reverse)
	require.Equal(t, "high", first[0].ID)

	// The cached list is already ranked; a hit replays it verbatim.
	second, meta := e.Execute(context.Background(), testIntent("jazz"), rp, nil)
	require.True(t, meta.CacheHit)
	require.Equal(t, "high", second[0].ID)
}

func TestExecute_ProviderFailureDegrades(t *testing.T) {
	places := &fakePlaces{err: errors.New("upstream 503")}
	events := &fakeEvents{results: []provider.Result{{ID: "e1", Kind: provider.KindEvent}}}
	e := New(Config{Places: places, Events: events})

	results, meta := e.Execute(context.Background(), testIntent("jazz"), resolvedBoth("jazz"), nil)
	require.Len(t, results, 1)
	require.Equal(t, "e1", results[0].ID)
	require.Contains(t, meta.ProviderNotes, "places provider error")
	require.Equal(t, breaker.StateClosed, e.Breakers()["places"].State)
	require.Equal(t, 1, e.Breakers()["places"].Failures)
}

// slowPlaces blocks until its context is done, standing in for a hung
// upstream.
type slowPlaces struct{}

func (slowPlaces) SearchPlaces(ctx context.Context, _ provider.PlacesQuery) ([]provider.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExecute_SlowProviderTimesOut(t *testing.T) {
	e := New(Config{Places: slowPlaces{}, ProviderTimeout: 15 * time.Millisecond})
	rp := resolvedBoth("jazz")
	rp.CallEvents = false

	results, meta := e.Execute(context.Background(), testIntent("jazz"), rp, nil)
	require.Empty(t, results)
	require.Contains(t, meta.ProviderNotes, "places provider timeout")
	require.Equal(t, 1, e.Breakers()["places"].Failures, "a timeout counts toward the breaker")
}

func TestExecute_BreakerOpensAndFastFails(t *testing.T) {
	places := &fakePlaces{err: errors.New("upstream 503")}
	e := New(Config{Places: places})

	// Distinct keywords defeat both cache layers so every call reaches the
	// provider until the breaker trips.
	for i := 0; i < 5; i++ {
		rp := resolvedBoth(fmt.Sprintf("kw%d", i))
		rp.CallEvents = false
		e.Execute(context.Background(), testIntent(fmt.Sprintf("kw%d", i)), rp, nil)
	}
	require.Equal(t, breaker.StateOpen, e.Breakers()["places"].State)
	require.Equal(t, 5, places.callCount())

	rp := resolvedBoth("kw-final")
	rp.CallEvents = false
	_, meta := e.Execute(context.Background(), testIntent("kw-final"), rp, nil)
	require.Contains(t, meta.ProviderNotes, "places breaker open")
	require.Equal(t, 5, places.callCount()) // fast-failed, no provider call
}

func TestExecute_BudgetExhaustionSkipsProvider(t *testing.T) {
	places := &fakePlaces{results: placeResults("p1")}
	e := New(Config{Places: places, PlacesDailyCalls: 1})

	rp := resolvedBoth("first")
	rp.CallEvents = false
	_, meta := e.Execute(context.Background(), testIntent("first"), rp, nil)
	require.Empty(t, meta.ProviderNotes)

	rp = resolvedBoth("second")
	rp.CallEvents = false
	_, meta = e.Execute(context.Background(), testIntent("second"), rp, nil)
	require.Contains(t, meta.ProviderNotes, "places daily budget exhausted")
	require.Equal(t, 1, places.callCount())
}

func TestExecute_ProviderCacheSharedAcrossIntents(t *testing.T) {
	places := &fakePlaces{results: placeResults("p1")}
	e := New(Config{Places: places})

	// Same provider query under different intent kinds: the ranked keys
	// differ but the provider-level cache still absorbs the second fetch.
	rp := resolvedBoth("jazz")
	rp.CallEvents = false

	si1 := testIntent("jazz")
	si1.Kind = intent.KindPlace
	si2 := testIntent("jazz")
	si2.Kind = intent.KindBoth

	e.Execute(context.Background(), si1, rp, nil)
	_, meta := e.Execute(context.Background(), si2, rp, nil)
	require.False(t, meta.CacheHit) // ranked miss
	require.Equal(t, 1, places.callCount())
}

func TestExecute_CorruptCacheEntryIsDropped(t *testing.T) {
	store := cache.NewMemoryStore(64, time.Minute)
	places := &fakePlaces{results: placeResults("p1")}
	e := New(Config{Places: places, Store: store})
	rp := resolvedBoth("jazz")
	rp.CallEvents = false
	si := testIntent("jazz")

	pq, _ := e.buildQueries(rp)
	store.Set(context.Background(), PlacesKey(pq), []byte("{not json"), time.Minute)

	results, _ := e.Execute(context.Background(), si, rp, nil)
	require.Len(t, results, 1)
	require.Equal(t, 1, places.callCount())
}

func TestProviderTTLPolicy(t *testing.T) {
	require.Equal(t, providerTTLNearMe, providerTTL(intent.LocationNearMe))
	require.Equal(t, providerTTLArea, providerTTL(intent.LocationCity))
	require.Equal(t, providerTTLArea, providerTTL(intent.LocationZip))
	require.Equal(t, providerTTLDefault, providerTTL(intent.LocationUnknown))

	require.Equal(t, rankedTTLNearMe, rankedTTL(intent.LocationNearMe))
	require.Equal(t, rankedTTLDefault, rankedTTL(intent.LocationCity))
}

func TestBuildQueriesClampsPlanValues(t *testing.T) {
	e := New(Config{})
	rp := resolvedBoth("jazz")
	rp.PlacesRadiusMeters = 90000
	rp.EventsRadiusMiles = 500
	rp.PlacesMaxResults = 0

	pq, eq := e.buildQueries(rp)
	require.Equal(t, 50000, pq.RadiusMeters)
	require.Equal(t, 1, pq.MaxResults)
	require.Equal(t, 100, eq.RadiusMiles)
}

func TestBudgetsSnapshot(t *testing.T) {
	e := New(Config{Places: &fakePlaces{results: placeResults("p1")}})
	rp := resolvedBoth("jazz")
	rp.CallEvents = false
	e.Execute(context.Background(), testIntent("jazz"), rp, nil)

	b := e.Budgets()["places"]
	require.Equal(t, 1, b.Calls)
	require.InDelta(t, 0.017, b.SpentUSD, 1e-9)
}
