package search

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/citypulse/search/executor"
	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/provider"
)

// countingCatalog wraps the mock catalog with call counters.
type countingCatalog struct {
	mu     sync.Mutex
	inner  *provider.MockCatalog
	places int
	events int
}

func newCountingCatalog() *countingCatalog {
	return &countingCatalog{inner: provider.NewMockCatalog()}
}

func (c *countingCatalog) SearchPlaces(ctx context.Context, q provider.PlacesQuery) ([]provider.Result, error) {
	c.mu.Lock()
	c.places++
	c.mu.Unlock()
	return c.inner.SearchPlaces(ctx, q)
}

func (c *countingCatalog) SearchEvents(ctx context.Context, q provider.EventsQuery) ([]provider.Result, error) {
	c.mu.Lock()
	c.events++
	c.mu.Unlock()
	return c.inner.SearchEvents(ctx, q)
}

func (c *countingCatalog) placeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.places
}

func newTestEngine(t *testing.T) (*Engine, *countingCatalog) {
	t.Helper()
	catalog := newCountingCatalog()
	exec := executor.New(executor.Config{Places: catalog, Events: catalog})
	return NewEngine(Config{Executor: exec}), catalog
}

func userAt(lat, lng float64) plan.UserContext {
	return plan.UserContext{
		Location: &geo.Point{Lat: lat, Lng: lng},
		Timezone: "America/New_York",
		Now:      time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC),
	}
}

func TestSearch_EndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)

	resp := e.Search(context.Background(), Request{
		Query: "cocktail bars near me",
		User:  userAt(40.7128, -74.0060),
	})

	require.NotEmpty(t, resp.Results)
	require.NotEmpty(t, resp.Meta.RequestID)
	require.Contains(t, resp.Meta.UsedProviders, "places")
	require.LessOrEqual(t, len(resp.Results), resp.Pagination.Total)
	require.LessOrEqual(t, len(resp.Results), DefaultLimit)
}

func TestSearch_NoLocationYieldsEmptyEnvelope(t *testing.T) {
	e, cat := newTestEngine(t)

	resp := e.Search(context.Background(), Request{Query: "pizza near me"})
	require.NotNil(t, resp.Results)
	require.Empty(t, resp.Results)
	require.NotEmpty(t, resp.Meta.RequestID)
	require.Equal(t, 0, cat.placeCalls())
}

func TestSearch_SanitizesBadInput(t *testing.T) {
	e, _ := newTestEngine(t)

	resp := e.Search(context.Background(), Request{
		Query:       "tacos",
		User:        plan.UserContext{Location: &geo.Point{Lat: math.NaN(), Lng: 200}},
		RadiusMiles: -5,
		Limit:       9999,
		Offset:      -3,
	})
	// NaN location is scrubbed, so nothing resolves, but the envelope is valid.
	require.NotNil(t, resp.Results)
	require.Equal(t, DefaultLimit, resp.Pagination.Limit)
	require.Equal(t, 0, resp.Pagination.Offset)
}

func TestSearch_Pagination(t *testing.T) {
	e, _ := newTestEngine(t)
	user := userAt(40.7128, -74.0060)

	full := e.Search(context.Background(), Request{Query: "restaurants", User: user, Limit: 100})
	require.Greater(t, full.Pagination.Total, 4)

	page := e.Search(context.Background(), Request{Query: "restaurants", User: user, Limit: 2, Offset: 1})
	require.Len(t, page.Results, 2)
	require.Equal(t, full.Pagination.Total, page.Pagination.Total)
	require.True(t, page.Pagination.HasMore)
	require.Equal(t, full.Results[1].ID, page.Results[0].ID)

	past := e.Search(context.Background(), Request{Query: "restaurants", User: user, Offset: 10000})
	require.Empty(t, past.Results)
	require.False(t, past.Pagination.HasMore)
}

func TestSearch_SecondRequestHitsCache(t *testing.T) {
	e, cat := newTestEngine(t)
	user := userAt(40.7128, -74.0060)
	req := Request{Query: "cocktail bars near me", User: user}

	first := e.Search(context.Background(), req)
	require.False(t, first.Meta.CacheHit)
	callsAfterFirst := cat.placeCalls()
	require.Greater(t, callsAfterFirst, 0)

	second := e.Search(context.Background(), req)
	require.True(t, second.Meta.CacheHit)
	require.Equal(t, callsAfterFirst, cat.placeCalls())
	require.Equal(t, len(first.Results), len(second.Results))
}

func TestSearch_ScoresDescendAndResultsScored(t *testing.T) {
	e, _ := newTestEngine(t)
	resp := e.Search(context.Background(), Request{
		Query: "bars near me",
		User:  userAt(40.7128, -74.0060),
	})
	require.NotEmpty(t, resp.Results)
	for i, r := range resp.Results {
		require.False(t, math.IsNaN(r.Score))
		require.GreaterOrEqual(t, r.Score, 0.0)
		if i > 0 {
			require.LessOrEqual(t, r.Score, resp.Results[i-1].Score)
		}
	}
}

func TestSearch_FeedbackAttached(t *testing.T) {
	e, _ := newTestEngine(t)
	resp := e.Search(context.Background(), Request{
		Query: "coffee near me",
		User:  userAt(40.7128, -74.0060),
	})
	require.NotNil(t, resp.Meta.Feedback)

	e.Flags().Toggle(flags.UXFeedback, false)
	resp = e.Search(context.Background(), Request{
		Query: "coffee near me",
		User:  userAt(40.7128, -74.0060),
	})
	require.Nil(t, resp.Meta.Feedback)
}

func TestSearch_FallbacksRecordedWhenSparse(t *testing.T) {
	catalog := newCountingCatalog()
	catalog.inner.PlacesPerRegion = 2
	catalog.inner.EventsPerRegion = 1
	exec := executor.New(executor.Config{Places: catalog, Events: catalog})
	e := NewEngine(Config{Executor: exec})

	resp := e.Search(context.Background(), Request{
		Query: "obscure niche hobby",
		User:  userAt(40.7128, -74.0060),
	})
	require.NotEmpty(t, resp.Meta.Fallbacks)
	require.Equal(t, "exact", resp.Meta.Fallbacks[0].Strategy)
}

func TestSearch_FallbacksDisabledByFlag(t *testing.T) {
	catalog := newCountingCatalog()
	catalog.inner.PlacesPerRegion = 1
	catalog.inner.EventsPerRegion = 1
	exec := executor.New(executor.Config{Places: catalog, Events: catalog})
	e := NewEngine(Config{Executor: exec})
	e.Flags().Toggle(flags.SmartFallbacks, false)

	resp := e.Search(context.Background(), Request{
		Query: "obscure niche hobby",
		User:  userAt(40.7128, -74.0060),
	})
	require.Empty(t, resp.Meta.Fallbacks)
}

func TestSearch_NoExecutorStillAnswers(t *testing.T) {
	e := NewEngine(Config{})
	resp := e.Search(context.Background(), Request{
		Query: "pizza near me",
		User:  userAt(40.7128, -74.0060),
	})
	require.NotNil(t, resp.Results)
	require.Empty(t, resp.Results)
	require.NotEmpty(t, resp.Meta.RequestID)
}

func TestDiagnose(t *testing.T) {
	e, _ := newTestEngine(t)
	d := e.Diagnose()
	require.NotEmpty(t, d.Flags)
	require.NotNil(t, d.Breakers)
	require.NotNil(t, d.Budgets)
}

func TestCheckHealth(t *testing.T) {
	e, _ := newTestEngine(t)
	h := e.CheckHealth()
	require.Equal(t, "healthy", h.Status)
	require.Equal(t, "closed", h.Components["provider_places"])

	down := NewEngine(Config{})
	require.Equal(t, "down", down.CheckHealth().Status)
}

func TestRequestSanitize(t *testing.T) {
	r := Request{RadiusMiles: 500, Limit: -1, Offset: -10}.sanitize()
	require.Equal(t, DefaultRadiusMiles, r.RadiusMiles)
	require.Equal(t, DefaultLimit, r.Limit)
	require.Equal(t, 0, r.Offset)
	require.Equal(t, "UTC", r.User.Timezone)
	require.False(t, r.User.Now.IsZero())

	keep := Request{RadiusMiles: 25, Limit: 50, Offset: 5}.sanitize()
	require.Equal(t, 25, keep.RadiusMiles)
	require.Equal(t, 50, keep.Limit)
	require.Equal(t, 5, keep.Offset)
}
