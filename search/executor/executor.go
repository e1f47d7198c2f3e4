// Package executor fans a resolved plan out to the place and event
// catalogs with caching, in-flight deduplication, circuit breaking, and
// per-provider daily cost budgets. Provider failures never propagate:
// a failed provider contributes an empty slice.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/citypulse/search/breaker"
	"github.com/hrygo/citypulse/search/cache"
	"github.com/hrygo/citypulse/search/cost"
	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/metrics"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/provider"
)

// TTL policy. Near-me results go stale fastest; named-area searches are
// more shareable and live longer.
const (
	providerTTLNearMe  = 45 * time.Second
	providerTTLDefault = 60 * time.Second
	providerTTLArea    = 90 * time.Second

	rankedTTLNearMe  = 30 * time.Second
	rankedTTLDefault = 60 * time.Second
)

// Per-call cost estimates used by the daily budgets.
const (
	placesCostPerCall = 0.017
	eventsCostPerCall = 0.005
)

// A slow provider must not hold the whole request; each upstream call gets
// its own deadline and a timeout counts as a provider failure.
const defaultProviderTimeout = 8 * time.Second

// RankFunc turns the raw merged provider results into the final ordered
// list. It must be pure so that cached ranked output stays valid.
type RankFunc func(results []provider.Result) []provider.Result

// Meta is the execution trace returned alongside results.
type Meta struct {
	UsedPlaces     bool     `json:"usedPlaces"`
	UsedEvents     bool     `json:"usedEvents"`
	CacheHit       bool     `json:"cacheHit"`
	InFlightShared bool     `json:"inFlightShared,omitempty"`
	ProviderNotes  []string `json:"providerNotes,omitempty"`
}

// Config wires the executor's collaborators. Store defaults to an
// in-memory TTL cache; the exporters are optional.
type Config struct {
	Places provider.Places
	Events provider.Events

	Store   cache.Store
	Flags   *flags.Set
	Metrics *metrics.PrometheusExporter
	Logger  *slog.Logger

	PlacesDailyUSD   float64
	PlacesDailyCalls int
	EventsDailyUSD   float64
	EventsDailyCalls int

	ProviderTimeout time.Duration // 0 means defaultProviderTimeout
}

// Executor coordinates provider fan-out for one process.
type Executor struct {
	places provider.Places
	events provider.Events

	store   cache.Store
	flags   *flags.Set
	metrics *metrics.PrometheusExporter
	logger  *slog.Logger
	timeout time.Duration

	group singleflight.Group

	placesBreaker *breaker.Breaker
	eventsBreaker *breaker.Breaker
	placesBudget  *cost.Budget
	eventsBudget  *cost.Budget
}

// New builds an executor from the config, filling defaults for any
// collaborator left nil.
func New(cfg Config) *Executor {
	if cfg.Store == nil {
		cfg.Store = cache.NewMemoryStore(2048, providerTTLDefault)
	}
	if cfg.Flags == nil {
		cfg.Flags = flags.NewFromEnv()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PlacesDailyUSD == 0 {
		cfg.PlacesDailyUSD = 10.0
	}
	if cfg.PlacesDailyCalls == 0 {
		cfg.PlacesDailyCalls = 588
	}
	if cfg.EventsDailyUSD == 0 {
		cfg.EventsDailyUSD = 5.0
	}
	if cfg.EventsDailyCalls == 0 {
		cfg.EventsDailyCalls = 1000
	}
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}

	return &Executor{
		places:        cfg.Places,
		events:        cfg.Events,
		store:         cfg.Store,
		flags:         cfg.Flags,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With("component", "executor"),
		timeout:       cfg.ProviderTimeout,
		placesBreaker: breaker.New("places"),
		eventsBreaker: breaker.New("events"),
		placesBudget:  cost.NewBudget("places", cfg.PlacesDailyUSD, cfg.PlacesDailyCalls),
		eventsBudget:  cost.NewBudget("events", cfg.EventsDailyUSD, cfg.EventsDailyCalls),
	}
}

// Breakers exposes breaker snapshots for diagnostics.
func (e *Executor) Breakers() map[string]breaker.Snapshot {
	return map[string]breaker.Snapshot{
		"places": e.placesBreaker.Snapshot(),
		"events": e.eventsBreaker.Snapshot(),
	}
}

// Budgets exposes budget snapshots for diagnostics.
func (e *Executor) Budgets() map[string]cost.Report {
	return map[string]cost.Report{
		"places": e.placesBudget.Snapshot(),
		"events": e.eventsBudget.Snapshot(),
	}
}

// rankedEnvelope is the serialized ranked-cache payload.
type rankedEnvelope struct {
	Results    []provider.Result `json:"results"`
	UsedPlaces bool              `json:"usedPlaces"`
	UsedEvents bool              `json:"usedEvents"`
}

// Execute runs the plan: ranked-cache check, parallel provider fan-out,
// ranking, and ranked-cache write. Never returns an error; degraded
// executions record notes in Meta.
func (e *Executor) Execute(ctx context.Context, si *intent.SearchIntent, rp plan.ResolvedPlan, rank RankFunc) ([]provider.Result, Meta) {
	meta := Meta{}
	if !rp.Resolved() {
		meta.ProviderNotes = append(meta.ProviderNotes, "plan unresolved, skipping providers")
		return nil, meta
	}

	pq, eq := e.buildQueries(rp)

	var providerKeys []string
	if rp.CallPlaces && e.places != nil {
		providerKeys = append(providerKeys, PlacesKey(pq))
	}
	if rp.CallEvents && e.events != nil {
		providerKeys = append(providerKeys, EventsKey(eq))
	}
	rankedKey := RankedKey(providerKeys, si)

	if env, ok := e.loadRanked(ctx, rankedKey); ok {
		e.recordCacheHit("ranked")
		meta.CacheHit = true
		meta.UsedPlaces = env.UsedPlaces
		meta.UsedEvents = env.UsedEvents
		return env.Results, meta
	}
	e.recordCacheMiss("ranked")

	v, _, shared := e.group.Do(rankedKey, func() (any, error) {
		env := e.fanOut(ctx, si, rp, pq, eq, rank)
		e.storeRanked(ctx, rankedKey, env, rankedTTL(si.Location.Kind))
		return env, nil
	})
	env := v.(*fanOutResult)

	if shared {
		// The waiter rode an in-flight execution; account as a hit.
		e.recordCacheHit("ranked")
		meta.CacheHit = true
		meta.InFlightShared = true
	}
	meta.UsedPlaces = env.usedPlaces
	meta.UsedEvents = env.usedEvents
	meta.ProviderNotes = append(meta.ProviderNotes, env.notes...)
	return env.results, meta
}

type fanOutResult struct {
	results    []provider.Result
	usedPlaces bool
	usedEvents bool
	notes      []string
}

func (e *Executor) fanOut(ctx context.Context, si *intent.SearchIntent, rp plan.ResolvedPlan, pq provider.PlacesQuery, eq provider.EventsQuery, rank RankFunc) *fanOutResult {
	out := &fanOutResult{}
	ttl := providerTTL(si.Location.Kind)

	var placeResults, eventResults []provider.Result
	var placeNote, eventNote string

	g, gctx := errgroup.WithContext(ctx)
	if rp.CallPlaces && e.places != nil {
		g.Go(func() error {
			placeResults, placeNote = e.fetchPlaces(gctx, pq, ttl)
			return nil
		})
	}
	if rp.CallEvents && e.events != nil {
		g.Go(func() error {
			eventResults, eventNote = e.fetchEvents(gctx, eq, ttl)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	out.usedPlaces = rp.CallPlaces && e.places != nil
	out.usedEvents = rp.CallEvents && e.events != nil
	if placeNote != "" {
		out.notes = append(out.notes, placeNote)
	}
	if eventNote != "" {
		out.notes = append(out.notes, eventNote)
	}

	merged := make([]provider.Result, 0, len(placeResults)+len(eventResults))
	merged = append(merged, placeResults...)
	merged = append(merged, eventResults...)
	if rank != nil {
		merged = rank(merged)
	}
	out.results = merged
	return out
}

func (e *Executor) fetchPlaces(ctx context.Context, q provider.PlacesQuery, ttl time.Duration) ([]provider.Result, string) {
	key := PlacesKey(q)
	if cached, ok := e.loadResults(ctx, key); ok {
		e.recordCacheHit("places")
		return cached, ""
	}
	e.recordCacheMiss("places")

	if e.flags.Enabled(flags.CircuitBreaker) && !e.placesBreaker.Allow() {
		e.publishBreaker("places", e.placesBreaker)
		return nil, "places breaker open"
	}
	if e.flags.Enabled(flags.CostOptimization) && !e.placesBudget.Allow(placesCostPerCall) {
		return nil, "places daily budget exhausted"
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	start := time.Now()
	results, err := e.places.SearchPlaces(cctx, q.Clamp())
	elapsed := time.Since(start)
	cancel()
	if err != nil {
		e.placesBreaker.RecordFailure()
		e.publishBreaker("places", e.placesBreaker)
		if errors.Is(err, context.DeadlineExceeded) {
			e.recordProviderCall("places", elapsed, false, "timeout")
			e.logger.Warn("places call timed out", "timeout", e.timeout, "key", key)
			return nil, "places provider timeout"
		}
		e.recordProviderCall("places", elapsed, false, "upstream")
		e.logger.Warn("places call failed", "error", err, "key", key)
		return nil, "places provider error"
	}

	e.placesBudget.Record(placesCostPerCall)
	e.placesBreaker.RecordSuccess()
	e.publishBreaker("places", e.placesBreaker)
	e.recordProviderCall("places", elapsed, true, "")
	e.storeResults(ctx, key, results, ttl)
	return results, ""
}

func (e *Executor) fetchEvents(ctx context.Context, q provider.EventsQuery, ttl time.Duration) ([]provider.Result, string) {
	key := EventsKey(q)
	if cached, ok := e.loadResults(ctx, key); ok {
		e.recordCacheHit("events")
		return cached, ""
	}
	e.recordCacheMiss("events")

	if e.flags.Enabled(flags.CircuitBreaker) && !e.eventsBreaker.Allow() {
		e.publishBreaker("events", e.eventsBreaker)
		return nil, "events breaker open"
	}
	if e.flags.Enabled(flags.CostOptimization) && !e.eventsBudget.Allow(eventsCostPerCall) {
		return nil, "events daily budget exhausted"
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	start := time.Now()
	results, err := e.events.SearchEvents(cctx, q.Clamp())
	elapsed := time.Since(start)
	cancel()
	if err != nil {
		e.eventsBreaker.RecordFailure()
		e.publishBreaker("events", e.eventsBreaker)
		if errors.Is(err, context.DeadlineExceeded) {
			e.recordProviderCall("events", elapsed, false, "timeout")
			e.logger.Warn("events call timed out", "timeout", e.timeout, "key", key)
			return nil, "events provider timeout"
		}
		e.recordProviderCall("events", elapsed, false, "upstream")
		e.logger.Warn("events call failed", "error", err, "key", key)
		return nil, "events provider error"
	}

	e.eventsBudget.Record(eventsCostPerCall)
	e.eventsBreaker.RecordSuccess()
	e.publishBreaker("events", e.eventsBreaker)
	e.recordProviderCall("events", elapsed, true, "")
	e.storeResults(ctx, key, results, ttl)
	return results, ""
}

func (e *Executor) buildQueries(rp plan.ResolvedPlan) (provider.PlacesQuery, provider.EventsQuery) {
	pq := provider.PlacesQuery{
		Center:       rp.Center,
		RadiusMeters: rp.PlacesRadiusMeters,
		MaxResults:   rp.PlacesMaxResults,
		Types:        rp.PlacesTypes,
		Keyword:      rp.PlacesKeyword,
	}
	eq := provider.EventsQuery{
		Center:         rp.Center,
		RadiusMiles:    rp.EventsRadiusMiles,
		MaxResults:     rp.EventsMaxResults,
		Start:          rp.EventStart,
		End:            rp.EventEnd,
		Keyword:        rp.EventsKeyword,
		Classification: rp.EventsClassification,
	}
	return pq.Clamp(), eq.Clamp()
}

func providerTTL(loc intent.LocationHintKind) time.Duration {
	switch loc {
	case intent.LocationNearMe:
		return providerTTLNearMe
	case intent.LocationCity, intent.LocationZip:
		return providerTTLArea
	default:
		return providerTTLDefault
	}
}

func rankedTTL(loc intent.LocationHintKind) time.Duration {
	if loc == intent.LocationNearMe {
		return rankedTTLNearMe
	}
	return rankedTTLDefault
}

func (e *Executor) loadResults(ctx context.Context, key string) ([]provider.Result, bool) {
	raw, ok := e.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var results []provider.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		e.store.Delete(ctx, key)
		return nil, false
	}
	return results, true
}

func (e *Executor) storeResults(ctx context.Context, key string, results []provider.Result, ttl time.Duration) {
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	e.store.Set(ctx, key, raw, ttl)
}

func (e *Executor) loadRanked(ctx context.Context, key string) (*rankedEnvelope, bool) {
	raw, ok := e.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var env rankedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		e.store.Delete(ctx, key)
		return nil, false
	}
	return &env, true
}

func (e *Executor) storeRanked(ctx context.Context, key string, fr *fanOutResult, ttl time.Duration) {
	raw, err := json.Marshal(rankedEnvelope{
		Results:    fr.results,
		UsedPlaces: fr.usedPlaces,
		UsedEvents: fr.usedEvents,
	})
	if err != nil {
		return
	}
	e.store.Set(ctx, key, raw, ttl)
}

func (e *Executor) recordCacheHit(kind string) {
	if e.metrics != nil {
		e.metrics.RecordCacheHit(kind)
	}
}

func (e *Executor) recordCacheMiss(kind string) {
	if e.metrics != nil {
		e.metrics.RecordCacheMiss(kind)
	}
}

func (e *Executor) recordProviderCall(name string, elapsed time.Duration, success bool, errType string) {
	if e.metrics != nil {
		e.metrics.RecordProviderCall(name, elapsed, success, errType)
	}
}

func (e *Executor) publishBreaker(name string, b *breaker.Breaker) {
	if e.metrics == nil {
		return
	}
	var v int
	switch b.State() {
	case breaker.StateHalfOpen:
		v = 1
	case breaker.StateOpen:
		v = 2
	}
	e.metrics.SetBreakerState(name, v)
}
