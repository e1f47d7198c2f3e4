// Package search assembles the discovery pipeline: normalize, classify,
// plan, resolve, execute, deduplicate, rank, and polish. The Engine's
// Search entry point never fails; every internal error degrades to a
// valid, possibly empty, response envelope.
package search

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/citypulse/search/dedup"
	"github.com/hrygo/citypulse/search/entity"
	"github.com/hrygo/citypulse/search/executor"
	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/metrics"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/provider"
	"github.com/hrygo/citypulse/search/quality"
	"github.com/hrygo/citypulse/search/rank"
)

// Request limits and defaults.
const (
	DefaultRadiusMiles = 10
	DefaultLimit       = 20
	MaxLimit           = 100
	searchTimeout      = 10 * time.Second
)

// Request is the sanitizable search input.
type Request struct {
	Query       string           `json:"query"`
	User        plan.UserContext `json:"userContext"`
	RadiusMiles int              `json:"radiusMiles,omitempty"` // 1–100, default 10
	Limit       int              `json:"limit,omitempty"`       // 1–100, default 20
	Offset      int              `json:"offset,omitempty"`      // ≥ 0
}

// sanitize clamps out-of-range fields to safe defaults rather than
// rejecting the request.
func (r Request) sanitize() Request {
	if r.RadiusMiles < 1 || r.RadiusMiles > 100 {
		r.RadiusMiles = DefaultRadiusMiles
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		r.Limit = DefaultLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	if loc := r.User.Location; loc != nil {
		if !finite(loc.Lat) || !finite(loc.Lng) || !loc.Valid() {
			r.User.Location = nil
		}
	}
	if r.User.Now.IsZero() {
		r.User.Now = time.Now()
	}
	if r.User.Timezone == "" {
		r.User.Timezone = "UTC"
	}
	return r
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Meta describes how a response was produced.
type Meta struct {
	IntentType    intent.Kind         `json:"intentType"`
	UsedProviders []string            `json:"usedProviders"`
	UsedAI        bool                `json:"usedAI"`
	CacheHit      bool                `json:"cacheHit"`
	Quality       quality.Assessment  `json:"quality"`
	Feedback      *quality.Feedback   `json:"feedback,omitempty"`
	Fallbacks     []executor.Attempt  `json:"fallbacks,omitempty"`
	Notes         []string            `json:"notes,omitempty"`
	RequestID     string              `json:"requestId"`
}

// Pagination is the slice window applied to the full ranked list.
type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// Response is the complete search envelope.
type Response struct {
	Results    []rank.Ranked `json:"results"`
	Meta       Meta          `json:"meta"`
	Pagination Pagination    `json:"pagination"`
}

// emptyResponse is the guaranteed-valid envelope for every failure mode.
func emptyResponse(requestID string) Response {
	return Response{
		Results: []rank.Ranked{},
		Meta: Meta{
			IntentType:    intent.KindBoth,
			UsedProviders: []string{},
			RequestID:     requestID,
		},
		Pagination: Pagination{Limit: DefaultLimit},
	}
}

// Config wires the engine.
type Config struct {
	Classifier *intent.HybridClassifier
	Resolver   *plan.Resolver
	Executor   *executor.Executor
	Flags      *flags.Set
	Metrics    *metrics.PrometheusExporter
	Logger     *slog.Logger
}

// Engine is the top-level search orchestrator.
type Engine struct {
	classifier *intent.HybridClassifier
	resolver   *plan.Resolver
	exec       *executor.Executor
	flags      *flags.Set
	metrics    *metrics.PrometheusExporter
	logger     *slog.Logger
}

// NewEngine builds an engine, filling defaults for nil collaborators.
func NewEngine(cfg Config) *Engine {
	if cfg.Flags == nil {
		cfg.Flags = flags.NewFromEnv()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.NewHybridClassifier(nil, nil)
	}
	if cfg.Resolver == nil {
		cfg.Resolver = plan.NewResolver(nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Classifier.BindFlags(cfg.Flags)
	if cfg.Metrics != nil {
		cfg.Classifier.BindMetrics(cfg.Metrics)
	}
	return &Engine{
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		exec:       cfg.Executor,
		flags:      cfg.Flags,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "engine"),
	}
}

// Flags exposes the runtime flag set for the admin surface.
func (e *Engine) Flags() *flags.Set { return e.flags }

// Search runs the full pipeline. It recovers every internal failure mode
// into a valid envelope and never returns an error.
func (e *Engine) Search(ctx context.Context, req Request) (resp Response) {
	requestID := uuid.NewString()
	start := time.Now()
	req = req.sanitize()

	if e.flags.Enabled(flags.RequestCancellation) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, searchTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("search panicked", "panic", r, "request_id", requestID)
			resp = emptyResponse(requestID)
		}
	}()

	cls := e.classify(ctx, req.Query)
	si := cls.Intent

	results, meta := e.searchOnce(ctx, si, req.User, req.RadiusMiles)

	var attempts []executor.Attempt
	if e.flags.Enabled(flags.SmartFallbacks) && len(results) < executor.FallbackMinResults && strings.TrimSpace(req.Query) != "" {
		searchFn := func(ctx context.Context, query string, radiusMiles int) []provider.Result {
			c := e.classify(ctx, query)
			r, _ := e.searchOnce(ctx, c.Intent, req.User, radiusMiles)
			return r
		}
		results, attempts = executor.RunFallbacks(ctx, req.Query, req.RadiusMiles, results, searchFn, e.rephraseFn())
		if e.metrics != nil {
			for _, a := range attempts {
				e.metrics.RecordFallback(a.Strategy)
			}
		}
	}

	ranked := wrapRanked(results)
	assessment := quality.Assess(ranked)

	resp = Response{
		Results: pageOf(ranked, req.Offset, req.Limit),
		Meta: Meta{
			IntentType:    si.Kind,
			UsedProviders: usedProviders(meta),
			UsedAI:        cls.UsedModel,
			CacheHit:      meta.CacheHit,
			Quality:       assessment,
			Fallbacks:     attempts,
			Notes:         meta.ProviderNotes,
			RequestID:     requestID,
		},
		Pagination: Pagination{
			Total:   len(ranked),
			Offset:  req.Offset,
			Limit:   req.Limit,
			HasMore: req.Offset+req.Limit < len(ranked),
		},
	}

	if e.flags.Enabled(flags.UXFeedback) {
		fb := quality.BuildFeedback(ranked)
		resp.Meta.Feedback = &fb
	}

	if e.metrics != nil && e.flags.Enabled(flags.Metrics) {
		e.metrics.RecordSearch(string(si.Kind), string(cls.Source), time.Since(start), len(resp.Results), meta.CacheHit, true)
	}

	e.logger.Info("search completed",
		"request_id", requestID,
		"intent", si.Kind,
		"source", cls.Source,
		"results", len(resp.Results),
		"cache_hit", meta.CacheHit,
		"elapsed", time.Since(start))
	return resp
}

// searchOnce runs plan→resolve→execute for one already-classified intent.
// The rank closure runs inside the executor so its output lands in the
// ranked cache.
func (e *Engine) searchOnce(ctx context.Context, si *intent.SearchIntent, uc plan.UserContext, radiusMiles int) ([]provider.Result, executor.Meta) {
	p := plan.Build(si)
	e.applyRadius(&p, si, radiusMiles)

	rp := e.resolver.Resolve(si, p, uc)
	if !rp.Resolved() {
		return nil, executor.Meta{ProviderNotes: rp.Notes}
	}
	if e.exec == nil {
		return nil, executor.Meta{ProviderNotes: []string{"no executor configured"}}
	}

	rankFn := e.rankFn(si, rp.Center, uc.Now)
	return e.exec.Execute(ctx, si, rp, rankFn)
}

// applyRadius folds the request radius and any extracted distance
// constraint into the plan's provider caps.
func (e *Engine) applyRadius(p *plan.ProviderPlan, si *intent.SearchIntent, radiusMiles int) {
	if radiusMiles != DefaultRadiusMiles {
		meters := int(geo.MilesToMeters(float64(radiusMiles)))
		if meters > 50000 {
			meters = 50000
		}
		p.PlacesRadiusMeters = meters
		p.EventsRadiusMiles = radiusMiles
	}

	if !e.flags.Enabled(flags.EntityExtraction) {
		return
	}
	ents := entity.Extract(strings.Join(si.Keywords, " "))
	if miles, ok := ents.DistanceConstraintMiles(); ok {
		meters := int(geo.MilesToMeters(miles))
		if meters >= 100 && meters < p.PlacesRadiusMeters {
			p.PlacesRadiusMeters = meters
		}
		if m := int(miles + 0.5); m >= 1 && m < p.EventsRadiusMiles {
			p.EventsRadiusMiles = m
		}
	}
}

// rankFn builds the pure finalization closure: dedup, rank, polish.
func (e *Engine) rankFn(si *intent.SearchIntent, center geo.Point, now time.Time) executor.RankFunc {
	deduplicate := e.flags.Enabled(flags.Deduplication)
	disableAdaptive := !e.flags.Enabled(flags.AdaptiveRanking)

	return func(results []provider.Result) []provider.Result {
		if deduplicate {
			results = dedup.Merge(results)
		}
		rctx := rank.Context{
			Intent:                 si,
			UserLocation:           &center,
			Now:                    now,
			IsWeekend:              now.Weekday() == time.Saturday || now.Weekday() == time.Sunday,
			DisableAdaptive:        disableAdaptive,
			DisableMicroCategories: !e.flags.Enabled(flags.MicroCategories),
			DisableSmallVenueBoost: !e.flags.Enabled(flags.SmallVenueBoost),
			DisableIndependence:    !e.flags.Enabled(flags.IndependenceBoost),
			DisableMomentum:        !e.flags.Enabled(flags.MomentumBoost),
			DisableVibrancy:        !e.flags.Enabled(flags.ClusterVibrancy),
			DisableNeighborhood:    !e.flags.Enabled(flags.NeighborhoodContext),
			DisableHyperlocal:      !e.flags.Enabled(flags.HyperlocalBoosts),
		}
		ranked := rank.Rank(results, rctx)
		final, _ := quality.Enhance(ranked, quality.DefaultOptions())

		out := make([]provider.Result, 0, len(final))
		for _, r := range final {
			out = append(out, r.Result)
		}
		return out
	}
}

func (e *Engine) classify(ctx context.Context, query string) intent.Classification {
	return e.classifier.Classify(ctx, query)
}

// rephraseFn exposes the model classifier as a fallback query rewriter.
func (e *Engine) rephraseFn() executor.RephraseFn {
	if !e.flags.Enabled(flags.ModelClassifier) {
		return nil
	}
	return func(ctx context.Context, query string) []string {
		cls := e.classifier.Classify(ctx, query)
		if !cls.UsedModel || cls.Intent == nil || len(cls.Intent.Keywords) == 0 {
			return nil
		}
		return []string{strings.Join(cls.Intent.Keywords, " ")}
	}
}

// wrapRanked re-wraps cached final results for the response shape. The
// per-factor breakdown is only available on the request that computed
// the ranking; cache hits carry the final score alone.
func wrapRanked(results []provider.Result) []rank.Ranked {
	out := make([]rank.Ranked, 0, len(results))
	for _, r := range results {
		out = append(out, rank.Ranked{Result: r, Breakdown: rank.Breakdown{Final: r.Score}})
	}
	return out
}

func pageOf(ranked []rank.Ranked, offset, limit int) []rank.Ranked {
	if offset >= len(ranked) {
		return []rank.Ranked{}
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

func usedProviders(meta executor.Meta) []string {
	providers := []string{}
	if meta.UsedPlaces {
		providers = append(providers, "places")
	}
	if meta.UsedEvents {
		providers = append(providers, "events")
	}
	return providers
}

// Diagnostics aggregates operational state for the admin endpoint.
type Diagnostics struct {
	Flags    map[string]bool `json:"flags"`
	Breakers any             `json:"breakers,omitempty"`
	Budgets  any             `json:"budgets,omitempty"`
	Model    any             `json:"modelBudget,omitempty"`
}

// Diagnose snapshots flags, breakers, and budgets.
func (e *Engine) Diagnose() Diagnostics {
	d := Diagnostics{Flags: e.flags.Snapshot()}
	if e.exec != nil {
		d.Breakers = e.exec.Breakers()
		d.Budgets = e.exec.Budgets()
	}
	if e.classifier != nil {
		d.Model = e.classifier.CostReport()
	}
	return d
}

// Health reports overall component status.
type Health struct {
	Status     string            `json:"status"` // healthy, degraded, down
	Components map[string]string `json:"components"`
}

// CheckHealth derives status from breaker state: any open breaker means
// degraded service.
func (e *Engine) CheckHealth() Health {
	h := Health{Status: "healthy", Components: map[string]string{"search": "healthy"}}
	if e.exec == nil {
		h.Status = "down"
		h.Components["providers"] = "unconfigured"
		return h
	}
	for name, snap := range e.exec.Breakers() {
		state := string(snap.State)
		h.Components["provider_"+name] = state
		if state != "closed" {
			h.Status = "degraded"
		}
	}
	return h
}
