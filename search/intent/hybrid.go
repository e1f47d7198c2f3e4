package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/citypulse/search/cache"
	"github.com/hrygo/citypulse/search/cost"
	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/taxonomy"
)

// Model-call envelope: $5/day and 500 calls/day, with a conservative
// per-call cost estimate.
const (
	modelDailyUSDCap  = 5.0
	modelDailyCallCap = 500
	modelCallCostUSD  = 0.002

	modelCacheTTL      = 24 * time.Hour
	modelCacheCapacity = 1000
)

// ModelCallRecorder receives one observation per upstream model call.
type ModelCallRecorder interface {
	RecordModelCall(latency time.Duration, costUSD float64, success bool)
}

// HybridClassifier runs the rule classifier first and consults the model
// only for low-confidence queries, under the daily envelope and a 24 h
// result cache. With no model configured it degrades to pure rules.
type HybridClassifier struct {
	rules      *Classifier
	model      ModelClassifier
	budget     *cost.Budget
	limiter    *rate.Limiter
	modelCache *cache.LRU[string, *SearchIntent]
	enabled    func() bool // feature-flag hook; nil means always on
	metrics    ModelCallRecorder
}

// NewHybridClassifier builds the hybrid stack. model may be nil.
func NewHybridClassifier(model ModelClassifier, enabled func() bool) *HybridClassifier {
	return &HybridClassifier{
		rules:      NewClassifier(),
		model:      model,
		budget:     cost.NewBudget("model-classifier", modelDailyUSDCap, modelDailyCallCap),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		modelCache: cache.NewLRU[string, *SearchIntent](modelCacheCapacity, modelCacheTTL),
		enabled:    enabled,
	}
}

// BindFlags threads the runtime flag set into the rule classifier.
func (h *HybridClassifier) BindFlags(fs *flags.Set) {
	h.rules.BindFlags(fs)
}

// BindMetrics attaches a recorder for model-call observations. May stay nil.
func (h *HybridClassifier) BindMetrics(rec ModelCallRecorder) {
	h.metrics = rec
}

// Classify returns the refined intent with its source tag. Never fails.
func (h *HybridClassifier) Classify(ctx context.Context, query string) Classification {
	ruleIntent := h.rules.Classify(query)

	// High-confidence rule results must never reach the model.
	if ruleIntent.Confidence >= ModelGateThreshold {
		return Classification{Intent: ruleIntent, Source: SourceRule}
	}
	if !h.modelAvailable() {
		return Classification{Intent: ruleIntent, Source: SourceRule}
	}

	key := h.cacheKey(query)
	if cached, ok := h.modelCache.Get(key); ok {
		return Classification{Intent: cached, Source: SourceModel, UsedModel: false}
	}

	if !h.budget.Allow(modelCallCostUSD) || !h.limiter.Allow() {
		slog.Debug("model classifier budget exhausted, using rule result")
		return Classification{Intent: ruleIntent, Source: SourceRuleFallback}
	}

	start := time.Now()
	mc, err := h.model.ClassifyQuery(ctx, query)
	h.budget.Record(modelCallCostUSD)
	if h.metrics != nil {
		h.metrics.RecordModelCall(time.Since(start), modelCallCostUSD, err == nil)
	}
	if err != nil {
		slog.Warn("model classification failed, using rule result", "error", err)
		return Classification{Intent: ruleIntent, Source: SourceRuleFallback, UsedModel: true}
	}

	merged := mergeModelIntent(ruleIntent, mc)
	if h.modelCache.Len() >= modelCacheCapacity {
		h.modelCache.EvictOldestExpiry()
	}
	h.modelCache.Set(key, merged, modelCacheTTL)
	return Classification{Intent: merged, Source: SourceModel, UsedModel: true}
}

// CostReport exposes the model budget for diagnostics.
func (h *HybridClassifier) CostReport() cost.Report {
	return h.budget.Snapshot()
}

func (h *HybridClassifier) modelAvailable() bool {
	if h.model == nil {
		return false
	}
	if h.enabled != nil && !h.enabled() {
		return false
	}
	return true
}

func (h *HybridClassifier) cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "mc:" + hex.EncodeToString(sum[:8])
}

// mergeModelIntent keeps the rule classifier's time and location (the rules
// are authoritative for those) and adopts the model's categories, keywords,
// and sub-intents.
func mergeModelIntent(rule *SearchIntent, mc *ModelClassification) *SearchIntent {
	merged := &SearchIntent{
		Kind:       Kind(mc.IntentType),
		Keywords:   mc.Keywords,
		Vibes:      rule.Vibes,
		Time:       rule.Time,
		Location:   rule.Location,
		Confidence: mc.Confidence,
	}
	if len(merged.Keywords) == 0 {
		merged.Keywords = rule.Keywords
	}
	for _, c := range mc.Categories {
		merged.Categories = append(merged.Categories, taxonomy.Category(c))
	}
	if len(merged.Categories) == 0 {
		merged.Categories = rule.Categories
	}

	sub := &SubIntents{}
	if rule.Sub != nil {
		*sub = *rule.Sub
	}
	if mc.Mood != "" {
		sub.Mood = mc.Mood
	}
	if mc.Budget != "" {
		sub.Budget = BudgetLevel(mc.Budget)
	}
	if mc.GroupSize != "" {
		sub.GroupSize = GroupSize(mc.GroupSize)
	}
	merged.Sub = sub

	if merged.Confidence < rule.Confidence {
		merged.Confidence = rule.Confidence
	}
	return merged
}
