// Package flags holds the runtime feature switches gating individual
// pipeline stages. Flags initialize from FEATURE_<NAME> environment
// variables and stay mutable at runtime for operator rollback.
package flags

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// Flag names. Every stage that can be toggled has exactly one flag.
const (
	Normalization        = "NORMALIZATION"
	EmojiSlang           = "EMOJI_SLANG"
	SemanticExpansion    = "SEMANTIC_EXPANSION"
	EntityExtraction     = "ENTITY_EXTRACTION"
	SubIntentDetection   = "SUB_INTENT_DETECTION"
	MicroCategories      = "MICRO_CATEGORIES"
	MultiLabel           = "MULTI_LABEL_CLASSIFICATION"
	HyperlocalBoosts     = "HYPERLOCAL_BOOSTS"
	SmallVenueBoost      = "SMALL_VENUE_BOOST"
	IndependenceBoost    = "INDEPENDENCE_BOOST"
	MomentumBoost        = "MOMENTUM_BOOST"
	ClusterVibrancy      = "CLUSTER_VIBRANCY"
	NeighborhoodContext  = "NEIGHBORHOOD_CONTEXT"
	AdaptiveRanking      = "ADAPTIVE_RANKING"
	Deduplication        = "DEDUPLICATION"
	CircuitBreaker       = "CIRCUIT_BREAKER"
	CostOptimization     = "COST_OPTIMIZATION"
	DistributedCache     = "DISTRIBUTED_CACHE"
	RequestCancellation  = "REQUEST_CANCELLATION"
	SmartFallbacks       = "SMART_FALLBACKS"
	UXFeedback           = "UX_FEEDBACK"
	Metrics              = "METRICS"
	ModelClassifier      = "MODEL_CLASSIFIER"
)

// defaults: everything on except the opt-in infrastructure switches.
var defaults = map[string]bool{
	Normalization: true, EmojiSlang: true, SemanticExpansion: true,
	EntityExtraction: true, SubIntentDetection: true, MicroCategories: true,
	MultiLabel: true, HyperlocalBoosts: true, SmallVenueBoost: true,
	IndependenceBoost: true, MomentumBoost: true, ClusterVibrancy: true,
	NeighborhoodContext: true, AdaptiveRanking: true, Deduplication: true,
	CircuitBreaker: true, CostOptimization: true, DistributedCache: false,
	RequestCancellation: true, SmartFallbacks: true, UXFeedback: true,
	Metrics: true, ModelClassifier: true,
}

// Set is a mutable flag table safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewFromEnv builds the flag set from defaults overridden by
// FEATURE_<NAME>=true|false environment variables.
func NewFromEnv() *Set {
	s := &Set{flags: make(map[string]bool, len(defaults))}
	for name, def := range defaults {
		val := def
		if env, ok := os.LookupEnv("FEATURE_" + name); ok {
			val = strings.EqualFold(env, "true")
		}
		s.flags[name] = val
	}
	return s
}

// Enabled reports the flag state; unknown names are false.
func (s *Set) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[name]
}

// Toggle flips a known flag at runtime. Unknown names are ignored and
// reported false.
func (s *Set) Toggle(name string, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[name]; !ok {
		return false
	}
	s.flags[name] = on
	return true
}

// Snapshot returns the flag table sorted by name, for diagnostics.
func (s *Set) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.flags))
	for k, v := range s.flags {
		out[k] = v
	}
	return out
}

// Names lists all flag names sorted.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.flags))
	for k := range s.flags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
