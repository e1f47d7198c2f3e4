// Package intent classifies colloquial queries into a structured SearchIntent.
// A rule-based matcher handles the fast path; a confidence-gated model
// classifier refines ambiguous queries under a strict daily budget.
package intent

import "github.com/hrygo/citypulse/search/taxonomy"

// Kind is the tri-valued tag for what a query wants.
type Kind string

const (
	KindPlace Kind = "place"
	KindEvent Kind = "event"
	KindBoth  Kind = "both"
)

// TimeLabel classifies the temporal context of a query.
type TimeLabel string

const (
	TimeNone     TimeLabel = ""
	TimeNow      TimeLabel = "now"
	TimeToday    TimeLabel = "today"
	TimeTonight  TimeLabel = "tonight"
	TimeWeekend  TimeLabel = "weekend"
	TimeSpecific TimeLabel = "specific"
)

// TimeContext pairs a label with the weekday for specific-day queries.
type TimeContext struct {
	Label   TimeLabel `json:"label"`
	Weekday string    `json:"weekday,omitempty"` // lowercase day name, TimeSpecific only
}

// LocationHintKind tags how the query referenced a location.
type LocationHintKind string

const (
	LocationUnknown LocationHintKind = "unknown"
	LocationNearMe  LocationHintKind = "near_me"
	LocationCity    LocationHintKind = "city"
	LocationZip     LocationHintKind = "zip"
)

// LocationHint is a tagged location reference extracted from the query.
type LocationHint struct {
	Kind  LocationHintKind `json:"kind"`
	Value string           `json:"value,omitempty"` // city name or 5-digit zip
}

// BudgetLevel categorizes price expectations.
type BudgetLevel string

const (
	BudgetFree     BudgetLevel = "free"
	BudgetBudget   BudgetLevel = "budget"
	BudgetModerate BudgetLevel = "moderate"
	BudgetUpscale  BudgetLevel = "upscale"
)

// GroupSize categorizes the social context of an outing.
type GroupSize string

const (
	GroupSolo  GroupSize = "solo"
	GroupDate  GroupSize = "date"
	GroupSmall GroupSize = "small_group"
	GroupLarge GroupSize = "large_group"
)

// Urgency categorizes how soon the user wants to act.
type Urgency string

const (
	UrgencyImmediate  Urgency = "immediate"
	UrgencyNearFuture Urgency = "near_future"
	UrgencyPlanning   Urgency = "planning"
)

// SubIntents are optional refinements beyond the primary classification.
type SubIntents struct {
	Mood      string      `json:"mood,omitempty"`
	Budget    BudgetLevel `json:"budget,omitempty"`
	GroupSize GroupSize   `json:"groupSize,omitempty"`
	Urgency   Urgency     `json:"urgency,omitempty"`
}

// SearchIntent is the immutable classification of one query. Downstream
// stages treat it as read-only.
type SearchIntent struct {
	Kind       Kind                `json:"intentType"`
	Keywords   []string            `json:"keywords"`
	Vibes      []string            `json:"vibes,omitempty"`
	Categories []taxonomy.Category `json:"categories"`
	Time       TimeContext         `json:"time"`
	Location   LocationHint        `json:"location"`
	Confidence float64             `json:"confidence"`
	Sub        *SubIntents         `json:"sub,omitempty"`
}

// HasCategory reports whether the intent carries the given macro category.
func (si *SearchIntent) HasCategory(c taxonomy.Category) bool {
	for _, got := range si.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// Source tags which classifier produced the final intent.
type Source string

const (
	SourceRule         Source = "rule-based"
	SourceModel        Source = "model"
	SourceRuleFallback Source = "rule-based-fallback"
)

// Classification is the hybrid classifier's output.
type Classification struct {
	Intent    *SearchIntent `json:"intent"`
	Source    Source        `json:"source"`
	UsedModel bool          `json:"usedModel"`
}
