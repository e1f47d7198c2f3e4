package intent

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hrygo/citypulse/search/flags"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/normalize"
	"github.com/hrygo/citypulse/search/taxonomy"
)

// Confidence at or above this threshold skips the model classifier entirely.
const ModelGateThreshold = 0.65

// Pre-compiled patterns for time and location detection.
var (
	weekdayRegex  = regexp.MustCompile(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	tonightRegex  = regexp.MustCompile(`\btonight\b|\bthis evening\b|\blater tonight\b`)
	todayRegex    = regexp.MustCompile(`\btoday\b|\bthis afternoon\b|\bthis morning\b`)
	weekendRegex  = regexp.MustCompile(`\bweekend\b|\bthis weekend\b|\bsat(urday)? or sun(day)?\b`)
	nowRegex      = regexp.MustCompile(`\bright now\b|\bnow\b|\bcurrently\b|\bat the moment\b|\bopen now\b`)
	zipRegex      = regexp.MustCompile(`\b(\d{5})\b`)
	inTailRegex   = regexp.MustCompile(`\b(?:in|at)\s+([a-z][a-z\s]{1,30})$`)
	activityRegex = regexp.MustCompile(`\bthings to do\b|\bactivities\b|\bsomething (?:fun|to do)\b|\bhang ?out\b|\bsocial\b|\bfun\b`)
)

var nearMePhrases = []string{
	"near me", "nearby", "around me", "close by", "around here",
	"walking distance", "close to me",
}

// vibeTerms maps query vocabulary to canonical vibe tags.
var vibeTerms = map[string]string{
	"romantic": "romantic", "date": "romantic", "cozy": "cozy",
	"intimate": "cozy", "chill": "chill", "relaxed": "chill",
	"quiet": "chill", "lively": "lively", "energetic": "lively",
	"party": "lively", "trendy": "trendy", "stylish": "trendy",
	"aesthetic": "trendy", "adventurous": "adventurous", "unique": "adventurous",
	"upscale": "upscale", "fancy": "upscale", "casual": "casual",
	"atmospheric": "cozy", "fun": "lively",
}

// moodTerms maps vibe tags to the mood sub-intent.
var moodTerms = map[string]string{
	"romantic": "romantic", "chill": "relaxed", "lively": "energetic",
	"adventurous": "adventurous", "cozy": "cozy", "trendy": "trendy",
}

// Classifier is the rule-based intent classifier. It is pure and never fails;
// the zero value runs every stage, a flag set narrows what runs.
type Classifier struct {
	flags *flags.Set
}

// NewClassifier returns a rule-based classifier with every stage enabled.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// NewClassifierWithFlags returns a classifier whose optional stages follow
// the given flag set.
func NewClassifierWithFlags(fs *flags.Set) *Classifier {
	return &Classifier{flags: fs}
}

// BindFlags attaches a flag set after construction. Runtime toggles take
// effect on the next Classify call.
func (c *Classifier) BindFlags(fs *flags.Set) {
	c.flags = fs
}

func (c *Classifier) enabled(name string) bool {
	return c.flags == nil || c.flags.Enabled(name)
}

// Classify derives a SearchIntent from a raw query. Deterministic: identical
// input always yields an identical intent.
func (c *Classifier) Classify(raw string) *SearchIntent {
	var norm normalize.Result
	if c.enabled(flags.Normalization) {
		norm = normalize.NormalizeWith(raw, normalize.Options{
			EmojiSlang:        c.enabled(flags.EmojiSlang),
			SemanticExpansion: c.enabled(flags.SemanticExpansion),
		})
	} else {
		norm = normalize.Passthrough(raw)
	}
	text := norm.Normalized
	tokens := norm.Tokens

	si := &SearchIntent{
		Kind:     KindBoth,
		Location: LocationHint{Kind: LocationUnknown},
	}

	si.Time = detectTime(text)
	si.Location = detectLocation(text)

	placeHits := taxonomy.KeywordHits(text, taxonomy.PlaceKeywords)
	eventHits := taxonomy.KeywordHits(text, taxonomy.EventKeywords)

	si.Keywords = mergeKeywords(placeHits, eventHits, tokens)
	si.Vibes = detectVibes(tokens)
	si.Categories = taxonomy.InferCategories(tokens)
	if !c.enabled(flags.MultiLabel) && len(si.Categories) > 1 {
		si.Categories = si.Categories[:1]
	}
	if len(si.Categories) == 0 {
		si.Categories = []taxonomy.Category{taxonomy.CategoryOther}
	}

	abstractOnly := false
	switch {
	case len(placeHits) > 0 && len(eventHits) > 0:
		si.Kind = KindBoth
	case len(placeHits) > 0:
		si.Kind = KindPlace
	case len(eventHits) > 0:
		si.Kind = KindEvent
	case activityRegex.MatchString(text):
		si.Kind = KindBoth
		abstractOnly = true
	default:
		si.Kind = KindBoth
	}

	if c.enabled(flags.SubIntentDetection) {
		si.Sub = detectSubIntents(text, tokens, si)
	}
	si.Confidence = scoreConfidence(si, tokens, placeHits, eventHits, abstractOnly)
	return si
}

// detectTime applies the ordered time-label precedence: a specific weekday
// beats tonight beats today beats weekend beats now.
func detectTime(text string) TimeContext {
	if m := weekdayRegex.FindStringSubmatch(text); m != nil {
		return TimeContext{Label: TimeSpecific, Weekday: m[1]}
	}
	if tonightRegex.MatchString(text) {
		return TimeContext{Label: TimeTonight}
	}
	if todayRegex.MatchString(text) {
		return TimeContext{Label: TimeToday}
	}
	if weekendRegex.MatchString(text) {
		return TimeContext{Label: TimeWeekend}
	}
	if nowRegex.MatchString(text) {
		return TimeContext{Label: TimeNow}
	}
	return TimeContext{Label: TimeNone}
}

// detectLocation applies the hint priority: zip, near-me phrase, city alias,
// then an "in <tail>" capture rejected when the tail is a domain keyword.
func detectLocation(text string) LocationHint {
	if m := zipRegex.FindStringSubmatch(text); m != nil {
		return LocationHint{Kind: LocationZip, Value: m[1]}
	}
	for _, phrase := range nearMePhrases {
		if strings.Contains(text, phrase) {
			return LocationHint{Kind: LocationNearMe}
		}
	}
	if alias, ok := findCityAlias(text); ok {
		return LocationHint{Kind: LocationCity, Value: alias}
	}
	// Normalization strips the pronoun from "near me", leaving a bare
	// marker with no city after it.
	padded := " " + text + " "
	if strings.Contains(padded, " near ") || strings.Contains(padded, " around ") {
		return LocationHint{Kind: LocationNearMe}
	}
	if m := inTailRegex.FindStringSubmatch(text); m != nil {
		tail := strings.TrimSpace(m[1])
		if !isDomainKeyword(tail) {
			return LocationHint{Kind: LocationCity, Value: tail}
		}
	}
	return LocationHint{Kind: LocationUnknown}
}

// findCityAlias scans the known alias table, preferring longer aliases so
// "new york" wins over a hypothetical "york".
func findCityAlias(text string) (string, bool) {
	aliases := geo.KnownCityAliases()
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	padded := " " + text + " "
	for _, alias := range aliases {
		// Two-letter aliases (la, sf, dc) require word boundaries to avoid
		// matching inside ordinary words.
		if strings.Contains(padded, " "+alias+" ") {
			return alias, true
		}
	}
	return "", false
}

// isDomainKeyword rejects "in <tail>" captures whose tail is actually a
// place or event keyword ("in jazz bars" is not a city reference). Matching
// is whole-word so a neighborhood like "wheaton" is not rejected via "eat".
func isDomainKeyword(tail string) bool {
	return len(taxonomy.KeywordHits(tail, taxonomy.PlaceKeywords)) > 0 ||
		len(taxonomy.KeywordHits(tail, taxonomy.EventKeywords)) > 0
}

// detectVibes maps mood vocabulary to canonical vibe tags, deduplicated in
// token order.
func detectVibes(tokens []string) []string {
	seen := map[string]bool{}
	var vibes []string
	for _, t := range tokens {
		if vibe, ok := vibeTerms[t]; ok && !seen[vibe] {
			seen[vibe] = true
			vibes = append(vibes, vibe)
		}
	}
	return vibes
}

// mergeKeywords combines canonical keyword hits with the distinctive tokens
// of the query, deduplicated, hits first.
func mergeKeywords(placeHits, eventHits, tokens []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, h := range placeHits {
		add(h)
	}
	for _, h := range eventHits {
		add(h)
	}
	for _, t := range tokens {
		if len(t) >= 3 && !preservedToken(t) {
			add(t)
		}
	}
	return out
}

func preservedToken(t string) bool {
	switch t {
	case "tonight", "today", "tomorrow", "weekend", "now", "near", "nearby", "around", "in", "at":
		return true
	}
	return weekdayRegex.MatchString(t)
}

// detectSubIntents extracts mood, budget, group size, and urgency.
func detectSubIntents(text string, tokens []string, si *SearchIntent) *SubIntents {
	sub := &SubIntents{}

	for _, v := range si.Vibes {
		if mood, ok := moodTerms[v]; ok {
			sub.Mood = mood
			break
		}
	}

	switch {
	case strings.Contains(text, "free"):
		sub.Budget = BudgetFree
	case strings.Contains(text, "budget") || strings.Contains(text, "affordable") || strings.Contains(text, "inexpensive"):
		sub.Budget = BudgetBudget
	case strings.Contains(text, "upscale") || strings.Contains(text, "luxury") || strings.Contains(text, "fine dining"):
		sub.Budget = BudgetUpscale
	}

	switch {
	case strings.Contains(text, "date") || strings.Contains(text, "anniversary"):
		sub.GroupSize = GroupDate
	case strings.Contains(text, "solo") || strings.Contains(text, "by myself") || strings.Contains(text, "alone"):
		sub.GroupSize = GroupSolo
	case strings.Contains(text, "group") || strings.Contains(text, "crew") || strings.Contains(text, "squad") || strings.Contains(text, "everyone"):
		sub.GroupSize = GroupLarge
	case strings.Contains(text, "friends") || strings.Contains(text, "couple of us") || strings.Contains(text, "few of us"):
		sub.GroupSize = GroupSmall
	}

	switch si.Time.Label {
	case TimeNow, TimeTonight:
		sub.Urgency = UrgencyImmediate
	case TimeToday:
		sub.Urgency = UrgencyImmediate
	case TimeWeekend, TimeSpecific:
		sub.Urgency = UrgencyNearFuture
	default:
		if strings.Contains(text, "tomorrow") {
			sub.Urgency = UrgencyNearFuture
		} else {
			sub.Urgency = UrgencyPlanning
		}
	}

	return sub
}

// scoreConfidence applies the additive confidence formula, clamped to [0,1].
func scoreConfidence(si *SearchIntent, tokens, placeHits, eventHits []string, abstractOnly bool) float64 {
	conf := 0.2
	if len(placeHits) > 0 || len(eventHits) > 0 {
		conf += 0.25
	}
	if si.Kind != KindBoth {
		conf += 0.15
	}
	if si.Time.Label != TimeNone {
		conf += 0.15
	}
	if si.Location.Kind != LocationUnknown {
		conf += 0.15
	}
	if len(si.Vibes) > 0 {
		conf += 0.08
	}
	for _, cat := range si.Categories {
		if cat != taxonomy.CategoryOther {
			conf += 0.07
			break
		}
	}
	switch len(tokens) {
	case 0, 1:
		conf -= 0.25
	case 2:
		conf -= 0.10
	}
	if abstractOnly && len(placeHits) == 0 && len(eventHits) == 0 {
		conf -= 0.08
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
