// Package normalize canonicalizes raw user queries before classification.
// The normalizer never fails: any input, including empty strings and pure
// emoji, produces a valid (possibly empty) result.
package normalize

import (
	"strings"
	"unicode"
)

// Result carries the canonical query plus the transformation metadata that
// downstream stages and diagnostics consume.
type Result struct {
	Original         string
	Normalized       string
	Tokens           []string
	RemovedStopwords []string
	DetectedEmoji    map[string]string
	AppliedSlang     map[string]string
}

// emojiTerms is the closed emoji→keyword table. Each emoji expands to the
// search terms a user typing the words would have used.
var emojiTerms = map[string]string{
	"🍕": "pizza", "🍺": "beer", "🍻": "beer", "🍷": "wine", "🍸": "cocktails",
	"☕": "coffee", "🍣": "sushi", "🌮": "tacos", "🍜": "ramen", "🍔": "burger",
	"🍩": "donuts", "🍦": "ice cream", "🎵": "music", "🎶": "music",
	"🎤": "karaoke", "🎸": "live music", "🎬": "movies", "🎭": "theater",
	"🎨": "art", "🏛": "museum", "🏃": "running", "🧘": "yoga", "💪": "gym",
	"🌳": "park", "🏖": "beach", "🥾": "hiking", "🎉": "party", "🕺": "dancing",
	"💃": "dancing", "🌙": "tonight", "🔥": "popular",
}

// abbrevTerms expands texting abbreviations by whole-word match.
var abbrevTerms = map[string]string{
	"tn": "tonight", "tmrw": "tomorrow", "tmr": "tomorrow", "wknd": "weekend",
	"rn": "right now", "atm": "right now", "bc": "because", "w": "with",
	"rec": "recommendation", "recs": "recommendations", "fav": "favorite",
	"favs": "favorites", "resto": "restaurant", "restos": "restaurants",
	"bday": "birthday", "hr": "hour", "hrs": "hours", "min": "minutes",
}

// slangTerms expands colloquial vocabulary into ranking-friendly terms.
var slangTerms = map[string]string{
	"lit":       "lively",
	"fire":      "amazing",
	"bussin":    "delicious",
	"vibey":     "atmospheric",
	"vibes":     "atmosphere",
	"aesthetic": "stylish",
	"chill":     "relaxed",
	"fancy":     "upscale",
	"bougie":    "upscale",
	"cheap":     "budget",
	"grub":      "food",
	"eats":      "food",
	"turnt":     "party",
	"poppin":    "popular",
	"lowkey":    "quiet",
}

// typoFixes corrects misspellings common in mobile input.
var typoFixes = map[string]string{
	"resturant": "restaurant", "restaraunt": "restaurant", "restuarant": "restaurant",
	"cofee": "coffee", "coffe": "coffee", "cofffee": "coffee",
	"tonite": "tonight", "tonght": "tonight",
	"weeknd": "weekend", "weekand": "weekend",
	"muesum": "museum", "musuem": "museum",
	"conert": "concert", "concet": "concert",
	"brucnh": "brunch", "bunch": "brunch",
	"nigthlife": "nightlife", "nihtlife": "nightlife",
}

// stopwords are dropped during tokenization. Temporal and locational markers
// are explicitly preserved because the classifier depends on them.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"i": true, "im": true, "i'm": true, "me": true, "my": true, "we": true,
	"to": true, "of": true, "for": true, "and": true, "or": true, "but": true,
	"some": true, "any": true, "good": true, "best": true, "find": true,
	"want": true, "wanna": true, "looking": true, "get": true, "go": true,
	"show": true, "give": true, "please": true, "like": true, "that": true,
	"this": true, "with": true, "do": true, "can": true, "where": true,
	"what": true, "whats": true,
}

// preservedMarkers never count as stopwords.
var preservedMarkers = map[string]bool{
	"tonight": true, "today": true, "tomorrow": true, "weekend": true,
	"now": true, "monday": true, "tuesday": true, "wednesday": true,
	"thursday": true, "friday": true, "saturday": true, "sunday": true,
	"near": true, "in": true, "at": true, "nearby": true, "around": true,
}

// categoryWords is the small canonical set used for bounded fuzzy repair of
// longer tokens (Levenshtein distance ≤ 2).
var categoryWords = []string{
	"restaurant", "coffee", "brunch", "pizza", "sushi", "tacos", "bar",
	"brewery", "cocktails", "nightlife", "music", "concert", "museum",
	"gallery", "park", "hiking", "gym", "yoga", "comedy", "theater",
	"karaoke", "tonight", "weekend", "festival",
}

// Options selects which normalization layers run. EmojiSlang covers the
// emoji, abbreviation, and slang tables; SemanticExpansion covers the bounded
// fuzzy repair toward canonical category vocabulary. Typo correction is
// always on.
type Options struct {
	EmojiSlang        bool
	SemanticExpansion bool
}

// DefaultOptions enables every layer.
func DefaultOptions() Options {
	return Options{EmojiSlang: true, SemanticExpansion: true}
}

// Normalize canonicalizes a raw query with every layer enabled. Deterministic
// and locale-independent.
func Normalize(raw string) Result {
	return NormalizeWith(raw, DefaultOptions())
}

// NormalizeWith canonicalizes a raw query, honoring the given layer options.
func NormalizeWith(raw string, opts Options) Result {
	res := Result{
		Original:      raw,
		DetectedEmoji: map[string]string{},
		AppliedSlang:  map[string]string{},
	}
	if strings.TrimSpace(raw) == "" {
		return res
	}

	// 1. Emoji → terms, before any casing or stripping.
	text := raw
	if opts.EmojiSlang {
		for emoji, term := range emojiTerms {
			if strings.Contains(text, emoji) {
				res.DetectedEmoji[emoji] = term
				text = strings.ReplaceAll(text, emoji, " "+term+" ")
			}
		}
	}

	// 2. Lowercase, straighten quotes, strip punctuation, collapse spaces.
	text = strings.ToLower(text)
	text = strings.NewReplacer("‘", "'", "’", "'", "“", "", "”", "").Replace(text)
	text = stripPunctuation(text)
	text = strings.Join(strings.Fields(text), " ")

	// 3–4. Whole-word expansion of abbreviations, slang, then typo repair.
	words := strings.Fields(text)
	for i, w := range words {
		if opts.EmojiSlang {
			if exp, ok := abbrevTerms[w]; ok {
				words[i] = exp
				continue
			}
			if exp, ok := slangTerms[w]; ok {
				res.AppliedSlang[w] = exp
				words[i] = exp
				continue
			}
		}
		if fix, ok := typoFixes[w]; ok {
			words[i] = fix
		}
	}
	// Expansions may contain spaces; re-tokenize.
	words = strings.Fields(strings.Join(words, " "))

	// 6. Stopword removal with marker preservation.
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if stopwords[w] && !preservedMarkers[w] {
			res.RemovedStopwords = append(res.RemovedStopwords, w)
			continue
		}
		tokens = append(tokens, w)
	}

	// 7. Bounded fuzzy repair toward canonical category words. Temporal and
	// locational markers are exempt so "near" cannot drift into "bar".
	if opts.SemanticExpansion {
		for i, t := range tokens {
			if len(t) < 3 || preservedMarkers[t] {
				continue
			}
			if fixed, ok := nearestCategoryWord(t); ok {
				tokens[i] = fixed
			}
		}
	}

	res.Tokens = tokens
	res.Normalized = strings.Join(tokens, " ")
	return res
}

// Passthrough lowercases and tokenizes the raw query without rewriting any
// vocabulary, for deployments running with normalization switched off.
func Passthrough(raw string) Result {
	res := Result{
		Original:      raw,
		DetectedEmoji: map[string]string{},
		AppliedSlang:  map[string]string{},
	}
	text := strings.ToLower(strings.TrimSpace(raw))
	res.Tokens = strings.Fields(text)
	res.Normalized = strings.Join(res.Tokens, " ")
	return res
}

// stripPunctuation removes punctuation, preserving hyphens and apostrophes
// inside words.
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			b.WriteRune(r)
		case r == '$' || r == ':' || r == '/':
			// Kept for the entity extractor (prices, times, dates).
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// nearestCategoryWord returns the canonical category word within Levenshtein
// distance 2 of the token, if any. Exact members return themselves.
func nearestCategoryWord(token string) (string, bool) {
	// Short tokens only get single-edit repair; "beer" must not become "bar".
	maxDist := 2
	if len(token) < 5 {
		maxDist = 1
	}

	best := ""
	bestDist := maxDist + 1
	for _, cand := range categoryWords {
		// Length pruning keeps the scan cheap.
		if abs(len(cand)-len(token)) > maxDist {
			continue
		}
		d := Levenshtein(token, cand)
		if d < bestDist {
			bestDist = d
			best = cand
		}
	}
	if best == "" || bestDist > maxDist {
		return "", false
	}
	return best, true
}

// Levenshtein computes the edit distance between two strings. Shared with the
// deduplicator's fuzzy name matching.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns normalized Levenshtein similarity in [0,1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
