package executor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/provider"
)

// Radius buckets keep near-identical requests on the same cache key.
const (
	placesRadiusBucketMeters = 250
	eventsRadiusBucketMiles  = 5
)

// genericTerms are keywords too broad to discriminate cache entries.
var genericTerms = map[string]struct{}{
	"places": {}, "place": {}, "things": {}, "thing": {}, "stuff": {},
	"something": {}, "anything": {}, "spots": {}, "spot": {},
	"options": {}, "ideas": {}, "good": {}, "best": {}, "nearby": {},
}

// keyKeyword filters a keyword for cache-key use: length 3–40 and not
// in the generic banlist. Empty string means "omit from key".
func keyKeyword(kw string) string {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if len(kw) < 3 || len(kw) > 40 {
		return ""
	}
	if _, generic := genericTerms[kw]; generic {
		return ""
	}
	return kw
}

// PlacesKey derives the stable cache key for a places query. Location is
// bucketed to 3 decimals (~110 m), radius to 250 m steps, and the types
// list is sorted so permutations share a key.
func PlacesKey(q provider.PlacesQuery) string {
	types := append([]string(nil), q.Types...)
	sort.Strings(types)
	rb := q.RadiusMeters / placesRadiusBucketMeters
	return fmt.Sprintf("places:%s:r%d:t%s:k%s",
		q.Center.BucketKey(), rb, strings.Join(types, ","), keyKeyword(q.Keyword))
}

// EventsKey derives the stable cache key for an events query, including
// the absolute date window and classification tag when present.
func EventsKey(q provider.EventsQuery) string {
	rb := q.RadiusMiles / eventsRadiusBucketMiles
	window := ""
	if q.Start != nil {
		window = fmt.Sprintf("%d", q.Start.Unix())
	}
	if q.End != nil {
		window += fmt.Sprintf("-%d", q.End.Unix())
	}
	return fmt.Sprintf("events:%s:r%d:k%s:c%s:w%s",
		q.Center.BucketKey(), rb, keyKeyword(q.Keyword), q.Classification, window)
}

// RankedKey composes the provider keys with the intent dimensions that
// change ranking output. Provider keys are sorted so the composition
// commutes over provider arrival order.
func RankedKey(providerKeys []string, si *intent.SearchIntent) string {
	keys := append([]string(nil), providerKeys...)
	sort.Strings(keys)

	cats := make([]string, 0, len(si.Categories))
	for _, c := range si.Categories {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)

	return fmt.Sprintf("ranked:%s:%s:%s%s:%s",
		strings.Join(keys, "|"), si.Kind, si.Time.Label, si.Time.Weekday, strings.Join(cats, ","))
}
