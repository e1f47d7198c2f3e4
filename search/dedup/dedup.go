// Package dedup collapses cross-provider duplicates into single merged
// records. The pass is pure and idempotent: dedup(dedup(x)) == dedup(x).
package dedup

import (
	"strings"

	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/normalize"
	"github.com/hrygo/citypulse/search/provider"
)

// Merge clusters duplicates and returns one merged record per cluster,
// preserving first-seen order of cluster primaries.
func Merge(results []provider.Result) []provider.Result {
	if len(results) < 2 {
		return results
	}

	clusters := cluster(results)
	out := make([]provider.Result, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, mergeCluster(c))
	}
	return out
}

// cluster groups results by the pairwise duplicate test, union-find style
// over a simple scan (candidate lists are small post-clamp).
func cluster(results []provider.Result) [][]provider.Result {
	var clusters [][]provider.Result
	assigned := make([]bool, len(results))
	for i := range results {
		if assigned[i] {
			continue
		}
		group := []provider.Result{results[i]}
		assigned[i] = true
		for j := i + 1; j < len(results); j++ {
			if assigned[j] {
				continue
			}
			for _, member := range group {
				if isDuplicate(member, results[j]) {
					group = append(group, results[j])
					assigned[j] = true
					break
				}
			}
		}
		clusters = append(clusters, group)
	}
	return clusters
}

// isDuplicate decides whether two results describe the same place or event.
func isDuplicate(a, b provider.Result) bool {
	if a.ID == b.ID {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}

	nameSim := normalize.Similarity(normalizeName(a.Title), normalizeName(b.Title))
	dist := geo.Haversine(a.Point, b.Point)
	if nameSim > 0.85 && dist < 50 {
		return true
	}
	if nameSim > 0.95 && dist < 10 {
		return true
	}

	if a.Kind == provider.KindPlace && a.Place != nil && b.Place != nil &&
		a.Place.Address != "" && b.Place.Address != "" {
		if normalize.Similarity(normalizeName(a.Place.Address), normalizeName(b.Place.Address)) > 0.90 {
			return true
		}
	}

	if a.Kind == provider.KindEvent && a.Event != nil && b.Event != nil {
		venueSim := normalize.Similarity(normalizeName(a.Event.Venue), normalizeName(b.Event.Venue))
		if venueSim > 0.85 && sameLocalDate(a.Event, b.Event) {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"the ", "a ", "an "} {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}

// sameLocalDate compares the date component (first 10 chars of RFC3339) of
// the event starts.
func sameLocalDate(a, b *provider.EventFields) bool {
	if a.Start == nil || b.Start == nil {
		return false
	}
	return a.Start.Format("2006-01-02") == b.Start.Format("2006-01-02")
}

// mergeCluster picks the richest member as primary and fills its gaps from
// siblings. The merged score is the cluster max.
func mergeCluster(group []provider.Result) provider.Result {
	if len(group) == 1 {
		return group[0]
	}

	primaryIdx := 0
	bestQuality := -1
	for i, r := range group {
		if q := sourceQuality(r); q > bestQuality {
			bestQuality = q
			primaryIdx = i
		}
	}
	merged := group[primaryIdx]
	// Clone variant structs so the merge never mutates caller-owned records.
	if merged.Place != nil {
		cp := *merged.Place
		merged.Place = &cp
	}
	if merged.Event != nil {
		ce := *merged.Event
		merged.Event = &ce
	}

	for i, sibling := range group {
		if i == primaryIdx {
			continue
		}
		fillMissing(&merged, sibling)
		if sibling.Score > merged.Score {
			merged.Score = sibling.Score
		}
	}
	return merged
}

// sourceQuality counts populated significant fields.
func sourceQuality(r provider.Result) int {
	q := 0
	if r.Title != "" {
		q++
	}
	if r.Photo != nil && (r.Photo.URL != "" || r.Photo.ResourceName != "") {
		q++
	}
	if r.ExternalURL != "" {
		q++
	}
	if r.Category != "" && r.Category != "other" {
		q++
	}
	if p := r.Place; p != nil {
		if p.Rating != nil {
			q++
		}
		if p.ReviewCount != nil {
			q++
		}
		if p.PriceLevel != nil {
			q++
		}
		if p.OpenNow != nil {
			q++
		}
		if p.Address != "" {
			q++
		}
	}
	if e := r.Event; e != nil {
		if e.Start != nil {
			q++
		}
		if e.End != nil {
			q++
		}
		if e.Venue != "" {
			q++
		}
		if e.IsFree != nil || e.PriceMin != nil {
			q++
		}
	}
	return q
}

// fillMissing copies sibling fields the primary lacks.
func fillMissing(dst *provider.Result, src provider.Result) {
	if dst.Photo == nil || (dst.Photo.URL == "" && dst.Photo.ResourceName == "") {
		dst.Photo = src.Photo
	}
	if dst.ExternalURL == "" {
		dst.ExternalURL = src.ExternalURL
	}
	if (dst.Category == "" || dst.Category == "other") && src.Category != "" {
		dst.Category = src.Category
	}
	if src.Place != nil {
		if dst.Place == nil {
			dst.Place = src.Place
		} else {
			if dst.Place.Rating == nil {
				dst.Place.Rating = src.Place.Rating
			}
			if dst.Place.ReviewCount == nil {
				dst.Place.ReviewCount = src.Place.ReviewCount
			}
			if dst.Place.PriceLevel == nil {
				dst.Place.PriceLevel = src.Place.PriceLevel
			}
			if dst.Place.OpenNow == nil {
				dst.Place.OpenNow = src.Place.OpenNow
			}
			if dst.Place.Address == "" {
				dst.Place.Address = src.Place.Address
			}
		}
	}
	if src.Event != nil {
		if dst.Event == nil {
			dst.Event = src.Event
		} else {
			if dst.Event.Start == nil {
				dst.Event.Start = src.Event.Start
			}
			if dst.Event.End == nil {
				dst.Event.End = src.Event.End
			}
			if dst.Event.Venue == "" {
				dst.Event.Venue = src.Event.Venue
			}
			if dst.Event.PriceMin == nil {
				dst.Event.PriceMin = src.Event.PriceMin
			}
			if dst.Event.PriceMax == nil {
				dst.Event.PriceMax = src.Event.PriceMax
			}
			if dst.Event.IsFree == nil {
				dst.Event.IsFree = src.Event.IsFree
			}
		}
	}
}
