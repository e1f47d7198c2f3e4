package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/citypulse/search/geo"
)

// MockCatalog is a deterministic in-memory provider used by tests and demo
// mode. Seeded venues are generated pseudo-randomly but reproducibly from
// the region hash, so the same center always yields the same catalog.
type MockCatalog struct {
	PlacesPerRegion int
	EventsPerRegion int

	// FailPlaces / FailEvents force provider errors, for breaker tests.
	FailPlaces bool
	FailEvents bool

	// Latency simulates upstream delay.
	Latency time.Duration

	// Now anchors event start times; defaults to time.Now.
	Now func() time.Time
}

// NewMockCatalog returns a catalog seeding 30 places and 20 events per region.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{PlacesPerRegion: 30, EventsPerRegion: 20}
}

var mockPlaceNames = []string{
	"The Hidden Fern", "Lucky Cat Ramen", "Marigold Cafe", "Copper & Oak",
	"Starbucks", "Night Owl Lounge", "The Velvet Room", "Blue Door Gallery",
	"Riverside Park", "Iron Works Gym", "Casa de Tacos", "Sunrise Bakery",
	"McDonalds", "The Local Taphouse", "Jade Garden", "Paper Moon Books",
	"Union Hall", "The Third Rail", "Golden Hour Wine Bar", "Pioneer Museum",
	"Mission Climbing Gym", "Harbor Lights Seafood", "The Alcove", "Subway",
	"Twin Peaks Coffee", "Old Town Distillery", "The Greenhouse", "Vinyl & Vine",
	"City Lights Comedy", "Fog Bank Brewing",
}

var mockPlaceCategories = []string{
	"restaurant", "restaurant", "cafe", "bar", "cafe", "bar", "bar",
	"art_gallery", "park", "gym", "restaurant", "bakery", "restaurant",
	"bar", "restaurant", "bookstore", "bar", "night_club", "bar", "museum",
	"gym", "restaurant", "cafe", "restaurant", "cafe", "bar", "restaurant",
	"bar", "night_club", "bar",
}

var mockEventNames = []string{
	"Jazz Night at the Annex", "Sunset Rooftop Social", "Indie Film Screening",
	"Vinyl Swap Meet", "Trivia Tuesday", "Open Mic Comedy", "Night Market",
	"Gallery Opening: New Voices", "Community Run Club", "Salsa Social",
	"Craft Beer Festival", "Poetry in the Park", "Latin DJ Night",
	"Maker Workshop", "Silent Disco", "Food Truck Rally", "Drag Brunch",
	"Songwriter Showcase", "Board Game Meetup", "Full Moon Hike",
}

var mockEventCategories = []string{
	"music", "social", "art", "music", "social", "comedy", "market",
	"art", "fitness", "music", "festival", "art", "music", "class",
	"music", "food", "social", "music", "social", "outdoor",
}

func (m *MockCatalog) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockCatalog) sleep(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// regionSeed derives a stable seed from the bucketed center.
func regionSeed(p geo.Point) uint64 {
	h := fnv.New64a()
	h.Write([]byte(p.BucketKey()))
	return h.Sum64()
}

// jitter returns a deterministic offset in [-1,1) for (seed, i, salt).
func jitter(seed uint64, i int, salt uint64) float64 {
	x := seed ^ (uint64(i)+1)*0x9e3779b97f4a7c15 ^ salt
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return float64(x%2000)/1000 - 1
}

// SearchPlaces implements Places.
func (m *MockCatalog) SearchPlaces(ctx context.Context, q PlacesQuery) ([]Result, error) {
	if m.FailPlaces {
		return nil, context.DeadlineExceeded
	}
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	q = q.Clamp()
	seed := regionSeed(q.Center)
	radiusDeg := float64(q.RadiusMeters) / 111000.0

	var out []Result
	for i := 0; i < m.PlacesPerRegion && len(out) < q.MaxResults; i++ {
		name := mockPlaceNames[i%len(mockPlaceNames)]
		category := mockPlaceCategories[i%len(mockPlaceCategories)]
		if q.Keyword != "" && !strings.Contains(strings.ToLower(name+" "+category), strings.ToLower(q.Keyword)) &&
			i%3 != 0 { // every third venue matches any keyword, keeping fallbacks non-empty
			continue
		}
		if len(q.Types) > 0 && !matchesType(category, q.Types) {
			continue
		}
		rating := 3.2 + math.Abs(jitter(seed, i, 1))*1.8
		reviews := int(math.Abs(jitter(seed, i, 2)) * 2500)
		price := 1 + int(math.Abs(jitter(seed, i, 3))*3.9)
		open := jitter(seed, i, 4) > -0.4
		r := Result{
			ID:       shortIDFor(seed, i, "p"),
			Kind:     KindPlace,
			Title:    name,
			Category: category,
			Point: geo.Point{
				Lat: q.Center.Lat + jitter(seed, i, 5)*radiusDeg,
				Lng: q.Center.Lng + jitter(seed, i, 6)*radiusDeg,
			},
			Place: &PlaceFields{
				Rating:      &rating,
				ReviewCount: &reviews,
				PriceLevel:  &price,
				OpenNow:     &open,
				Address:     name + " St " + q.Center.BucketKey(),
			},
			Photo:       &Photo{ResourceName: "places/photo/" + shortIDFor(seed, i, "ph")},
			ExternalURL: "https://places.example.com/" + shortIDFor(seed, i, "p"),
		}
		r.DistanceMeters = geo.Haversine(q.Center, r.Point)
		out = append(out, r)
	}
	sortResults(out)
	return out, nil
}

// SearchEvents implements Events.
func (m *MockCatalog) SearchEvents(ctx context.Context, q EventsQuery) ([]Result, error) {
	if m.FailEvents {
		return nil, context.DeadlineExceeded
	}
	if err := m.sleep(ctx); err != nil {
		return nil, err
	}
	q = q.Clamp()
	seed := regionSeed(q.Center) ^ 0xe7
	radiusDeg := geo.MilesToMeters(float64(q.RadiusMiles)) / 111000.0
	now := m.now()

	var out []Result
	for i := 0; i < m.EventsPerRegion && len(out) < q.MaxResults; i++ {
		name := mockEventNames[i%len(mockEventNames)]
		category := mockEventCategories[i%len(mockEventCategories)]
		if q.Keyword != "" && !strings.Contains(strings.ToLower(name+" "+category), strings.ToLower(q.Keyword)) &&
			i%3 != 0 {
			continue
		}
		if q.Classification != "" && category != strings.ToLower(q.Classification) {
			continue
		}
		start := now.Add(time.Duration(2+i*7) * time.Hour)
		if q.Start != nil && q.End != nil {
			span := q.End.Sub(*q.Start)
			if span <= 0 {
				span = time.Hour
			}
			start = q.Start.Add(time.Duration(float64(span) * math.Abs(jitter(seed, i, 7))))
		}
		end := start.Add(3 * time.Hour)
		free := i%5 == 0
		priceMin := math.Abs(jitter(seed, i, 8)) * 40
		priceMax := priceMin + 25
		if free {
			priceMin, priceMax = 0, 0
		}
		r := Result{
			ID:       shortIDFor(seed, i, "e"),
			Kind:     KindEvent,
			Title:    name,
			Category: category,
			Point: geo.Point{
				Lat: q.Center.Lat + jitter(seed, i, 9)*radiusDeg,
				Lng: q.Center.Lng + jitter(seed, i, 10)*radiusDeg,
			},
			Event: &EventFields{
				Start:    &start,
				End:      &end,
				Venue:    mockPlaceNames[(i*3)%len(mockPlaceNames)],
				PriceMin: &priceMin,
				PriceMax: &priceMax,
				IsFree:   &free,
			},
			Photo:       &Photo{URL: "https://events.example.com/img/" + shortIDFor(seed, i, "ei") + ".jpg"},
			ExternalURL: "https://events.example.com/" + shortIDFor(seed, i, "e"),
		}
		r.DistanceMeters = geo.Haversine(q.Center, r.Point)
		out = append(out, r)
	}
	sortResults(out)
	return out, nil
}

func matchesType(category string, types []string) bool {
	for _, t := range types {
		if category == t {
			return true
		}
	}
	return false
}

// shortIDFor produces a stable compact id: a namespaced short UUID derived
// from the region seed and index, so reruns yield identical catalogs.
func shortIDFor(seed uint64, i int, prefix string) string {
	return prefix + "_" + shortuuid.NewWithNamespace(fmt.Sprintf("citypulse/%s/%d/%d", prefix, seed, i))
}

func sortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].DistanceMeters < rs[j].DistanceMeters })
}
