// Package provider defines the normalized result shape the engine consumes
// and the contracts both upstream catalogs implement. Providers are
// stateless across calls and safe for concurrent use.
package provider

import (
	"context"
	"time"

	"github.com/hrygo/citypulse/search/geo"
)

// ResultKind discriminates the two result variants.
type ResultKind string

const (
	KindPlace ResultKind = "place"
	KindEvent ResultKind = "event"
)

// PlaceFields are the optional attributes of a place result.
type PlaceFields struct {
	Rating      *float64 `json:"rating,omitempty"`      // 0–5
	ReviewCount *int     `json:"reviewCount,omitempty"`
	PriceLevel  *int     `json:"priceLevel,omitempty"` // 1–4
	OpenNow     *bool    `json:"openNow,omitempty"`
	Address     string   `json:"address,omitempty"`
}

// EventFields are the optional attributes of an event result.
type EventFields struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Venue    string     `json:"venue,omitempty"`
	PriceMin *float64   `json:"priceMin,omitempty"`
	PriceMax *float64   `json:"priceMax,omitempty"`
	IsFree   *bool      `json:"isFree,omitempty"`
}

// Photo references an image either by resolved URL or by a provider-side
// resource name resolved through the photo proxy (out of scope here).
type Photo struct {
	URL          string `json:"url,omitempty"`
	ResourceName string `json:"resourceName,omitempty"`
}

// Result is a unified place-or-event record: a tagged head with variant
// fields populated according to Kind.
type Result struct {
	ID       string     `json:"id"`
	Kind     ResultKind `json:"type"`
	Title    string     `json:"title"`
	Category string     `json:"category"`
	Point    geo.Point  `json:"location"`

	Place *PlaceFields `json:"place,omitempty"`
	Event *EventFields `json:"event,omitempty"`

	Photo          *Photo  `json:"photo,omitempty"`
	ExternalURL    string  `json:"externalUrl,omitempty"`
	DistanceMeters float64 `json:"distanceMeters"`

	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// PlacesQuery is the clamped parameter set for the places catalog.
type PlacesQuery struct {
	Center       geo.Point
	RadiusMeters int      // clamped 100–50000
	MaxResults   int      // clamped 1–40
	Types        []string // at most 3 sent; provider uses the first
	Keyword      string   // length 3–40, optional
}

// Clamp normalizes the query parameters into provider-legal ranges.
func (q PlacesQuery) Clamp() PlacesQuery {
	if q.RadiusMeters < 100 {
		q.RadiusMeters = 100
	}
	if q.RadiusMeters > 50000 {
		q.RadiusMeters = 50000
	}
	if q.MaxResults < 1 {
		q.MaxResults = 1
	}
	if q.MaxResults > 40 {
		q.MaxResults = 40
	}
	if len(q.Types) > 3 {
		q.Types = q.Types[:3]
	}
	if l := len(q.Keyword); l > 0 && (l < 3 || l > 40) {
		q.Keyword = ""
	}
	return q
}

// EventsQuery is the clamped parameter set for the ticketing catalog.
type EventsQuery struct {
	Center         geo.Point
	RadiusMiles    int // clamped 1–100
	MaxResults     int // clamped 1–50
	Start, End     *time.Time
	Keyword        string // length 3–60, optional
	Classification string // optional single tag
}

// Clamp normalizes the query parameters into provider-legal ranges.
func (q EventsQuery) Clamp() EventsQuery {
	if q.RadiusMiles < 1 {
		q.RadiusMiles = 1
	}
	if q.RadiusMiles > 100 {
		q.RadiusMiles = 100
	}
	if q.MaxResults < 1 {
		q.MaxResults = 1
	}
	if q.MaxResults > 50 {
		q.MaxResults = 50
	}
	if l := len(q.Keyword); l > 0 && (l < 3 || l > 60) {
		q.Keyword = ""
	}
	return q
}

// Places is the places catalog contract.
type Places interface {
	SearchPlaces(ctx context.Context, q PlacesQuery) ([]Result, error)
}

// Events is the ticketing catalog contract.
type Events interface {
	SearchEvents(ctx context.Context, q EventsQuery) ([]Result, error)
}
