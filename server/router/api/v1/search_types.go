package v1

import (
	"time"

	"github.com/hrygo/citypulse/search"
	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
	"github.com/hrygo/citypulse/search/plan"
	"github.com/hrygo/citypulse/search/rank"
)

// searchRequest is the wire shape of the search input.
type searchRequest struct {
	Query       string      `json:"query"`
	UserContext userContext `json:"userContext"`
	RadiusMiles int         `json:"radiusMiles,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}

type userContext struct {
	Timezone        string       `json:"timezone"`
	NowISO          string       `json:"nowISO"`
	CurrentLocation *wireLatLng  `json:"currentLocation,omitempty"`
}

type wireLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// toEngine converts the wire request; unparseable instants fall back to
// server time, matching the sanitize-not-reject policy.
func (r searchRequest) toEngine() search.Request {
	uc := plan.UserContext{Timezone: r.UserContext.Timezone}
	if t, err := time.Parse(time.RFC3339, r.UserContext.NowISO); err == nil {
		uc.Now = t
	}
	if l := r.UserContext.CurrentLocation; l != nil {
		uc.Location = &geo.Point{Lat: l.Latitude, Lng: l.Longitude}
	}
	return search.Request{
		Query:       r.Query,
		User:        uc,
		RadiusMiles: r.RadiusMiles,
		Limit:       r.Limit,
		Offset:      r.Offset,
	}
}

// emptyEnvelope is the guaranteed-valid response for unreadable input.
func emptyEnvelope() search.Response {
	return search.Response{
		Results: []rank.Ranked{},
		Meta: search.Meta{
			IntentType:    intent.KindBoth,
			UsedProviders: []string{},
		},
		Pagination: search.Pagination{Limit: search.DefaultLimit},
	}
}
