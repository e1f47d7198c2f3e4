package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/citypulse/search/geo"
	"github.com/hrygo/citypulse/search/intent"
)

// UserContext is the immutable per-request user situation.
type UserContext struct {
	Location *geo.Point `json:"currentLocation,omitempty"`
	Timezone string     `json:"timezone"` // IANA name
	Now      time.Time  `json:"nowISO"`   // absolute instant
}

// ResolvedPlan is the provider plan with concrete coordinates and, when
// events are in play, an absolute UTC date window. A zero Center is the
// unresolved sentinel: downstream must not call providers.
type ResolvedPlan struct {
	ProviderPlan

	Center     geo.Point  `json:"center"`
	EventStart *time.Time `json:"eventStart,omitempty"`
	EventEnd   *time.Time `json:"eventEnd,omitempty"`
	Notes      []string   `json:"notes,omitempty"`
}

// Resolved reports whether the plan has usable coordinates.
func (rp *ResolvedPlan) Resolved() bool {
	return !rp.Center.IsZero()
}

// Resolver turns location/time hints into concrete values. City and zip
// lookups are injected so deployments can supply full gazetteers.
type Resolver struct {
	cities geo.CityResolver
	zips   geo.ZipResolver
}

// NewResolver creates a resolver; nil lookups fall back to the static tables.
func NewResolver(cities geo.CityResolver, zips geo.ZipResolver) *Resolver {
	static := geo.NewStaticResolver(nil)
	if cities == nil {
		cities = static
	}
	if zips == nil {
		zips = static
	}
	return &Resolver{cities: cities, zips: zips}
}

// Resolve never fails: unresolvable locations yield the (0,0) sentinel with
// an explanatory note.
func (r *Resolver) Resolve(si *intent.SearchIntent, p ProviderPlan, uc UserContext) ResolvedPlan {
	rp := ResolvedPlan{ProviderPlan: p}
	note := func(format string, args ...any) {
		rp.Notes = append(rp.Notes, fmt.Sprintf(format, args...))
	}

	switch si.Location.Kind {
	case intent.LocationNearMe:
		if uc.Location != nil && uc.Location.Valid() && !uc.Location.IsZero() {
			rp.Center = *uc.Location
			note("near-me resolved from user context")
		} else {
			note("near-me requested but user context has no location")
		}
	case intent.LocationZip:
		if pt, ok := r.zips.ResolveZip(si.Location.Value); ok {
			rp.Center = pt
			note("zip %s resolved", si.Location.Value)
		} else {
			note("zip %s not in lookup table", si.Location.Value)
		}
	case intent.LocationCity:
		if pt, ok := r.cities.ResolveCity(si.Location.Value); ok {
			rp.Center = pt
			note("city %q resolved", si.Location.Value)
		} else {
			note("city %q not in lookup table", si.Location.Value)
		}
	}

	// Fall back to the user's location for unknown or failed hints.
	if rp.Center.IsZero() && uc.Location != nil && uc.Location.Valid() && !uc.Location.IsZero() {
		rp.Center = *uc.Location
		note("falling back to user context location")
	}
	if rp.Center.IsZero() {
		note("location unresolved: provider calls will be skipped")
	}

	if p.CallEvents && si.Time.Label != intent.TimeNone {
		if start, end, ok := r.TimeWindow(si.Time, uc, si); ok {
			rp.EventStart = &start
			rp.EventEnd = &end
			note("event window %s → %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
	}
	return rp
}

// TimeWindow computes the absolute UTC window for a time label. Offsets come
// from the IANA tz database via the standard library, so windows are exact
// across DST transitions. Same (label, timezone, now) always yields the same
// window.
func (r *Resolver) TimeWindow(tc intent.TimeContext, uc UserContext, si *intent.SearchIntent) (start, end time.Time, ok bool) {
	loc, err := time.LoadLocation(uc.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := uc.Now.In(loc)

	switch tc.Label {
	case intent.TimeNow:
		return uc.Now.UTC(), uc.Now.Add(6 * time.Hour).UTC(), true
	case intent.TimeTonight:
		return uc.Now.UTC(), endOfDay(now, loc).UTC(), true
	case intent.TimeToday:
		return startOfDay(now, loc).UTC(), endOfDay(now, loc).UTC(), true
	case intent.TimeWeekend:
		sat := nextWeekday(now, time.Saturday)
		satStart := time.Date(sat.Year(), sat.Month(), sat.Day(), 0, 0, 0, 0, loc)
		sun := satStart.AddDate(0, 0, 1)
		sunEnd := time.Date(sun.Year(), sun.Month(), sun.Day(), 23, 59, 59, 0, loc)
		return satStart.UTC(), sunEnd.UTC(), true
	case intent.TimeSpecific:
		wd, found := parseWeekday(tc.Weekday)
		if !found {
			return start, end, false
		}
		day := nextWeekday(now, wd)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc)
		// "friday night" narrows to the evening.
		if si != nil && queryMentionsNight(si) {
			dayStart = time.Date(day.Year(), day.Month(), day.Day(), 18, 0, 0, 0, loc)
		}
		return dayStart.UTC(), dayEnd.UTC(), true
	}
	return start, end, false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, loc)
}

// nextWeekday returns the next occurrence of wd strictly measured from t's
// date; if today is wd, today qualifies only for future planning labels, so
// weekend/specific use the coming occurrence including today.
func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(t.Weekday()) + 7) % 7
	if days == 0 && t.Weekday() != wd {
		days = 7
	}
	return t.AddDate(0, 0, days)
}

func parseWeekday(name string) (time.Weekday, bool) {
	switch strings.ToLower(name) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return time.Sunday, false
}

// queryMentionsNight checks the intent keywords for the word "night".
func queryMentionsNight(si *intent.SearchIntent) bool {
	for _, kw := range si.Keywords {
		if strings.Contains(kw, "night") {
			return true
		}
	}
	return false
}
