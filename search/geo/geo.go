// Package geo provides coordinate math and the deterministic location tables
// the plan resolver depends on.
package geo

import (
	"math"
	"strconv"
	"strings"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// IsZero reports whether p is the unresolved sentinel (0,0).
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Valid reports whether p holds finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// BucketKey renders the point rounded to 3 decimal places (~110 m), the
// granularity shared by cache keys and region seeding.
func (p Point) BucketKey() string {
	return strconv.FormatFloat(round3(p.Lat), 'f', 3, 64) + "," +
		strconv.FormatFloat(round3(p.Lng), 'f', 3, 64)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// MilesToMeters converts statute miles to meters.
func MilesToMeters(mi float64) float64 { return mi * 1609.344 }

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 { return m / 1609.344 }

// City is an entry in the deterministic city table.
type City struct {
	Name  string
	Point Point
	Major bool // major metros widen the events search radius
}

// cityTable maps lowercase aliases to cities. The table is intentionally
// small; deployments load a full gazetteer through a CityResolver.
var cityTable = map[string]City{
	"new york":      {Name: "New York", Point: Point{40.7128, -74.0060}, Major: true},
	"nyc":           {Name: "New York", Point: Point{40.7128, -74.0060}, Major: true},
	"manhattan":     {Name: "New York", Point: Point{40.7831, -73.9712}, Major: true},
	"brooklyn":      {Name: "Brooklyn", Point: Point{40.6782, -73.9442}, Major: true},
	"queens":        {Name: "Queens", Point: Point{40.7282, -73.7949}, Major: true},
	"los angeles":   {Name: "Los Angeles", Point: Point{34.0522, -118.2437}, Major: true},
	"la":            {Name: "Los Angeles", Point: Point{34.0522, -118.2437}, Major: true},
	"san francisco": {Name: "San Francisco", Point: Point{37.7749, -122.4194}, Major: true},
	"sf":            {Name: "San Francisco", Point: Point{37.7749, -122.4194}, Major: true},
	"chicago":       {Name: "Chicago", Point: Point{41.8781, -87.6298}, Major: true},
	"seattle":       {Name: "Seattle", Point: Point{47.6062, -122.3321}, Major: true},
	"boston":        {Name: "Boston", Point: Point{42.3601, -71.0589}, Major: true},
	"austin":        {Name: "Austin", Point: Point{30.2672, -97.7431}, Major: true},
	"denver":        {Name: "Denver", Point: Point{39.7392, -104.9903}, Major: true},
	"miami":         {Name: "Miami", Point: Point{25.7617, -80.1918}, Major: true},
	"portland":      {Name: "Portland", Point: Point{45.5152, -122.6784}, Major: false},
	"nashville":     {Name: "Nashville", Point: Point{36.1627, -86.7816}, Major: false},
	"new orleans":   {Name: "New Orleans", Point: Point{29.9511, -90.0715}, Major: false},
	"philadelphia":  {Name: "Philadelphia", Point: Point{39.9526, -75.1652}, Major: true},
	"atlanta":       {Name: "Atlanta", Point: Point{33.7490, -84.3880}, Major: true},
	"washington":    {Name: "Washington", Point: Point{38.9072, -77.0369}, Major: true},
	"dc":            {Name: "Washington", Point: Point{38.9072, -77.0369}, Major: true},
	"san diego":     {Name: "San Diego", Point: Point{32.7157, -117.1611}, Major: true},
	"dallas":        {Name: "Dallas", Point: Point{32.7767, -96.7970}, Major: true},
	"houston":       {Name: "Houston", Point: Point{29.7604, -95.3698}, Major: true},
	"minneapolis":   {Name: "Minneapolis", Point: Point{44.9778, -93.2650}, Major: false},
	"detroit":       {Name: "Detroit", Point: Point{42.3314, -83.0458}, Major: false},
	"phoenix":       {Name: "Phoenix", Point: Point{33.4484, -112.0740}, Major: true},
}

// LookupCity resolves a city alias. Matching is case-insensitive.
func LookupCity(alias string) (City, bool) {
	c, ok := cityTable[strings.ToLower(strings.TrimSpace(alias))]
	return c, ok
}

// KnownCityAliases returns the alias list, for classifier scanning.
func KnownCityAliases() []string {
	out := make([]string, 0, len(cityTable))
	for alias := range cityTable {
		out = append(out, alias)
	}
	return out
}

// CityResolver resolves a city name to coordinates. Implementations must be
// deterministic: the same name always yields the same point.
type CityResolver interface {
	ResolveCity(name string) (Point, bool)
}

// ZipResolver resolves a 5-digit US zip code to coordinates.
type ZipResolver interface {
	ResolveZip(zip string) (Point, bool)
}

// StaticResolver serves both lookups from in-memory tables.
type StaticResolver struct {
	Zips map[string]Point
}

// NewStaticResolver builds a resolver over the built-in city table and an
// optional zip table.
func NewStaticResolver(zips map[string]Point) *StaticResolver {
	if zips == nil {
		zips = defaultZipTable()
	}
	return &StaticResolver{Zips: zips}
}

// ResolveCity implements CityResolver via the built-in table.
func (r *StaticResolver) ResolveCity(name string) (Point, bool) {
	c, ok := LookupCity(name)
	if !ok {
		return Point{}, false
	}
	return c.Point, true
}

// ResolveZip implements ZipResolver.
func (r *StaticResolver) ResolveZip(zip string) (Point, bool) {
	p, ok := r.Zips[zip]
	return p, ok
}

// defaultZipTable seeds a handful of well-known zips so the static resolver
// is useful out of the box. Deployments supply full tables via SQLiteStore.
func defaultZipTable() map[string]Point {
	return map[string]Point{
		"10001": {40.7506, -73.9972}, // Manhattan, Chelsea
		"10036": {40.7590, -73.9845}, // Times Square
		"11201": {40.6955, -73.9895}, // Brooklyn Heights
		"94103": {37.7726, -122.4099}, // SF SoMa
		"94110": {37.7485, -122.4184}, // SF Mission
		"60601": {41.8858, -87.6181}, // Chicago Loop
		"90012": {34.0614, -118.2385}, // LA Downtown
		"98101": {47.6101, -122.3344}, // Seattle Downtown
		"73301": {30.2672, -97.7431}, // Austin
		"02108": {42.3588, -71.0638}, // Boston Beacon Hill
	}
}
