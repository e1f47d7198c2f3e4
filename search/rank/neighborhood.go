package rank

import (
	"fmt"

	"github.com/hrygo/citypulse/search/geo"
)

// neighborhoodBoosts maps 0.01-degree coordinate cells (roughly a district)
// to a score multiplier for areas with a strong independent venue scene.
// Unknown cells get no boost.
var neighborhoodBoosts = map[string]float64{
	"40.73,-73.99":  1.06, // East Village
	"40.72,-73.96":  1.05, // Williamsburg
	"40.74,-74.00":  1.04, // Chelsea
	"37.76,-122.42": 1.06, // Mission District
	"37.77,-122.44": 1.04, // Haight-Ashbury
	"41.91,-87.68":  1.05, // Wicker Park
	"30.27,-97.74":  1.05, // Downtown Austin
	"47.66,-122.31": 1.03, // U District
}

// neighborhoodCell buckets a point into its boost-table key.
func neighborhoodCell(p geo.Point) string {
	return fmt.Sprintf("%.2f,%.2f", p.Lat, p.Lng)
}

// NeighborhoodBoost returns the multiplier for the point's district cell,
// 1.0 for invalid coordinates or cells outside the table.
func NeighborhoodBoost(p geo.Point) float64 {
	if p.IsZero() || !p.Valid() {
		return 1.0
	}
	if boost, ok := neighborhoodBoosts[neighborhoodCell(p)]; ok {
		return boost
	}
	return 1.0
}
