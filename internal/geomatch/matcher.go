package geomatch

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/openings-cli/internal/model"
)

// DefaultToleranceMeters is the grouping tolerance used throughout the
// engine unless overridden by config.
const DefaultToleranceMeters = 100.0

const earthRadiusM = 6371000.0

// haversineM returns the great-circle distance in meters between two
// lon/lat coordinates.
func haversineM(a, b geom.Coord) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := (b[1] - a[1]) * math.Pi / 180
	dLon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// coord returns the record's position as a lon/lat coordinate, or nil when
// either component is missing or malformed. Malformed coordinates are
// treated as absent, never as an error.
func coord(r *model.NormalizedRecord) geom.Coord {
	if !r.HasCoords() {
		return nil
	}
	lat, lon := *r.Lat, *r.Lon
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	// (0,0) is the classic geocoder null island sentinel.
	if lat == 0 && lon == 0 {
		return nil
	}
	return geom.Coord{lon, lat}
}

// Matcher provides fuzzy equality between two (address, lat, lon) tuples.
// It has no side effects and is safe for concurrent use.
type Matcher struct {
	toleranceM float64
}

// NewMatcher creates a Matcher with the given distance tolerance in meters.
// A non-positive tolerance falls back to the default.
func NewMatcher(toleranceM float64) *Matcher {
	if toleranceM <= 0 {
		toleranceM = DefaultToleranceMeters
	}
	return &Matcher{toleranceM: toleranceM}
}

// Match reports whether two records are at the same physical location:
// either both carry coordinates within the tolerance, or their normalized
// address strings are equal.
func (m *Matcher) Match(a, b *model.NormalizedRecord) bool {
	if ca, cb := coord(a), coord(b); ca != nil && cb != nil {
		if haversineM(ca, cb) <= m.toleranceM {
			return true
		}
	}
	na, nb := NormalizeAddress(a.Address), NormalizeAddress(b.Address)
	return na != "" && na == nb
}

// MatchAddr is the string-level form of Match, used by the deduplicator
// fallback where only address strings are available.
func (m *Matcher) MatchAddr(addrA, addrB string) bool {
	na, nb := NormalizeAddress(addrA), NormalizeAddress(addrB)
	return na != "" && na == nb
}
