package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/seatrack/gpxplayer/pkg/core"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Samples are kept in EPSG:4326 (lat/lon). Stored geometries are always projected
// to EPSG:3857 so map consumers and SQL backends without spatial awareness agree
// on one planar representation.

const (
	// EarthRadiusMeters is the mean earth radius used for great-circle distances.
	EarthRadiusMeters = 6371000.0

	// MetersPerNauticalMile converts meters to nautical miles.
	MetersPerNauticalMile = 1852.0

	// KnotsPerMeterPerSecond converts m/s to knots.
	KnotsPerMeterPerSecond = 1.94384
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses a "lat,lon" string (one static mark per line in a marks file).
func PositionFromString(coords string) (core.Position2D, error) {
	parts := strings.Split(strings.TrimSpace(coords), ",")
	if len(parts) < 2 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	if err := ValidatePosition(lat, lon); err != nil {
		return core.Position2D{}, err
	}
	return core.Position2D{Lat: lat, Lon: lon}, nil
}

// ValidatePosition checks that lat/lon are finite and inside the WGS84 ranges.
func ValidatePosition(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Project converts a WGS84 latitude/longitude into an EPSG:3857 point.
func Project(lat, lon float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(lon, lat, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
}

// Haversine returns the great-circle distance between two positions in meters.
func Haversine(a, b core.Position2D) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// NauticalMiles returns the great-circle distance between two positions in nautical miles.
func NauticalMiles(a, b core.Position2D) float64 {
	return Haversine(a, b) / MetersPerNauticalMile
}

// Heading returns the initial bearing from a to b in degrees, clockwise from north in [0, 360).
func Heading(a, b core.Position2D) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLon := radians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
