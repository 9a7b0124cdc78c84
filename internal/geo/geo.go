package geo

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// kmPerDegreeLat is the north-south span of one degree of latitude.
// Longitude degrees shrink with cos(lat); see KmPerDegreeLon.
const kmPerDegreeLat = 111.0

// earthRadiusKm is the mean Earth radius used by the haversine distance.
const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// its valid range. Callers match it with errors.Is.
var ErrInvalidCoordinate = eris.New("geo: invalid coordinate")

// Location is a validated point of interest. Construct via NewLocation;
// the zero value is not valid.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// NewLocation validates coordinates and returns an immutable Location.
func NewLocation(name string, lat, lon float64) (Location, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Location{}, err
	}
	if name == "" {
		name = FormatCoordinates(lat, lon)
	}
	return Location{Name: name, Lat: lat, Lon: lon}, nil
}

// ValidateCoordinates rejects out-of-range latitude/longitude before any I/O.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return eris.Wrap(ErrInvalidCoordinate, "coordinates must be numbers")
	}
	if lat < -90 || lat > 90 {
		return eris.Wrapf(ErrInvalidCoordinate, "latitude must be within [-90, 90], got %v", lat)
	}
	if lon < -180 || lon > 180 {
		return eris.Wrapf(ErrInvalidCoordinate, "longitude must be within [-180, 180], got %v", lon)
	}
	return nil
}

// FormatCoordinates renders a point as a degrees-and-minutes display string,
// e.g. "3°27'S, 62°12'W".
func FormatCoordinates(lat, lon float64) string {
	latDir, lonDir := "N", "E"
	if lat < 0 {
		latDir = "S"
	}
	if lon < 0 {
		lonDir = "W"
	}

	latAbs, lonAbs := math.Abs(lat), math.Abs(lon)
	latDeg := int(latAbs)
	latMin := int((latAbs - float64(latDeg)) * 60)
	lonDeg := int(lonAbs)
	lonMin := int((lonAbs - float64(lonDeg)) * 60)

	return fmt.Sprintf("%d°%d'%s, %d°%d'%s", latDeg, latMin, latDir, lonDeg, lonMin, lonDir)
}

// KmPerDegreeLon returns the east-west span of one degree of longitude at
// the given latitude.
func KmPerDegreeLon(lat float64) float64 {
	return kmPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// BBox is a rectangular geographic extent in EPSG:4326.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BBoxAround builds a box centered on the point spanning widthKm by
// heightKm on the ground. The box is clamped to valid coordinate ranges so
// polar or antimeridian-adjacent points still produce a usable extent.
func BBoxAround(lat, lon, widthKm, heightKm float64) BBox {
	halfLat := (heightKm / 2) / kmPerDegreeLat

	lonScale := KmPerDegreeLon(lat)
	// Near the poles a longitude degree collapses to nothing; fall back to
	// the latitude scale rather than producing an unbounded box.
	if lonScale < 1e-6 {
		lonScale = kmPerDegreeLat
	}
	halfLon := (widthKm / 2) / lonScale

	return BBox{
		MinLat: math.Max(lat-halfLat, -90),
		MinLon: math.Max(lon-halfLon, -180),
		MaxLat: math.Min(lat+halfLat, 90),
		MaxLon: math.Min(lon+halfLon, 180),
	}
}

// Center returns the midpoint of the box.
func (b BBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// AreaKm2 approximates the ground area of the box by measuring its
// north-south and east-west spans through the center as great-circle
// distances.
func (b BBox) AreaKm2() float64 {
	centerLat, centerLon := b.Center()
	heightKm := HaversineKm(b.MinLat, centerLon, b.MaxLat, centerLon)
	widthKm := HaversineKm(centerLat, b.MinLon, centerLat, b.MaxLon)
	return heightKm * widthKm
}

// Polygon returns the box as a closed polygon ring (lon/lat order, SRID
// 4326), suitable for GeoJSON serialization in reports.
func (b BBox) Polygon() *geom.Polygon {
	ring := []geom.Coord{
		{b.MinLon, b.MinLat},
		{b.MaxLon, b.MinLat},
		{b.MaxLon, b.MaxLat},
		{b.MinLon, b.MaxLat},
		{b.MinLon, b.MinLat},
	}
	poly := geom.NewPolygon(geom.XY).SetSRID(4326)
	poly.MustSetCoords([][]geom.Coord{ring})
	return poly
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}
