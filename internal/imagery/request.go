package imagery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sells-group/ecolens/internal/geo"
)

// Request fully determines one imagery fetch: a layer, a bounding box, the
// date the caller wants, and how far around that date the fetcher may
// search. Pure value type; CacheKey is derived from it alone.
type Request struct {
	Layer        Layer     `json:"layer"`
	BBox         geo.BBox  `json:"bbox"`
	Date         time.Time `json:"date"`
	FallbackDays int       `json:"fallback_days"`
}

// CacheKey returns a deterministic content address for the request.
// Coordinates are rounded to 4 decimal places (~11 m) so the key is
// reproducible across runs regardless of float formatting noise. The
// fallback window is deliberately excluded: two requests for the same
// layer/box/date share an artifact however wide their search windows are.
func (r Request) CacheKey() string {
	material := fmt.Sprintf("%s|%.4f,%.4f,%.4f,%.4f|%s",
		r.Layer,
		r.BBox.MinLat, r.BBox.MinLon, r.BBox.MaxLat, r.BBox.MaxLon,
		r.Date.Format("2006-01-02"),
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// ResolveRequest converts a point of interest and a desired ground coverage
// into a fetchable imagery request. Pure function: no I/O, fully
// deterministic for identical inputs, which makes the resulting bounding
// box safe to use as part of a cache key.
func ResolveRequest(loc geo.Location, date time.Time, layer Layer, windowKm float64, fallbackDays int) (Request, error) {
	if err := geo.ValidateCoordinates(loc.Lat, loc.Lon); err != nil {
		return Request{}, err
	}
	if windowKm <= 0 {
		windowKm = DefaultWindowKm
	}
	if fallbackDays < 0 {
		fallbackDays = 0
	}

	return Request{
		Layer:        layer,
		BBox:         geo.BBoxAround(loc.Lat, loc.Lon, windowKm, windowKm),
		Date:         date,
		FallbackDays: fallbackDays,
	}, nil
}

// DefaultWindowKm is the ground coverage used when the caller does not ask
// for a specific window (~11 km matches a 0.1 degree box at the equator).
const DefaultWindowKm = 11.0
