package imagery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ecolens/internal/geo"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestResolveRequestDeterministic(t *testing.T) {
	loc := geo.Location{Name: "Amazon Basin", Lat: -3.4653, Lon: -62.2159}
	date := mustDate(t, "2024-01-01")

	a, err := ResolveRequest(loc, date, LayerLandsat, 11.0, 3)
	require.NoError(t, err)
	b, err := ResolveRequest(loc, date, LayerLandsat, 11.0, 3)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestResolveRequestDefaults(t *testing.T) {
	loc := geo.Location{Lat: 0, Lon: 0}
	req, err := ResolveRequest(loc, mustDate(t, "2024-01-01"), LayerVIIRS, 0, -5)
	require.NoError(t, err)

	assert.InDelta(t, DefaultWindowKm*DefaultWindowKm, req.BBox.AreaKm2(), 2.0)
	assert.Equal(t, 0, req.FallbackDays)
}

func TestResolveRequestRejectsBadCoordinates(t *testing.T) {
	loc := geo.Location{Lat: 95, Lon: 0}
	_, err := ResolveRequest(loc, mustDate(t, "2024-01-01"), LayerLandsat, 11.0, 0)
	assert.Error(t, err)
}

func TestCacheKeyRoundsCoordinates(t *testing.T) {
	date := mustDate(t, "2024-01-01")
	box := geo.BBox{MinLat: -3.50004, MinLon: -62.3, MaxLat: -3.4, MaxLon: -62.2}

	a := Request{Layer: LayerLandsat, BBox: box, Date: date}

	// Sub-4dp float noise does not change the key.
	noisy := box
	noisy.MinLat = -3.500041
	b := Request{Layer: LayerLandsat, BBox: noisy, Date: date}
	assert.Equal(t, a.CacheKey(), b.CacheKey())

	// A shifted box does.
	moved := box
	moved.MinLat = -3.5002
	c := Request{Layer: LayerLandsat, BBox: moved, Date: date}
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}

func TestCacheKeyIgnoresFallbackWindow(t *testing.T) {
	date := mustDate(t, "2024-01-01")
	box := geo.BBox{MinLat: -3.5, MinLon: -62.3, MaxLat: -3.4, MaxLon: -62.2}

	a := Request{Layer: LayerLandsat, BBox: box, Date: date, FallbackDays: 0}
	b := Request{Layer: LayerLandsat, BBox: box, Date: date, FallbackDays: 7}
	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestCacheKeyVariesByLayerAndDate(t *testing.T) {
	box := geo.BBox{MinLat: -3.5, MinLon: -62.3, MaxLat: -3.4, MaxLon: -62.2}
	base := Request{Layer: LayerLandsat, BBox: box, Date: mustDate(t, "2024-01-01")}

	otherLayer := base
	otherLayer.Layer = LayerSentinel
	assert.NotEqual(t, base.CacheKey(), otherLayer.CacheKey())

	otherDate := base
	otherDate.Date = mustDate(t, "2024-01-02")
	assert.NotEqual(t, base.CacheKey(), otherDate.CacheKey())
}

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer(" Landsat ")
	require.NoError(t, err)
	assert.Equal(t, LayerLandsat, l)
	assert.Equal(t, "HLS_L30_Nadir_BRDF_Adjusted_Reflectance", l.Product())

	_, err = ParseLayer("spy_satellite")
	assert.Error(t, err)
}

func TestFallbackDatesOrdering(t *testing.T) {
	requested := mustDate(t, "2024-01-10")
	dates := fallbackDates(requested, 2)

	want := []string{"2024-01-10", "2024-01-09", "2024-01-11", "2024-01-08", "2024-01-12"}
	require.Len(t, dates, len(want))
	for i, d := range dates {
		assert.Equal(t, want[i], d.Format("2006-01-02"))
	}
}

func TestFallbackDatesZeroWindow(t *testing.T) {
	requested := mustDate(t, "2024-01-10")
	dates := fallbackDates(requested, 0)
	require.Len(t, dates, 1)
	assert.True(t, dates[0].Equal(requested))
}
