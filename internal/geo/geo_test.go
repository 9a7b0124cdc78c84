package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"valid equator", 0, 0, false},
		{"valid amazon", -3.4653, -62.2159, false},
		{"valid poles", 90, 180, false},
		{"valid negative extremes", -90, -180, false},
		{"lat too high", 90.01, 0, true},
		{"lat too low", -91, 0, true},
		{"lon too high", 0, 180.5, true},
		{"lon too low", 0, -181, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lon)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidCoordinate))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLocation(t *testing.T) {
	loc, err := NewLocation("Amazon Basin", -3.4653, -62.2159)
	require.NoError(t, err)
	assert.Equal(t, "Amazon Basin", loc.Name)
	assert.InDelta(t, -3.4653, loc.Lat, 1e-9)

	_, err = NewLocation("bad", 200, 0)
	assert.Error(t, err)
}

func TestNewLocationDefaultsNameToCoordinates(t *testing.T) {
	loc, err := NewLocation("", -3.4653, -62.2159)
	require.NoError(t, err)
	assert.Equal(t, "3°27'S, 62°12'W", loc.Name)
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "3°27'S, 62°12'W", FormatCoordinates(-3.4653, -62.2159))
	assert.Equal(t, "36°10'N, 115°8'W", FormatCoordinates(36.1699, -115.1398))
	assert.Equal(t, "0°0'N, 0°0'E", FormatCoordinates(0, 0))
}

func TestBBoxAroundCenterAndArea(t *testing.T) {
	box := BBoxAround(-3.4653, -62.2159, 11.0, 11.0)

	lat, lon := box.Center()
	assert.InDelta(t, -3.4653, lat, 1e-9)
	assert.InDelta(t, -62.2159, lon, 1e-9)

	// An 11x11 km request should produce roughly 121 km2 of ground area.
	assert.InDelta(t, 121.0, box.AreaKm2(), 1.0)
}

func TestBBoxAreaMatchesGreatCircleSpans(t *testing.T) {
	box := BBoxAround(36.1699, -115.1398, 11.0, 11.0)

	lat, lon := box.Center()
	height := HaversineKm(box.MinLat, lon, box.MaxLat, lon)
	width := HaversineKm(lat, box.MinLon, lat, box.MaxLon)

	assert.InDelta(t, height*width, box.AreaKm2(), 1e-9)
}

func TestBBoxAroundHighLatitudeWidens(t *testing.T) {
	equator := BBoxAround(0, 0, 11.0, 11.0)
	arctic := BBoxAround(72.0, -40.0, 11.0, 11.0)

	// Same ground width needs more longitude degrees near the pole.
	assert.Greater(t,
		arctic.MaxLon-arctic.MinLon,
		equator.MaxLon-equator.MinLon)

	// Ground area stays roughly equal regardless of latitude.
	assert.InDelta(t, equator.AreaKm2(), arctic.AreaKm2(), 5.0)
}

func TestBBoxAroundClampsAtPole(t *testing.T) {
	box := BBoxAround(89.99, 0, 50, 50)
	assert.LessOrEqual(t, box.MaxLat, 90.0)
	assert.GreaterOrEqual(t, box.MinLat, -90.0)
	assert.LessOrEqual(t, box.MaxLon, 180.0)
	assert.GreaterOrEqual(t, box.MinLon, -180.0)
}

func TestBBoxPolygonClosedRing(t *testing.T) {
	box := BBoxAround(-3.4653, -62.2159, 11.0, 11.0)
	poly := box.Polygon()

	require.Equal(t, 4326, poly.SRID())
	coords := poly.Coords()
	require.Len(t, coords, 1)
	ring := coords[0]
	require.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[4])
}

func TestKmPerDegreeLon(t *testing.T) {
	assert.InDelta(t, 111.0, KmPerDegreeLon(0), 0.001)
	assert.InDelta(t, 78.5, KmPerDegreeLon(45), 0.1)
	assert.InDelta(t, 0, KmPerDegreeLon(90), 0.001)
}

func TestHaversineKm(t *testing.T) {
	// Same point.
	assert.InDelta(t, 0, HaversineKm(10, 20, 10, 20), 1e-9)

	// One degree of latitude is ~111 km.
	assert.InDelta(t, 111.2, HaversineKm(0, 0, 1, 0), 0.5)

	// London to Paris, roughly 344 km.
	assert.InDelta(t, 344, HaversineKm(51.5074, -0.1278, 48.8566, 2.3522), 5)
}
