package region

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ecolens/internal/model"
)

func TestGetKnownPreset(t *testing.T) {
	p, err := Get("amazon_basin")
	require.NoError(t, err)

	assert.Equal(t, "amazon_basin", p.Key)
	assert.Equal(t, "Amazon Rainforest, Brazil", p.Name)
	assert.Equal(t, model.ChangeDeforestation, p.Focus)
	assert.InDelta(t, -3.4653, p.Lat, 1e-9)
	assert.InDelta(t, -62.2159, p.Lon, 1e-9)
}

func TestGetUnknownPresetListsCandidates(t *testing.T) {
	_, err := Get("atlantis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantis")
	assert.Contains(t, err.Error(), "amazon_basin")
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	require.NotEmpty(t, keys)
	assert.True(t, sort.StringsAreSorted(keys))
	assert.Contains(t, keys, "amazon_basin")
	assert.Contains(t, keys, "arctic_greenland")
	assert.Contains(t, keys, "las_vegas")
}

func TestAllPresetsResolve(t *testing.T) {
	all := All()
	require.Len(t, all, len(Keys()))

	for _, p := range all {
		t.Run(p.Key, func(t *testing.T) {
			loc, err := p.Location()
			require.NoError(t, err)
			assert.Equal(t, p.Name, loc.Name)

			window, err := p.Window()
			require.NoError(t, err)
			assert.Greater(t, window.ElapsedDays(), 0)

			assert.NotEmpty(t, p.Description)
			assert.NotEqual(t, model.ChangeUnknown, p.Focus)
		})
	}
}
