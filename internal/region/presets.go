// Package region provides curated monitoring presets: known hotspots with
// coordinates, a recommended observation window, and the change type to
// focus the analysis on.
package region

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ecolens/internal/geo"
	"github.com/sells-group/ecolens/internal/imagery"
	"github.com/sells-group/ecolens/internal/model"
)

// Preset is a ready-to-run monitoring target.
type Preset struct {
	Key         string
	Name        string
	Lat, Lon    float64
	Focus       model.ChangeType
	Description string

	// RecommendedBefore/After are window dates known to have usable
	// imagery for this area.
	RecommendedBefore string
	RecommendedAfter  string

	// Layer overrides the configured default when set. Daily-revisit
	// layers are preferred for cloudy regions.
	Layer imagery.Layer
}

// Location converts the preset to a validated location.
func (p Preset) Location() (geo.Location, error) {
	return geo.NewLocation(p.Name, p.Lat, p.Lon)
}

// Window returns the preset's recommended observation window.
func (p Preset) Window() (model.TimeWindow, error) {
	return model.NewTimeWindow(p.RecommendedBefore, p.RecommendedAfter)
}

var presets = map[string]Preset{
	"amazon_basin": {
		Key: "amazon_basin", Name: "Amazon Rainforest, Brazil",
		Lat: -3.4653, Lon: -62.2159,
		Focus:       model.ChangeDeforestation,
		Description: "High deforestation area in the Brazilian Amazon",
		// Mid-year dates are more likely to have clear imagery.
		RecommendedBefore: "2023-06-15", RecommendedAfter: "2024-06-15",
		Layer: imagery.LayerVIIRS,
	},
	"amazon_rondonia": {
		Key: "amazon_rondonia", Name: "Rondônia, Brazil",
		Lat: -9.4281, Lon: -63.0648,
		Focus:             model.ChangeDeforestation,
		Description:       "One of the most deforested regions in the Amazon",
		RecommendedBefore: "2022-01-01", RecommendedAfter: "2024-01-01",
	},
	"arctic_greenland": {
		Key: "arctic_greenland", Name: "Greenland Ice Sheet",
		Lat: 72.0, Lon: -40.0,
		Focus:       model.ChangeIceMelt,
		Description: "Arctic ice monitoring",
		// Summer to summer so the melt signal is comparable.
		RecommendedBefore: "2023-07-01", RecommendedAfter: "2024-07-01",
	},
	"las_vegas": {
		Key: "las_vegas", Name: "Las Vegas, Nevada, USA",
		Lat: 36.1699, Lon: -115.1398,
		Focus:             model.ChangeUrbanSprawl,
		Description:       "Rapid urban expansion in the desert",
		RecommendedBefore: "2020-01-01", RecommendedAfter: "2024-01-01",
	},
	"dubai": {
		Key: "dubai", Name: "Dubai, UAE",
		Lat: 25.2048, Lon: 55.2708,
		Focus:             model.ChangeUrbanSprawl,
		Description:       "Rapid coastal development",
		RecommendedBefore: "2018-01-01", RecommendedAfter: "2024-01-01",
	},
	"california_forests": {
		Key: "california_forests", Name: "Northern California Forests",
		Lat: 40.0, Lon: -121.0,
		Focus:       model.ChangeGeneral,
		Description: "Wildfire impact monitoring",
		// Spans one fire season.
		RecommendedBefore: "2023-06-01", RecommendedAfter: "2023-09-01",
	},
	"congo_basin": {
		Key: "congo_basin", Name: "Congo Rainforest, DRC",
		Lat: -0.5, Lon: 25.0,
		Focus:             model.ChangeDeforestation,
		Description:       "Second largest rainforest",
		RecommendedBefore: "2022-01-01", RecommendedAfter: "2024-01-01",
	},
}

// Get returns the preset for key.
func Get(key string) (Preset, error) {
	p, ok := presets[key]
	if !ok {
		return Preset{}, eris.Errorf("region: unknown preset %q, known: %v", key, Keys())
	}
	return p, nil
}

// Keys lists preset keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(presets))
	for k := range presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every preset sorted by key.
func All() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, k := range Keys() {
		out = append(out, presets[k])
	}
	return out
}
