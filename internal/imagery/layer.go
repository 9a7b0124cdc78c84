package imagery

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Layer identifies a satellite data product served by NASA GIBS.
type Layer string

const (
	LayerLandsat    Layer = "landsat"
	LayerSentinel   Layer = "sentinel"
	LayerVIIRS      Layer = "viirs"
	LayerMODISTerra Layer = "modis_terra"
	LayerMODISAqua  Layer = "modis_aqua"
)

// layerProduct maps a Layer to its GIBS product identifier and native
// ground resolution in meters per pixel.
type layerProduct struct {
	Product     string
	ResolutionM float64
	RevisitDays int
}

var layerCatalog = map[Layer]layerProduct{
	LayerLandsat:    {Product: "HLS_L30_Nadir_BRDF_Adjusted_Reflectance", ResolutionM: 30, RevisitDays: 8},
	LayerSentinel:   {Product: "HLS_S30_Nadir_BRDF_Adjusted_Reflectance", ResolutionM: 30, RevisitDays: 5},
	LayerVIIRS:      {Product: "VIIRS_SNPP_CorrectedReflectance_TrueColor", ResolutionM: 375, RevisitDays: 1},
	LayerMODISTerra: {Product: "MODIS_Terra_CorrectedReflectance_TrueColor", ResolutionM: 250, RevisitDays: 1},
	LayerMODISAqua:  {Product: "MODIS_Aqua_CorrectedReflectance_TrueColor", ResolutionM: 250, RevisitDays: 1},
}

// ParseLayer validates a layer name against the supported catalog.
func ParseLayer(s string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := layerCatalog[l]; !ok {
		return "", eris.Errorf("imagery: unsupported layer %q (supported: %s)", s, strings.Join(LayerNames(), ", "))
	}
	return l, nil
}

// Product returns the GIBS product identifier for the layer.
func (l Layer) Product() string {
	return layerCatalog[l].Product
}

// ResolutionM returns the layer's native resolution in meters per pixel.
func (l Layer) ResolutionM() float64 {
	return layerCatalog[l].ResolutionM
}

// LayerNames lists the supported layer names in stable order.
func LayerNames() []string {
	names := make([]string, 0, len(layerCatalog))
	for l := range layerCatalog {
		names = append(names, string(l))
	}
	sort.Strings(names)
	return names
}
