// Package render mirrors zones onto a map rendering surface.
package render

import "github.com/crismap/server/internal/geo"

// Layer types understood by the surface
const (
	LayerFill = "fill"
	LayerLine = "line"
)

// Layer is a styled layer drawing one source
type Layer struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	Layout map[string]interface{} `json:"layout"`
	Paint  map[string]interface{} `json:"paint"`
}

// Image is a texture registered with the surface, referenced by fill patterns
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Surface is the subset of a map renderer the zone sync drives. Ids are plain strings;
// adding an id that already exists is an error.
type Surface interface {
	AddSource(id string, data geo.Feature) error
	RemoveSource(id string) error
	HasSource(id string) bool
	AddLayer(layer Layer) error
	RemoveLayer(id string) error
	HasLayer(id string) bool
	AddImage(id string, image Image) error
	HasImage(id string) bool
	SetLayoutProperty(layerID, name string, value interface{}) error
}

// SourceID returns the source id of a zone
func SourceID(zoneID string) string { return zoneID + "-source" }

// FillLayerID returns the fill layer id of a zone
func FillLayerID(zoneID string) string { return zoneID + "-fill" }

// BorderLayerID returns the border layer id of a zone
func BorderLayerID(zoneID string) string { return zoneID + "-border" }
