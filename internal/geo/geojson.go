package geo

// Feature is a GeoJSON feature with arbitrary properties
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry is a GeoJSON geometry. Coordinates holds a Polygon, a Ring (LineString) or a Point.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewPolygonFeature wraps a polygon in a Feature
func NewPolygonFeature(polygon Polygon, properties map[string]interface{}) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Polygon", Coordinates: polygon},
		Properties: properties,
	}
}

// NewLineFeature wraps a two-or-more point line in a Feature
func NewLineFeature(line Ring, properties map[string]interface{}) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "LineString", Coordinates: line},
		Properties: properties,
	}
}

// NewFeatureCollection builds a collection, never with a nil feature slice
func NewFeatureCollection(features []Feature) FeatureCollection {
	if features == nil {
		features = []Feature{}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// NewPointFeature wraps a point in a Feature
func NewPointFeature(point Point, properties map[string]interface{}) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: point},
		Properties: properties,
	}
}
