package render

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/crismap/server/internal/geo"
)

var (
	// ErrDuplicateID is returned when adding a source, layer or image that already exists
	ErrDuplicateID = errors.New("id already exists")
	// ErrUnknownID is returned when referencing a source, layer or image that does not exist
	ErrUnknownID = errors.New("unknown id")
	// ErrInvalidGeometry is returned for a source whose geometry cannot be drawn
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// SceneState is a serializable copy of everything on a Scene
type SceneState struct {
	Version int64                  `json:"version"`
	Sources map[string]geo.Feature `json:"sources"`
	Layers  []Layer                `json:"layers"`
	Images  []Image                `json:"images"`
}

// Scene is an in-memory Surface. Browser clients replay its state onto their map.
type Scene struct {
	mu      sync.RWMutex
	version int64
	sources map[string]geo.Feature
	layers  []Layer
	images  map[string]Image
}

// NewScene creates an empty scene
func NewScene() *Scene {
	return &Scene{
		sources: make(map[string]geo.Feature),
		images:  make(map[string]Image),
	}
}

func (s *Scene) AddSource(id string, data geo.Feature) error {
	if err := checkFeature(data); err != nil {
		return fmt.Errorf("source %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("source %s: %w", id, ErrDuplicateID)
	}
	s.sources[id] = data
	s.version++
	return nil
}

func (s *Scene) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("source %s: %w", id, ErrUnknownID)
	}
	for _, l := range s.layers {
		if l.Source == id {
			return fmt.Errorf("source %s is still used by layer %s", id, l.ID)
		}
	}
	delete(s.sources, id)
	s.version++
	return nil
}

func (s *Scene) HasSource(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sources[id]
	return ok
}

func (s *Scene) AddLayer(layer Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layerIndex(layer.ID) >= 0 {
		return fmt.Errorf("layer %s: %w", layer.ID, ErrDuplicateID)
	}
	if _, ok := s.sources[layer.Source]; !ok {
		return fmt.Errorf("layer %s source %s: %w", layer.ID, layer.Source, ErrUnknownID)
	}
	if pattern, ok := layer.Paint["fill-pattern"].(string); ok {
		if _, ok := s.images[pattern]; !ok {
			return fmt.Errorf("layer %s pattern %s: %w", layer.ID, pattern, ErrUnknownID)
		}
	}
	s.layers = append(s.layers, copyLayer(layer))
	s.version++
	return nil
}

func (s *Scene) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.layerIndex(id)
	if i < 0 {
		return fmt.Errorf("layer %s: %w", id, ErrUnknownID)
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.version++
	return nil
}

func (s *Scene) HasLayer(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layerIndex(id) >= 0
}

func (s *Scene) AddImage(id string, image Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[id]; ok {
		return fmt.Errorf("image %s: %w", id, ErrDuplicateID)
	}
	image.ID = id
	s.images[id] = image
	s.version++
	return nil
}

func (s *Scene) HasImage(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[id]
	return ok
}

func (s *Scene) SetLayoutProperty(layerID, name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.layerIndex(layerID)
	if i < 0 {
		return fmt.Errorf("layer %s: %w", layerID, ErrUnknownID)
	}
	layout := make(map[string]interface{}, len(s.layers[i].Layout)+1)
	for k, v := range s.layers[i].Layout {
		layout[k] = v
	}
	layout[name] = value
	s.layers[i].Layout = layout
	s.version++
	return nil
}

// Layer returns a copy of the layer with the given id
func (s *Scene) Layer(id string) (Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.layerIndex(id); i >= 0 {
		return copyLayer(s.layers[i]), true
	}
	return Layer{}, false
}

// State returns a copy of the scene. Layers keep their draw order; images are sorted by id.
func (s *Scene) State() SceneState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := SceneState{
		Version: s.version,
		Sources: make(map[string]geo.Feature, len(s.sources)),
		Layers:  make([]Layer, 0, len(s.layers)),
		Images:  make([]Image, 0, len(s.images)),
	}
	for id, src := range s.sources {
		state.Sources[id] = src
	}
	for _, l := range s.layers {
		state.Layers = append(state.Layers, copyLayer(l))
	}
	for _, img := range s.images {
		state.Images = append(state.Images, img)
	}
	sort.Slice(state.Images, func(i, j int) bool { return state.Images[i].ID < state.Images[j].ID })
	return state
}

func (s *Scene) layerIndex(id string) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func copyLayer(l Layer) Layer {
	out := l
	out.Layout = make(map[string]interface{}, len(l.Layout))
	for k, v := range l.Layout {
		out.Layout[k] = v
	}
	out.Paint = make(map[string]interface{}, len(l.Paint))
	for k, v := range l.Paint {
		out.Paint[k] = v
	}
	return out
}

// checkFeature rejects polygons a renderer cannot triangulate: no outer ring, or
// non-finite coordinates. Ring shape and point count are not checked.
func checkFeature(f geo.Feature) error {
	polygon, ok := f.Geometry.Coordinates.(geo.Polygon)
	if !ok {
		return nil
	}
	if len(polygon.OuterRing()) == 0 {
		return fmt.Errorf("%w: empty outer ring", ErrInvalidGeometry)
	}
	for _, ring := range polygon {
		for _, p := range ring {
			if math.IsNaN(p.Lon()) || math.IsNaN(p.Lat()) || math.IsInf(p.Lon(), 0) || math.IsInf(p.Lat(), 0) {
				return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
			}
		}
	}
	return nil
}
