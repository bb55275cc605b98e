package render

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/membrane"
	"github.com/crismap/server/internal/performance"
	"github.com/crismap/server/internal/zones"
)

// MaxFallbackOpacity caps the boosted opacity of a flat fill used in place of a missing texture
const MaxFallbackOpacity = 0.8

const fallbackOpacityBoost = 1.5

// DefaultPatternURL is where texture images are served from
const DefaultPatternURL = "/textures/%s.png"

// RebuildResult summarizes a Rebuild
type RebuildResult struct {
	Rendered  int      `json:"rendered"`
	Skipped   []string `json:"skipped,omitempty"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Sync keeps the zone layers of a Surface in step with the effective zone list
type Sync struct {
	mu       sync.Mutex
	surface  Surface
	rendered []string
	visible  bool
	logger   *zap.Logger
	profiler *performance.Profiler
}

// NewSync creates a sync for surface. visible sets the initial membrane visibility.
func NewSync(surface Surface, visible bool, logger *zap.Logger, profiler *performance.Profiler) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{
		surface:  surface,
		visible:  visible,
		logger:   logger.With(zap.String("component", "render_sync")),
		profiler: profiler,
	}
}

// RegisterPatterns registers one texture per membrane state, skipping those already present
func RegisterPatterns(surface Surface, urlFormat string) (int, error) {
	if urlFormat == "" {
		urlFormat = DefaultPatternURL
	}
	added := 0
	for _, pattern := range membrane.Patterns() {
		if surface.HasImage(pattern) {
			continue
		}
		if err := surface.AddImage(pattern, Image{ID: pattern, URL: fmt.Sprintf(urlFormat, pattern)}); err != nil {
			return added, fmt.Errorf("register pattern %s: %w", pattern, err)
		}
		added++
	}
	return added, nil
}

// Rebuild removes every zone layer drawn by the previous call and draws list. A zone
// without coordinates, or one the surface rejects, is skipped without affecting the others.
func (s *Sync) Rebuild(list []zones.Zone) RebuildResult {
	defer s.profiler.Start("render.rebuild").End()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.rendered {
		s.removeZone(id)
	}
	s.rendered = s.rendered[:0]

	var result RebuildResult
	for _, zone := range list {
		if len(zone.Coordinates) == 0 {
			s.logger.Warn("Zone has no coordinates, skipping", zap.String("zone_id", zone.ID))
			result.Skipped = append(result.Skipped, zone.ID)
			continue
		}
		if s.surface.HasSource(SourceID(zone.ID)) {
			s.logger.Debug("Zone source already on surface, skipping", zap.String("zone_id", zone.ID))
			result.Skipped = append(result.Skipped, zone.ID)
			continue
		}

		fallback, err := s.addZone(zone)
		if err != nil {
			s.logger.Warn("Failed to render zone", zap.String("zone_id", zone.ID), zap.Error(err))
			s.removeZone(zone.ID)
			result.Skipped = append(result.Skipped, zone.ID)
			continue
		}
		if fallback {
			result.Fallbacks = append(result.Fallbacks, zone.ID)
		}
		s.rendered = append(s.rendered, zone.ID)
		result.Rendered++
	}
	return result
}

func (s *Sync) addZone(zone zones.Zone) (fallback bool, err error) {
	feature := geo.NewPolygonFeature(zone.Coordinates, map[string]interface{}{
		"name":   zone.Name,
		"zoneId": zone.ID,
	})
	if err := s.surface.AddSource(SourceID(zone.ID), feature); err != nil {
		return false, err
	}

	paint, fallback := s.fillPaint(zone)
	if err := s.surface.AddLayer(Layer{
		ID:     FillLayerID(zone.ID),
		Type:   LayerFill,
		Source: SourceID(zone.ID),
		Layout: s.layout(),
		Paint:  paint,
	}); err != nil {
		return false, err
	}

	dash := zone.LineDasharray
	if len(dash) == 0 {
		dash = []float64{1, 0}
	}
	err = s.surface.AddLayer(Layer{
		ID:     BorderLayerID(zone.ID),
		Type:   LayerLine,
		Source: SourceID(zone.ID),
		Layout: s.layout(),
		Paint: map[string]interface{}{
			"line-color":     zone.LineColor,
			"line-width":     zone.LineWidth,
			"line-dasharray": dash,
		},
	})
	return fallback, err
}

func (s *Sync) fillPaint(zone zones.Zone) (map[string]interface{}, bool) {
	if zone.FillPattern == "" {
		return map[string]interface{}{
			"fill-color":   zone.FillColor,
			"fill-opacity": zone.FillOpacity,
		}, false
	}
	if s.surface.HasImage(zone.FillPattern) {
		return map[string]interface{}{
			"fill-color":   zone.FillColor,
			"fill-pattern": zone.FillPattern,
			"fill-opacity": zone.FillOpacity,
		}, false
	}
	s.logger.Debug("Pattern not registered, using flat fill",
		zap.String("zone_id", zone.ID), zap.String("pattern", zone.FillPattern))
	return map[string]interface{}{
		"fill-color":   zone.FillColor,
		"fill-opacity": math.Min(zone.FillOpacity*fallbackOpacityBoost, MaxFallbackOpacity),
	}, true
}

func (s *Sync) removeZone(id string) {
	for _, layerID := range []string{FillLayerID(id), BorderLayerID(id)} {
		if s.surface.HasLayer(layerID) {
			if err := s.surface.RemoveLayer(layerID); err != nil {
				s.logger.Warn("Failed to remove layer", zap.String("layer_id", layerID), zap.Error(err))
			}
		}
	}
	if s.surface.HasSource(SourceID(id)) {
		if err := s.surface.RemoveSource(SourceID(id)); err != nil {
			s.logger.Warn("Failed to remove source", zap.String("zone_id", id), zap.Error(err))
		}
	}
}

func (s *Sync) layout() map[string]interface{} {
	return map[string]interface{}{"visibility": visibility(s.visible)}
}

// SetVisible shows or hides every rendered zone layer without rebuilding
func (s *Sync) SetVisible(visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visible = visible
	for _, id := range s.rendered {
		for _, layerID := range []string{FillLayerID(id), BorderLayerID(id)} {
			if err := s.surface.SetLayoutProperty(layerID, "visibility", visibility(visible)); err != nil {
				return fmt.Errorf("set visibility of %s: %w", layerID, err)
			}
		}
	}
	return nil
}

// Visible reports whether membranes are shown
func (s *Sync) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Rendered returns the ids of the zones currently drawn
func (s *Sync) Rendered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rendered))
	copy(out, s.rendered)
	return out
}

func visibility(visible bool) string {
	if visible {
		return "visible"
	}
	return "none"
}
