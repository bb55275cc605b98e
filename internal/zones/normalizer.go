package zones

import (
	"fmt"
	"math"
	"strings"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/membrane"
)

// StyleMode selects how a zone's style fields are derived
type StyleMode int

const (
	// StateDriven derives every style field from the membrane state
	StateDriven StyleMode = iota
	// CustomOverride lets explicit per-zone colors, opacity, width and dash win over the state defaults
	CustomOverride
)

// ParseStyleMode parses "state" or "custom"
func ParseStyleMode(s string) (StyleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "state":
		return StateDriven, nil
	case "custom":
		return CustomOverride, nil
	default:
		return StateDriven, fmt.Errorf("unknown zone style mode %q", s)
	}
}

func (m StyleMode) String() string {
	if m == CustomOverride {
		return "custom"
	}
	return "state"
}

// Normalizer turns raw zone records into canonical zones
type Normalizer struct {
	mode StyleMode
}

// NewNormalizer creates a normalizer for the given style mode
func NewNormalizer(mode StyleMode) *Normalizer {
	return &Normalizer{mode: mode}
}

// Mode returns the style mode
func (n *Normalizer) Mode() StyleMode {
	return n.mode
}

// Normalize produces a complete zone from raw. When raw carries a center and a positive
// radius the ring is regenerated from them and raw.Coordinates is ignored. A missing id
// becomes "zone-<fallbackIndex>". Missing or invalid fields are replaced by defaults;
// Normalize never fails.
func (n *Normalizer) Normalize(raw PartialZone, fallbackIndex int) Zone {
	zone := Zone{
		ID:            strings.TrimSpace(raw.ID),
		Name:          strings.TrimSpace(raw.Name),
		MembraneState: membrane.NormalizeState(raw.MembraneState),
	}
	if zone.ID == "" {
		zone.ID = fmt.Sprintf("zone-%d", fallbackIndex)
	}
	if zone.Name == "" {
		zone.Name = PlaceholderName
	}

	if raw.Center != nil && finite(raw.Center.Lon()) && finite(raw.Center.Lat()) {
		c := *raw.Center
		zone.Center = &c
	}
	if raw.RadiusMeters != nil && finite(*raw.RadiusMeters) {
		r := *raw.RadiusMeters
		zone.RadiusMeters = &r
	}
	if zone.HasCircle() {
		zone.Coordinates = geo.CirclePolygon(*zone.Center, *zone.RadiusMeters)
	} else if len(raw.Coordinates) > 0 {
		zone.Coordinates = raw.Coordinates.Clone()
	}

	style := membrane.StyleFor(zone.MembraneState)
	zone.FillColor = membrane.BaseColor
	zone.FillOpacity = style.FillOpacity
	zone.FillPattern = style.Pattern
	zone.LineColor = membrane.BaseColor
	zone.LineWidth = style.LineWidth
	zone.LineDasharray = style.LineDasharray

	if n.mode == CustomOverride {
		n.applyOverrides(&zone, raw)
	}
	return zone
}

func (n *Normalizer) applyOverrides(zone *Zone, raw PartialZone) {
	if raw.FillColor != "" {
		zone.FillColor = raw.FillColor
		zone.LineColor = raw.FillColor
	}
	if raw.LineColor != "" {
		zone.LineColor = raw.LineColor
	}
	if raw.FillOpacity != nil && validOpacity(*raw.FillOpacity) {
		zone.FillOpacity = *raw.FillOpacity
	}
	if raw.LineWidth != nil && *raw.LineWidth > 0 && !math.IsInf(*raw.LineWidth, 0) {
		zone.LineWidth = *raw.LineWidth
	}
	if raw.LineDasharray != nil {
		zone.LineDasharray = cloneFloats(raw.LineDasharray)
	}
	// no explicit pattern means a flat color fill
	zone.FillPattern = raw.FillPattern
}

// NormalizeAll normalizes a batch, using each record's position as its fallback index
func (n *Normalizer) NormalizeAll(raws []PartialZone) []Zone {
	out := make([]Zone, 0, len(raws))
	for i, raw := range raws {
		out = append(out, n.Normalize(raw, i))
	}
	return out
}

func validOpacity(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
