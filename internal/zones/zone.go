// Package zones normalizes membrane zone records and owns the effective zone list.
package zones

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/membrane"
)

// PlaceholderName is used for zones saved without a name
const PlaceholderName = "Ponto de membrana"

// Zone is a fully normalized membrane zone
type Zone struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	MembraneState membrane.State `json:"membraneState"`
	Coordinates   geo.Polygon    `json:"coordinates"`
	Center        *geo.Point     `json:"center,omitempty"`
	RadiusMeters  *float64       `json:"radiusMeters,omitempty"`
	FillColor     string         `json:"fillColor"`
	FillOpacity   float64        `json:"fillOpacity"`
	FillPattern   string         `json:"fillPattern,omitempty"`
	LineColor     string         `json:"lineColor"`
	LineWidth     float64        `json:"lineWidth"`
	LineDasharray []float64      `json:"lineDasharray"`
}

// Clone returns a deep copy of the zone
func (z Zone) Clone() Zone {
	out := z
	out.Coordinates = z.Coordinates.Clone()
	if z.Center != nil {
		c := *z.Center
		out.Center = &c
	}
	if z.RadiusMeters != nil {
		r := *z.RadiusMeters
		out.RadiusMeters = &r
	}
	out.LineDasharray = cloneFloats(z.LineDasharray)
	return out
}

// HasCircle reports whether the zone is authored from a center and a positive radius
func (z Zone) HasCircle() bool {
	return z.Center != nil && z.RadiusMeters != nil && finite(*z.RadiusMeters) && *z.RadiusMeters > 0
}

// Partial converts the zone back into raw input form
func (z Zone) Partial() PartialZone {
	c := z.Clone()
	opacity, width := c.FillOpacity, c.LineWidth
	return PartialZone{
		ID:            c.ID,
		Name:          c.Name,
		MembraneState: string(c.MembraneState),
		Coordinates:   c.Coordinates,
		Center:        c.Center,
		RadiusMeters:  c.RadiusMeters,
		FillColor:     c.FillColor,
		FillOpacity:   &opacity,
		FillPattern:   c.FillPattern,
		LineColor:     c.LineColor,
		LineWidth:     &width,
		LineDasharray: c.LineDasharray,
	}
}

// PartialZone is a raw zone record as found in shipped defaults, stored snapshots,
// imports and drafts. Every field is optional; only the Normalizer consumes it.
type PartialZone struct {
	ID            string      `json:"id,omitempty"`
	Name          string      `json:"name,omitempty"`
	MembraneState string      `json:"membraneState,omitempty"`
	Coordinates   geo.Polygon `json:"coordinates,omitempty"`
	Center        *geo.Point  `json:"center,omitempty"`
	RadiusMeters  *float64    `json:"radiusMeters,omitempty"`
	FillColor     string      `json:"fillColor,omitempty"`
	FillOpacity   *float64    `json:"fillOpacity,omitempty"`
	FillPattern   string      `json:"fillPattern,omitempty"`
	LineColor     string      `json:"lineColor,omitempty"`
	LineWidth     *float64    `json:"lineWidth,omitempty"`
	LineDasharray []float64   `json:"lineDasharray,omitempty"` // non-nil means explicitly set
}

// UnmarshalJSON decodes a record field by field. A field with the wrong shape is
// dropped instead of failing the record: ids may be numbers, numeric fields may be
// strings, and unparsable coordinates become nil. Only a non-object record is an error.
func (p *PartialZone) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("zone record is not an object: %w", err)
	}

	*p = PartialZone{
		ID:            decodeID(fields["id"]),
		Name:          decodeString(fields["name"]),
		MembraneState: decodeString(fields["membraneState"]),
		Coordinates:   decodePolygon(fields["coordinates"]),
		Center:        decodePoint(fields["center"]),
		RadiusMeters:  decodeFloat(fields["radiusMeters"]),
		FillColor:     decodeString(fields["fillColor"]),
		FillOpacity:   decodeFloat(fields["fillOpacity"]),
		FillPattern:   decodeString(fields["fillPattern"]),
		LineColor:     decodeString(fields["lineColor"]),
		LineWidth:     decodeFloat(fields["lineWidth"]),
	}
	var dash []float64
	if raw, ok := fields["lineDasharray"]; ok && json.Unmarshal(raw, &dash) == nil {
		p.LineDasharray = dash
	}
	return nil
}

// DecodeSnapshot parses a JSON array of zone records. Elements that are not objects
// are skipped and counted. An error means the document itself is not an array.
func DecodeSnapshot(data []byte) ([]PartialZone, int, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, 0, fmt.Errorf("decode zone snapshot: %w", err)
	}
	if elements == nil {
		return nil, 0, fmt.Errorf("decode zone snapshot: not an array")
	}

	records := make([]PartialZone, 0, len(elements))
	skipped := 0
	for _, raw := range elements {
		var record PartialZone
		if err := json.Unmarshal(raw, &record); err != nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

func decodeString(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func decodeID(raw json.RawMessage) string {
	if s := decodeString(raw); s != "" {
		return s
	}
	var n float64
	if raw != nil && json.Unmarshal(raw, &n) == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func decodeFloat(raw json.RawMessage) *float64 {
	if raw == nil {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	// ParseFloat accepts "NaN" and "Inf", which could never be encoded again
	if s := decodeString(raw); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && finite(f) {
			return &f
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func decodePoint(raw json.RawMessage) *geo.Point {
	var values []float64
	if raw == nil || json.Unmarshal(raw, &values) != nil || len(values) < 2 {
		return nil
	}
	return &geo.Point{values[0], values[1]}
}

func decodePolygon(raw json.RawMessage) geo.Polygon {
	var polygon geo.Polygon
	if raw == nil || json.Unmarshal(raw, &polygon) != nil {
		return nil
	}
	return polygon
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
