package zones

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/crismap/server/internal/geo"
)

// DefaultEditRadius pre-fills the radius when editing a zone that has none
const DefaultEditRadius = 1000.0

var validate = validator.New()

// Draft is a zone as entered in the draw/edit form. Coordinates holds a polygon either
// as a JSON array or as JSON text inside a string, the way the form submits it.
type Draft struct {
	ID            string          `json:"id,omitempty" validate:"max=128"`
	Name          string          `json:"name" validate:"max=200"`
	MembraneState string          `json:"membraneState"`
	Center        *geo.Point      `json:"center,omitempty"`
	RadiusMeters  float64         `json:"radiusMeters"`
	Coordinates   json.RawMessage `json:"coordinates,omitempty"`
	FillColor     string          `json:"fillColor,omitempty" validate:"omitempty,hexcolor"`
	FillOpacity   *float64        `json:"fillOpacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	FillPattern   string          `json:"fillPattern,omitempty" validate:"max=128"`
	LineColor     string          `json:"lineColor,omitempty" validate:"omitempty,hexcolor"`
	LineWidth     *float64        `json:"lineWidth,omitempty" validate:"omitempty,gt=0,lte=50"`
	LineDasharray []float64       `json:"lineDasharray,omitempty" validate:"omitempty,dive,gte=0"`
}

// Build validates the draft and converts it into a raw record ready for the store.
// With a center the radius must be positive; without one the coordinates must parse
// to a polygon with a non-empty outer ring. Failures are *ValidationError.
func (d Draft) Build() (PartialZone, error) {
	if err := validate.Struct(d); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return PartialZone{}, invalid(fe.Field(), ErrInvalidDraft, "failed validation: %s", fe.Tag())
		}
		return PartialZone{}, fmt.Errorf("validate draft: %w", err)
	}

	raw := PartialZone{
		ID:            strings.TrimSpace(d.ID),
		Name:          strings.TrimSpace(d.Name),
		MembraneState: d.MembraneState,
		FillColor:     d.FillColor,
		FillOpacity:   d.FillOpacity,
		FillPattern:   d.FillPattern,
		LineColor:     d.LineColor,
		LineWidth:     d.LineWidth,
		LineDasharray: cloneFloats(d.LineDasharray),
	}

	if d.Center != nil {
		if !validPoint(*d.Center) {
			return PartialZone{}, invalid("center", ErrInvalidCoordinates, "center %v is outside [-180,180]x[-90,90]", *d.Center)
		}
		if !(d.RadiusMeters > 0) {
			return PartialZone{}, invalid("radiusMeters", ErrInvalidRadius, "radius must be greater than zero")
		}
		center := *d.Center
		radius := d.RadiusMeters
		raw.Center = &center
		raw.RadiusMeters = &radius
		return raw, nil
	}

	polygon, err := parseDraftCoordinates(d.Coordinates)
	if err != nil {
		return PartialZone{}, invalid("coordinates", ErrInvalidCoordinates, "%v", err)
	}
	raw.Coordinates = polygon
	return raw, nil
}

func parseDraftCoordinates(raw json.RawMessage) (geo.Polygon, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("a center and radius or a polygon is required")
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("unreadable coordinates: %w", err)
		}
		raw = bytes.TrimSpace([]byte(text))
	}

	var polygon geo.Polygon
	if err := json.Unmarshal(raw, &polygon); err != nil {
		return nil, fmt.Errorf("coordinates must be a JSON array of rings: %w", err)
	}
	if len(polygon.OuterRing()) == 0 {
		return nil, errors.New("coordinates must contain a non-empty outer ring")
	}
	return polygon, nil
}

func validPoint(p geo.Point) bool {
	return p.Lon() >= -180 && p.Lon() <= 180 && p.Lat() >= -90 && p.Lat() <= 90
}

// EditDraft pre-fills a draft from an existing zone. Legacy polygons without a center
// get the first point of their outer ring as an approximate center.
func EditDraft(z Zone) Draft {
	d := Draft{
		ID:            z.ID,
		Name:          z.Name,
		MembraneState: string(z.MembraneState),
		RadiusMeters:  DefaultEditRadius,
		FillColor:     z.FillColor,
		FillPattern:   z.FillPattern,
		LineColor:     z.LineColor,
		LineDasharray: cloneFloats(z.LineDasharray),
	}
	opacity, width := z.FillOpacity, z.LineWidth
	d.FillOpacity = &opacity
	d.LineWidth = &width

	if z.RadiusMeters != nil && *z.RadiusMeters > 0 {
		d.RadiusMeters = *z.RadiusMeters
	}
	if z.Center != nil {
		c := *z.Center
		d.Center = &c
	} else if c, ok := z.Coordinates.ApproxCenter(); ok {
		d.Center = &c
	}
	if z.Coordinates != nil {
		if data, err := json.Marshal(z.Coordinates); err == nil {
			d.Coordinates = data
		}
	}
	return d
}
