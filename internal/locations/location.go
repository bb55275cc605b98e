// Package locations keeps the map markers, their connections and their link to a membrane zone.
package locations

import (
	"regexp"
	"strings"

	"github.com/crismap/server/internal/geo"
)

// Type is a marker category
type Type string

const (
	TypeBase       Type = "base"
	TypeHouse      Type = "casa"
	TypeShop       Type = "loja"
	TypeParanormal Type = "paranormal"
)

const (
	// DefaultDescription fills an empty description
	DefaultDescription = "Sem descricao"
	// DefaultInfo fills empty additional data
	DefaultInfo = "Sem dados adicionais"
	// DefaultParanormalThreat is used for paranormal records without a threat level
	DefaultParanormalThreat = 2
	// MaxThreat is the highest threat level
	MaxThreat = 3
)

// Location is a marker on the map
type Location struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Name           string    `json:"name"`
	Coords         geo.Point `json:"coords"`
	Description    string    `json:"description"`
	Info           string    `json:"info"`
	Threat         int       `json:"threat"`
	MembraneZoneID string    `json:"membraneZoneId,omitempty"`
}

// NormalizeType maps legacy categories onto the current ones: "agente" is a house and
// every "paranormal*" variant is paranormal.
func NormalizeType(raw string) Type {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case t == "agente":
		return TypeHouse
	case strings.HasPrefix(t, "paranormal"):
		return TypeParanormal
	}
	return Type(t)
}

// Valid reports whether t is a known category
func (t Type) Valid() bool {
	switch t {
	case TypeBase, TypeHouse, TypeShop, TypeParanormal:
		return true
	}
	return false
}

var leadingIcon = regexp.MustCompile(`^[\p{So}\p{Sk}\x{FE0F}\x{200D}]+\s+`)

// StripLeadingIcon removes a leading emoji and the whitespace after it ("🏢 Base" -> "Base")
func StripLeadingIcon(name string) string {
	return leadingIcon.ReplaceAllString(name, "")
}

// Normalize fixes up a location read from any source. Only paranormal records carry a
// threat level; a paranormal record without one gets DefaultParanormalThreat.
func Normalize(l Location) Location {
	l.Type = NormalizeType(string(l.Type))
	l.Name = StripLeadingIcon(strings.TrimSpace(l.Name))
	l.Coords = l.Coords.Wrapped()
	if l.Type != TypeParanormal {
		l.Threat = 0
	} else if l.Threat == 0 {
		l.Threat = DefaultParanormalThreat
	}
	return l
}

// Connection is a labeled line between two locations
type Connection struct {
	ID     string `json:"id"`
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Color  string `json:"color"`
	Label  string `json:"label"`
}

const (
	// DefaultConnectionColor is used when a connection has no color
	DefaultConnectionColor = "#00FF00"
	// DefaultConnectionLabel is used when a connection has no label
	DefaultConnectionLabel = "Conexao"
)

func normalizeConnection(c Connection) Connection {
	if c.Color == "" {
		c.Color = DefaultConnectionColor
	}
	if strings.TrimSpace(c.Label) == "" {
		c.Label = DefaultConnectionLabel
	}
	return c
}

// DefaultEdit holds the per-field overrides a user made to a shipped location.
// Nil fields leave the shipped value untouched.
type DefaultEdit struct {
	Type           *Type   `json:"type,omitempty"`
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Info           *string `json:"info,omitempty"`
	Threat         *int    `json:"threat,omitempty"`
	MembraneZoneID *string `json:"membraneZoneId,omitempty"`
	Deleted        bool    `json:"deleted,omitempty"`
}

// Apply overlays the edit onto l
func (e DefaultEdit) Apply(l Location) Location {
	if e.Type != nil {
		l.Type = *e.Type
	}
	if e.Name != nil {
		l.Name = *e.Name
	}
	if e.Description != nil {
		l.Description = *e.Description
	}
	if e.Info != nil {
		l.Info = *e.Info
	}
	if e.Threat != nil {
		l.Threat = *e.Threat
	}
	if e.MembraneZoneID != nil {
		l.MembraneZoneID = *e.MembraneZoneID
	}
	return l
}

// editFrom captures every editable field of l
func editFrom(l Location, withZone bool) DefaultEdit {
	e := DefaultEdit{
		Type:        &l.Type,
		Name:        &l.Name,
		Description: &l.Description,
		Info:        &l.Info,
		Threat:      &l.Threat,
	}
	if withZone {
		e.MembraneZoneID = &l.MembraneZoneID
	}
	return e
}
