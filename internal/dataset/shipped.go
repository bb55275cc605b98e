// Package dataset reads the shipped default dataset and moves the whole map state in and
// out as a single JSON document.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/zones"
)

// Shipped is the read-only default dataset bundled with the server
type Shipped struct {
	Defaults    []locations.Location   `json:"defaults"`
	Locations   []locations.Location   `json:"locations"` // older files use this key
	Custom      []locations.Location   `json:"custom"`
	Connections []locations.Connection `json:"connections"`
	Zones       json.RawMessage        `json:"zones"`
}

// LoadShipped reads the dataset at path. An empty path yields an empty dataset.
func LoadShipped(path string) (*Shipped, error) {
	if path == "" {
		return &Shipped{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read default dataset: %w", err)
	}
	return ParseShipped(data)
}

// ParseShipped decodes a dataset document
func ParseShipped(data []byte) (*Shipped, error) {
	var s Shipped
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode default dataset: %w", err)
	}
	return &s, nil
}

// LocationDefaults returns the shipped locations, preferring "defaults" over "locations"
func (s *Shipped) LocationDefaults() []locations.Location {
	if s.Defaults != nil {
		return s.Defaults
	}
	return s.Locations
}

// ZoneDefaults returns the shipped zone records. A "zones" value that is not an array
// yields no zones; elements that are not objects are dropped.
func (s *Shipped) ZoneDefaults() []zones.PartialZone {
	if len(bytes.TrimSpace(s.Zones)) == 0 {
		return nil
	}
	records, _, err := zones.DecodeSnapshot(s.Zones)
	if err != nil {
		return nil
	}
	return records
}

// ForRegistry returns the location parts of the dataset
func (s *Shipped) ForRegistry() locations.Shipped {
	return locations.Shipped{
		Defaults:    s.LocationDefaults(),
		Custom:      s.Custom,
		Connections: s.Connections,
	}
}
