package testutil

import (
	"time"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/membrane"
	"github.com/crismap/server/internal/zones"
)

// RandomString generates a random string of specified length
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	seed := time.Now().UnixNano()
	for i := range b {
		seed = seed*1103515245 + 12345 // Simple LCG
		idx := int(seed % int64(len(charset)))
		if idx < 0 {
			idx = -idx
		}
		b[i] = charset[idx]
	}
	return string(b)
}

// RandomZoneID generates a zone id unlikely to collide with generated ones
func RandomZoneID() string {
	return "test-zone-" + RandomString(8)
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// CircleZone returns a raw center-based zone record
func CircleZone(id string, center geo.Point, radiusMeters float64, state membrane.State) zones.PartialZone {
	return zones.PartialZone{
		ID:            id,
		Name:          "Zona " + id,
		MembraneState: string(state),
		Center:        &center,
		RadiusMeters:  Float(radiusMeters),
	}
}

// LegacyZone returns a raw polygon-only zone record, as older snapshots stored them
func LegacyZone(id string, ring geo.Ring) zones.PartialZone {
	return zones.PartialZone{
		ID:            id,
		Name:          "Zona " + id,
		MembraneState: string(membrane.Intact),
		Coordinates:   geo.Polygon{ring},
	}
}

// TriangleRing is a small closed ring near the default map center
func TriangleRing() geo.Ring {
	return geo.Ring{{-48, -10}, {-47.9, -10}, {-47.95, -9.9}, {-48, -10}}
}

// ShippedZones returns the default zone set used across tests: one circle and one
// legacy polygon
func ShippedZones() []zones.PartialZone {
	return []zones.PartialZone{
		CircleZone("z1", geo.Point{-48, -10}, 500, membrane.Damaged),
		LegacyZone("legacy", TriangleRing()),
	}
}

// ShippedLocations returns a shipped location baseline with one connection
func ShippedLocations() locations.Shipped {
	return locations.Shipped{
		Defaults: []locations.Location{
			{ID: "base-1", Type: locations.TypeBase, Name: "Base Central", Coords: geo.Point{-48.1, -10.1}},
			{ID: "anomalia-1", Type: locations.TypeParanormal, Name: "Anomalia", Coords: geo.Point{-47.8, -9.8}, Threat: 3},
		},
		Connections: []locations.Connection{
			{ID: "conn-1", FromID: "base-1", ToID: "anomalia-1"},
		},
	}
}
