package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/crismap/server/internal/geo"
)

// Connections returns every connection
func (r *Registry) Connections() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneConnections(r.connections)
}

// AddConnection links two distinct locations
func (r *Registry) AddConnection(ctx context.Context, d ConnectionDraft) (Connection, error) {
	from, to := strings.TrimSpace(d.FromID), strings.TrimSpace(d.ToID)
	if from == "" || to == "" {
		return Connection{}, fmt.Errorf("%w: origin and destination are required", ErrInvalidConnection)
	}
	if from == to {
		return Connection{}, fmt.Errorf("%w: origin and destination must differ", ErrInvalidConnection)
	}
	if err := r.validate.Struct(d); err != nil {
		return Connection{}, fmt.Errorf("%w: %w", ErrInvalidConnection, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn := normalizeConnection(Connection{
		ID:     r.newID("conn-"),
		FromID: from,
		ToID:   to,
		Color:  d.Color,
		Label:  strings.TrimSpace(d.Label),
	})
	r.connections = append(r.connections, conn)
	return conn, r.persist(ctx, ConnectionsKey, r.connections)
}

// RemoveConnection deletes a connection and reports whether it existed
func (r *Registry) RemoveConnection(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range r.connections {
		if c.ID == id {
			r.connections = append(r.connections[:i], r.connections[i+1:]...)
			return true, r.persist(ctx, ConnectionsKey, r.connections)
		}
	}
	return false, nil
}

// ReplaceConnections replaces every connection
func (r *Registry) ReplaceConnections(ctx context.Context, records []Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = r.normalizeConnections(records)
	return r.persist(ctx, ConnectionsKey, r.connections)
}

// Features returns a line feature for each connection whose endpoints both exist
func (r *Registry) Features() geo.FeatureCollection {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]Location)
	for _, l := range r.all() {
		byID[l.ID] = l
	}

	var features []geo.Feature
	for _, c := range r.connections {
		from, okFrom := byID[c.FromID]
		to, okTo := byID[c.ToID]
		if !okFrom || !okTo {
			continue
		}
		features = append(features, geo.NewLineFeature(geo.Ring{from.Coords, to.Coords}, map[string]interface{}{
			"id":    c.ID,
			"color": c.Color,
			"label": c.Label,
		}))
	}
	return geo.NewFeatureCollection(features)
}

// Markers returns a point feature for every location
func (r *Registry) Markers() geo.FeatureCollection {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.all()
	features := make([]geo.Feature, 0, len(all))
	for _, l := range all {
		features = append(features, geo.NewPointFeature(l.Coords, map[string]interface{}{
			"id":             l.ID,
			"type":           string(l.Type),
			"name":           l.Name,
			"threat":         l.Threat,
			"membraneZoneId": l.MembraneZoneID,
		}))
	}
	return geo.NewFeatureCollection(features)
}

func cloneConnections(in []Connection) []Connection {
	out := make([]Connection, len(in))
	copy(out, in)
	return out
}
