package locations

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/kvstore"
	"github.com/crismap/server/internal/zones"
)

type fixture struct {
	kv       kvstore.Store
	zones    *zones.Store
	registry *Registry
}

func shipped() Shipped {
	return Shipped{
		Defaults: []Location{
			{Type: "base", Name: "🏢 Base Principal", Coords: geo.Point{-48, -10}, Description: "HQ"},
			{ID: "ghost", Type: "paranormal", Name: "Casa Assombrada", Coords: geo.Point{-47, -11}},
		},
		Connections: []Connection{{FromID: "default-0", ToID: "ghost"}},
	}
}

func newFixture(t *testing.T, kv kvstore.Store) *fixture {
	t.Helper()
	if kv == nil {
		kv = kvstore.NewMemory()
	}
	store := zones.NewStore(zones.StoreConfig{KV: kv})
	store.Load(context.Background())
	reg := NewRegistry(RegistryConfig{KV: kv, Zones: store, Shipped: shipped()})
	reg.Load(context.Background())
	return &fixture{kv: kv, zones: store, registry: reg}
}

func TestRegistry_ShippedDefaults(t *testing.T) {
	f := newFixture(t, nil)

	all := f.registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "default-0", all[0].ID)
	assert.Equal(t, "Base Principal", all[0].Name)
	assert.Equal(t, 0, all[0].Threat)
	assert.Equal(t, DefaultParanormalThreat, all[1].Threat)
	assert.True(t, f.registry.IsDefault("ghost"))

	conns := f.registry.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, "conn-default-0", conns[0].ID)
	assert.Equal(t, DefaultConnectionColor, conns[0].Color)
	assert.Equal(t, DefaultConnectionLabel, conns[0].Label)
}

func TestRegistry_RegisterWithMembrane(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	coords := geo.Point{-46.6, -23.5}
	loc, err := f.registry.Register(ctx, Draft{Type: "paranormal", Name: "Sinal", Coords: &coords, Threat: 3},
		&Membrane{State: "rompida", RadiusMeters: 300})
	require.NoError(t, err)

	assert.Contains(t, loc.ID, "loc-")
	assert.Equal(t, DefaultDescription, loc.Description)
	assert.Equal(t, DefaultInfo, loc.Info)
	assert.Equal(t, 3, loc.Threat)
	require.NotEmpty(t, loc.MembraneZoneID)

	zone, ok := f.zones.Get(loc.MembraneZoneID)
	require.True(t, ok)
	assert.Equal(t, "Membrana - Sinal", zone.Name)
	assert.Equal(t, coords, *zone.Center)
	assert.Len(t, zone.Coordinates.OuterRing(), geo.CircleSteps+1)

	// the persisted custom list keeps the link
	reloaded := NewRegistry(RegistryConfig{KV: f.kv, Zones: f.zones, Shipped: shipped()})
	reloaded.Load(ctx)
	got, ok := reloaded.Get(loc.ID)
	require.True(t, ok)
	assert.Equal(t, loc.MembraneZoneID, got.MembraneZoneID)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	coords := geo.Point{0, 0}

	tests := []struct {
		name     string
		draft    Draft
		membrane *Membrane
		wantErr  error
	}{
		{"missing name", Draft{Type: "base", Coords: &coords}, nil, ErrInvalidLocation},
		{"unknown type", Draft{Type: "castle", Name: "x", Coords: &coords}, nil, ErrInvalidLocation},
		{"missing coords", Draft{Type: "base", Name: "x"}, nil, ErrInvalidLocation},
		{"threat too high", Draft{Type: "paranormal", Name: "x", Coords: &coords, Threat: 9}, nil, ErrInvalidLocation},
		{"bad radius", Draft{Type: "base", Name: "x", Coords: &coords}, &Membrane{RadiusMeters: 0}, ErrInvalidRadius},
		{"latitude out of range", Draft{Type: "base", Name: "x", Coords: &geo.Point{10, 500}}, &Membrane{State: "rompida", RadiusMeters: 1000}, ErrInvalidLocation},
		{"latitude below range", Draft{Type: "base", Name: "x", Coords: &geo.Point{10, -90.5}}, nil, ErrInvalidLocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Register(ctx, tt.draft, tt.membrane)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Len(t, f.registry.All(), 2)
	assert.Empty(t, f.zones.Zones())
}

func TestRegistry_UpdateRejectsLatitude(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	coords := geo.Point{10, 10}
	loc, err := f.registry.Register(ctx, Draft{Type: "casa", Name: "Casa", Coords: &coords}, nil)
	require.NoError(t, err)

	bad := geo.Point{10, 500}
	_, _, err = f.registry.Update(ctx, loc.ID, Draft{Type: "casa", Name: "Casa", Coords: &bad},
		&Membrane{State: "rompida", RadiusMeters: 1000}, KeepZone)
	assert.True(t, errors.Is(err, ErrInvalidLocation), "got %v", err)
	assert.Empty(t, f.zones.Zones())

	got, ok := f.registry.Get(loc.ID)
	require.True(t, ok)
	assert.Equal(t, coords, got.Coords)
}

func TestRegistry_UpdateMembraneLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	coords := geo.Point{10, 10}
	draft := Draft{Type: "casa", Name: "Casa", Coords: &coords}

	loc, err := f.registry.Register(ctx, draft, nil)
	require.NoError(t, err)

	loc, action, err := f.registry.Update(ctx, loc.ID, draft, &Membrane{State: "intacta", RadiusMeters: 100}, KeepZone)
	require.NoError(t, err)
	assert.Equal(t, MembraneCreated, action)
	zoneID := loc.MembraneZoneID
	require.NotEmpty(t, zoneID)

	draft.Name = "Casa Nova"
	loc, action, err = f.registry.Update(ctx, loc.ID, draft, &Membrane{State: "arruinada", RadiusMeters: 200}, KeepZone)
	require.NoError(t, err)
	assert.Equal(t, MembraneUpdated, action)
	assert.Equal(t, zoneID, loc.MembraneZoneID)
	zone, _ := f.zones.Get(zoneID)
	assert.Equal(t, "Membrana - Casa Nova", zone.Name)
	assert.Equal(t, 200.0, *zone.RadiusMeters)

	loc, action, err = f.registry.Update(ctx, loc.ID, draft, nil, KeepZone)
	require.NoError(t, err)
	assert.Equal(t, MembraneUnlinked, action)
	assert.Empty(t, loc.MembraneZoneID)
	_, ok := f.zones.Get(zoneID)
	assert.True(t, ok, "unlinking keeps the zone")
}

func TestRegistry_UpdateRemovesZone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	coords := geo.Point{10, 10}
	draft := Draft{Type: "casa", Name: "Casa", Coords: &coords}

	loc, err := f.registry.Register(ctx, draft, &Membrane{RadiusMeters: 100})
	require.NoError(t, err)
	zoneID := loc.MembraneZoneID

	loc, action, err := f.registry.Update(ctx, loc.ID, draft, nil, RemoveZone)
	require.NoError(t, err)
	assert.Equal(t, MembraneRemoved, action)
	assert.Empty(t, loc.MembraneZoneID)
	_, ok := f.zones.Get(zoneID)
	assert.False(t, ok)
}

func TestRegistry_UpdateDefaultStoresEdit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, _, err := f.registry.Update(ctx, "ghost", Draft{Type: "paranormal", Name: "Renomeada", Threat: 1}, nil, KeepZone)
	require.NoError(t, err)

	data, err := f.kv.Get(ctx, DefaultEditsKey)
	require.NoError(t, err)
	var edits map[string]DefaultEdit
	require.NoError(t, json.Unmarshal([]byte(data), &edits))
	require.Contains(t, edits, "ghost")
	assert.Equal(t, "Renomeada", *edits["ghost"].Name)

	reloaded := NewRegistry(RegistryConfig{KV: f.kv, Zones: f.zones, Shipped: shipped()})
	reloaded.Load(ctx)
	got, _ := reloaded.Get("ghost")
	assert.Equal(t, "Renomeada", got.Name)
	assert.Equal(t, 1, got.Threat)
	assert.Equal(t, geo.Point{-47, -11}, got.Coords)
}

func TestRegistry_UpdateNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, _, err := f.registry.Update(context.Background(), "nope", Draft{Type: "base", Name: "x"}, nil, KeepZone)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestRegistry_DeleteKeepsZoneAndDropsConnections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	coords := geo.Point{1, 1}

	loc, err := f.registry.Register(ctx, Draft{Type: "loja", Name: "Loja", Coords: &coords}, &Membrane{RadiusMeters: 50})
	require.NoError(t, err)
	_, err = f.registry.AddConnection(ctx, ConnectionDraft{FromID: loc.ID, ToID: "ghost"})
	require.NoError(t, err)
	require.Len(t, f.registry.Connections(), 2)

	removed, err := f.registry.Delete(ctx, loc.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Len(t, f.registry.Connections(), 1)
	_, ok := f.zones.Get(loc.MembraneZoneID)
	assert.True(t, ok)

	removed, err = f.registry.Delete(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, f.registry.Connections())

	reloaded := NewRegistry(RegistryConfig{KV: f.kv, Zones: f.zones, Shipped: shipped()})
	reloaded.Load(ctx)
	_, ok = reloaded.Get("ghost")
	assert.False(t, ok, "deleted default stays deleted")
}

func TestRegistry_Connections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.registry.AddConnection(ctx, ConnectionDraft{FromID: "ghost", ToID: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidConnection)
	_, err = f.registry.AddConnection(ctx, ConnectionDraft{FromID: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidConnection)

	conn, err := f.registry.AddConnection(ctx, ConnectionDraft{FromID: "ghost", ToID: "default-0", Label: "Rota", Color: "#FF0000"})
	require.NoError(t, err)
	assert.Equal(t, "Rota", conn.Label)

	features := f.registry.Features()
	assert.Equal(t, "FeatureCollection", features.Type)
	require.Len(t, features.Features, 2)
	assert.Equal(t, "LineString", features.Features[1].Geometry.Type)

	removed, err := f.registry.RemoveConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = f.registry.RemoveConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_FeaturesSkipDanglingConnections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	require.NoError(t, f.registry.ReplaceConnections(ctx, []Connection{{FromID: "ghost", ToID: "missing"}}))

	assert.Empty(t, f.registry.Features().Features)
	assert.Len(t, f.registry.Markers().Features, 2)
}

func TestRegistry_ImportDefaultsReplacesEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, _, err := f.registry.Update(ctx, "default-0", Draft{Type: "base", Name: "Edited"}, nil, KeepZone)
	require.NoError(t, err)

	err = f.registry.ImportDefaults(ctx, []Location{
		{ID: "ghost", Type: "paranormal", Name: "👻 Importada", Threat: 3},
		{Name: "no id is ignored"},
	})
	require.NoError(t, err)

	base, _ := f.registry.Get("default-0")
	assert.Equal(t, "Base Principal", base.Name, "previous edits are discarded")
	ghost, _ := f.registry.Get("ghost")
	assert.Equal(t, "Importada", ghost.Name)
	assert.Equal(t, 3, ghost.Threat)
}

func TestRegistry_LoadIgnoresMalformedStorage(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(ctx, CustomKey, "{broken"))
	require.NoError(t, kv.Set(ctx, DefaultEditsKey, "[]"))

	f := newFixture(t, kv)
	assert.Len(t, f.registry.All(), 2)
	assert.Empty(t, f.registry.Custom())
}
