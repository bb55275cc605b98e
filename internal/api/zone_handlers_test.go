package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crismap/server/internal/geo"
	"github.com/crismap/server/internal/membrane"
	"github.com/crismap/server/internal/render"
	"github.com/crismap/server/internal/zones"
)

func TestListZones(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body zoneListResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "state", body.StyleMode)
	assert.Equal(t, "z1", body.Zones[0].ID)
	assert.Len(t, body.Zones[0].Coordinates.OuterRing(), geo.CircleSteps+1)
	assert.ElementsMatch(t, []string{"z1", "legacy"}, app.sync.Rendered())
}

func TestCreateZone(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodPost, "/api/zones", map[string]interface{}{
		"name":          "Nova",
		"membraneState": "Rompida",
		"center":        []float64{-47, -9},
		"radiusMeters":  300,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var zone zones.Zone
	decodeBody(t, rr, &zone)
	assert.True(t, strings.HasPrefix(zone.ID, "zone-"))
	assert.Equal(t, membrane.Ruptured, zone.MembraneState)
	assert.True(t, zone.Coordinates.OuterRing().IsClosed())

	// Persisted, rendered and counted
	stored, err := app.kv.Get(context.Background(), zones.DefaultStorageKey)
	require.NoError(t, err)
	assert.Contains(t, stored, zone.ID)
	assert.Contains(t, app.sync.Rendered(), zone.ID)
	assert.True(t, app.scene.HasLayer(render.FillLayerID(zone.ID)))
	assert.Len(t, app.zones.Zones(), 3)
}

func TestCreateZone_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{
			name:  "zero radius",
			body:  map[string]interface{}{"center": []float64{-47, -9}, "radiusMeters": 0},
			field: "radiusMeters",
		},
		{
			name:  "center out of range",
			body:  map[string]interface{}{"center": []float64{-247, -9}, "radiusMeters": 10},
			field: "center",
		},
		{
			name:  "no geometry",
			body:  map[string]interface{}{"name": "Sem forma"},
			field: "coordinates",
		},
		{
			name:  "bad color",
			body:  map[string]interface{}{"center": []float64{-47, -9}, "radiusMeters": 10, "fillColor": "red"},
			field: "FillColor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			rr := app.helper.MakeRequest(http.MethodPost, "/api/zones", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			body := decodeError(t, rr)
			assert.Equal(t, "ValidationError", body.Code)
			assert.Equal(t, tt.field, body.Field)
			assert.Len(t, app.zones.Zones(), 2)
		})
	}
}

func TestCreateZone_FromPolygonText(t *testing.T) {
	app := newTestApp(t)

	// The form submits coordinates as JSON text
	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/zones",
		`{"name":"Desenhada","coordinates":"[[[-48,-10],[-47,-10],[-47.5,-9],[-48,-10]]]"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var zone zones.Zone
	decodeBody(t, rr, &zone)
	assert.Nil(t, zone.Center)
	assert.Len(t, zone.Coordinates.OuterRing(), 4)
	assert.Equal(t, membrane.DefaultState, zone.MembraneState)
}

func TestCreateZone_DuplicateID(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodPost, "/api/zones", map[string]interface{}{
		"id":           "z1",
		"center":       []float64{-47, -9},
		"radiusMeters": 10,
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ZoneExists", decodeError(t, rr).Code)
}

func TestCreateZone_InvalidJSON(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/zones", `{"center":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "InvalidJSON", decodeError(t, rr).Code)
}

func TestGetZone(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodGet, "/api/zones/z1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var zone zones.Zone
	decodeBody(t, rr, &zone)
	assert.Equal(t, membrane.Damaged, zone.MembraneState)

	rr = app.helper.MakeRequest(http.MethodGet, "/api/zones/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetZoneDraft(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodGet, "/api/zones/legacy/draft", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var draft zones.Draft
	decodeBody(t, rr, &draft)
	require.NotNil(t, draft.Center)
	assert.Equal(t, geo.Point{-48, -10}, *draft.Center)
	assert.Equal(t, zones.DefaultEditRadius, draft.RadiusMeters)

	var polygon geo.Polygon
	require.NoError(t, json.Unmarshal(draft.Coordinates, &polygon))
	assert.Len(t, polygon.OuterRing(), 4)

	rr = app.helper.MakeRequest(http.MethodGet, "/api/zones/z1/other", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateZone(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodPut, "/api/zones/z1", map[string]interface{}{
		"name":          "Renomeada",
		"membraneState": "intacta",
		"center":        []float64{-48, -10},
		"radiusMeters":  800,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var zone zones.Zone
	decodeBody(t, rr, &zone)
	assert.Equal(t, "z1", zone.ID)
	assert.Equal(t, "Renomeada", zone.Name)
	assert.Equal(t, 800.0, *zone.RadiusMeters)

	layer, ok := app.scene.Layer(render.BorderLayerID("z1"))
	require.True(t, ok)
	assert.Equal(t, membrane.StyleFor(membrane.Intact).LineWidth, layer.Paint["line-width"])
}

func TestUpdateZone_Missing(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodPut, "/api/zones/missing", map[string]interface{}{
		"center":       []float64{-48, -10},
		"radiusMeters": 800,
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// The snapshot is written even though nothing matched
	_, err := app.kv.Get(context.Background(), zones.DefaultStorageKey)
	assert.NoError(t, err)
}

func TestDeleteZone(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodDelete, "/api/zones/z1", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotContains(t, app.sync.Rendered(), "z1")
	assert.False(t, app.scene.HasSource(render.SourceID("z1")))

	rr = app.helper.MakeRequest(http.MethodDelete, "/api/zones/z1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRestoreDefaults(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodDelete, "/api/zones/z1", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = app.helper.MakeRequest(http.MethodPost, "/api/zones/restore", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "ConfirmationRequired", decodeError(t, rr).Code)
	assert.Len(t, app.zones.Zones(), 1)

	rr = app.helper.MakeRequest(http.MethodPost, "/api/zones/restore?confirm=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body zoneListResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, 2, body.Count)

	_, err := app.kv.Get(context.Background(), zones.DefaultStorageKey)
	assert.Error(t, err, "restoring defaults clears the snapshot")
}

func TestListStates(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodGet, "/api/states", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var states []stateResponse
	decodeBody(t, rr, &states)
	require.Len(t, states, 5)
	assert.Equal(t, membrane.Intact, states[0].Key)
	assert.Equal(t, 5, states[4].Level)
	assert.Equal(t, "Rompida", states[4].Style.Label)
}

func TestZoneRoutes_MethodNotAllowed(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodPatch, "/api/zones/z1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = app.helper.MakeRequest(http.MethodPost, "/api/states", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
