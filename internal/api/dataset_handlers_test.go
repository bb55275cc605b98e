package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crismap/server/internal/dataset"
)

func TestExport(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRequest(http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ExportFilename)

	var doc dataset.Document
	decodeBody(t, rr, &doc)
	assert.Len(t, doc.Zones, 2)
	assert.Len(t, doc.Connections, 1)
	assert.Empty(t, doc.Defaults)
	assert.NotEmpty(t, doc.Timestamp)

	rr = app.helper.MakeRequest(http.MethodGet, "/api/export?defaults=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &doc)
	assert.Len(t, doc.Defaults, 2)
}

func TestImport(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/import", `{
		"custom": [{"id": "loc-a", "type": "casa", "name": "Casa", "coords": [-47, -9]}],
		"connections": [],
		"zones": [
			{"id": 7, "name": "Importada", "membraneState": "arruinada", "center": [-46, -8], "radiusMeters": "900"},
			"not a zone"
		]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result dataset.ImportResult
	decodeBody(t, rr, &result)
	assert.Nil(t, result.Defaults)
	require.NotNil(t, result.Custom)
	assert.Equal(t, 1, *result.Custom)
	require.NotNil(t, result.Connections)
	assert.Equal(t, 0, *result.Connections)
	require.NotNil(t, result.Zones)
	assert.Equal(t, 1, *result.Zones)

	zone, ok := app.zones.Get("7")
	require.True(t, ok)
	assert.Equal(t, 900.0, *zone.RadiusMeters)
	assert.Equal(t, []string{"7"}, app.sync.Rendered())
	assert.Empty(t, app.registry.Connections())
	assert.Len(t, app.registry.Custom(), 1)
}

func TestImport_ZonesNotAnArray(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/import", `{"zones": {"id": "z9"}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var result dataset.ImportResult
	decodeBody(t, rr, &result)
	assert.Nil(t, result.Zones)
	assert.Len(t, app.zones.Zones(), 2, "the zone list is left untouched")
}

func TestImport_InvalidJSON(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/import", `[1,2`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.helper.MakeRequest(http.MethodGet, "/api/import", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestImport_NonFiniteRadiusIsDropped(t *testing.T) {
	app := newTestApp(t)

	rr := app.helper.MakeRawRequest(http.MethodPost, "/api/import", `{
		"zones": [{"id": "bad", "center": [0, 0], "radiusMeters": "NaN"}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = app.helper.MakeRequest(http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"bad"`)

	rr = app.helper.MakeRequest(http.MethodPost, "/api/zones", map[string]interface{}{
		"id": "z2", "center": []float64{-46, -8}, "radiusMeters": 100,
	})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}
