package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/crismap/server/internal/dataset"
	"github.com/crismap/server/internal/kvstore"
	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/performance"
	"github.com/crismap/server/internal/render"
	"github.com/crismap/server/internal/testutil"
	"github.com/crismap/server/internal/zones"
)

// testApp is the whole server wired over an in-memory store
type testApp struct {
	kv       *kvstore.Memory
	zones    *zones.Store
	registry *locations.Registry
	scene    *render.Scene
	sync     *render.Sync
	hub      *SceneHub
	profiler *performance.Profiler
	metrics  *prometheus.Registry
	helper   *testutil.HTTPTestHelper
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app := &testApp{kv: kvstore.NewMemory(), metrics: prometheus.NewRegistry()}

	var err error
	app.profiler, err = performance.NewProfiler(true, app.metrics)
	require.NoError(t, err)

	app.zones = zones.NewStore(zones.StoreConfig{
		KV:       app.kv,
		Defaults: testutil.ShippedZones(),
		Profiler: app.profiler,
	})

	app.scene = render.NewScene()
	_, err = render.RegisterPatterns(app.scene, "")
	require.NoError(t, err)
	app.sync = render.NewSync(app.scene, true, nil, app.profiler)

	app.hub = NewSceneHub(app.scene, app.sync, []string{"*"}, nil)
	go app.hub.Run(ctx)

	BindScene(app.zones, app.sync, app.hub)
	app.zones.Load(ctx)

	app.registry = locations.NewRegistry(locations.RegistryConfig{
		KV:      app.kv,
		Zones:   app.zones,
		Shipped: testutil.ShippedLocations(),
	})
	app.registry.Load(ctx)

	handler := NewRouter(RouterConfig{
		Zones:           app.zones,
		Locations:       app.registry,
		Dataset:         dataset.NewService(app.zones, app.registry, nil),
		Sync:            app.sync,
		Hub:             app.hub,
		Profiler:        app.profiler,
		Gatherer:        app.metrics,
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimit:       10000,
		RateLimitWindow: time.Minute,
	})
	app.helper = testutil.NewHTTPTestHelper(handler)
	return app
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "body: %s", rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	decodeBody(t, rr, &body)
	return body
}
