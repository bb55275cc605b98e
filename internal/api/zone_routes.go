package api

import (
	"net/http"
	"strings"
)

// SetupZoneRoutes registers zone management routes
func SetupZoneRoutes(mux *http.ServeMux, handlers *ZoneHandlers, middleware func(http.Handler) http.Handler) {
	zoneHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/zones")
		path = strings.Trim(path, "/")
		id, sub, _ := strings.Cut(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "":
			handlers.ListZones(w, r)
		case r.Method == http.MethodPost && path == "":
			handlers.CreateZone(w, r)
		case r.Method == http.MethodPost && path == "restore":
			handlers.RestoreDefaults(w, r)
		case r.Method == http.MethodGet && sub == "draft":
			handlers.GetZoneDraft(w, r, id)
		case sub != "":
			http.NotFound(w, r)
		case r.Method == http.MethodGet:
			handlers.GetZone(w, r, id)
		case r.Method == http.MethodPut:
			handlers.UpdateZone(w, r, id)
		case r.Method == http.MethodDelete:
			handlers.DeleteZone(w, r, id)
		default:
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	handler := middleware(zoneHandler)
	mux.Handle("/api/zones/", handler)
	mux.Handle("/api/zones", handler)
	mux.Handle("/api/states", middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handlers.ListStates(w, r)
	})))
}
