package api

import (
	"net/http"
	"strings"
)

// SetupLocationRoutes registers location and connection routes
func SetupLocationRoutes(mux *http.ServeMux, handlers *LocationHandlers, middleware func(http.Handler) http.Handler) {
	locationHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/locations")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "":
			handlers.ListLocations(w, r)
		case r.Method == http.MethodPost && path == "":
			handlers.CreateLocation(w, r)
		case r.Method == http.MethodGet && path == "features":
			handlers.LocationFeatures(w, r)
		case path == "" || strings.Contains(path, "/"):
			http.NotFound(w, r)
		case r.Method == http.MethodPut:
			handlers.UpdateLocation(w, r, path)
		case r.Method == http.MethodDelete:
			handlers.DeleteLocation(w, r, path)
		default:
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	connectionHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/connections")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "":
			handlers.ListConnections(w, r)
		case r.Method == http.MethodPost && path == "":
			handlers.CreateConnection(w, r)
		case r.Method == http.MethodGet && path == "features":
			handlers.ConnectionFeatures(w, r)
		case r.Method == http.MethodDelete && path != "" && !strings.Contains(path, "/"):
			handlers.DeleteConnection(w, r, path)
		default:
			http.NotFound(w, r)
		}
	})

	locations := middleware(locationHandler)
	mux.Handle("/api/locations/", locations)
	mux.Handle("/api/locations", locations)

	connections := middleware(connectionHandler)
	mux.Handle("/api/connections/", connections)
	mux.Handle("/api/connections", connections)
}
