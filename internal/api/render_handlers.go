package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/render"
	"github.com/crismap/server/internal/zones"
)

// BindScene rebuilds the rendered layers and pushes the scene to clients after
// every change to the effective zone list. hub may be nil.
func BindScene(store *zones.Store, renderSync *render.Sync, hub *SceneHub) {
	store.OnChange(func(list []zones.Zone) {
		renderSync.Rebuild(list)
		if hub != nil {
			hub.BroadcastScene()
		}
	})
}

// RenderHandlers exposes the rendered scene and the membrane visibility toggle
type RenderHandlers struct {
	sync   *render.Sync
	hub    *SceneHub
	logger *zap.Logger
}

// NewRenderHandlers creates a new RenderHandlers instance
func NewRenderHandlers(renderSync *render.Sync, hub *SceneHub, logger *zap.Logger) *RenderHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderHandlers{sync: renderSync, hub: hub, logger: logger}
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// GetVisibility handles GET /api/render/visibility
func (h *RenderHandlers) GetVisibility(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"visible": h.sync.Visible()})
}

// SetVisibility handles PUT /api/render/visibility
func (h *RenderHandlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Visible == nil {
		sendValidationError(w, "visible", "is required")
		return
	}
	if err := h.sync.SetVisible(*req.Visible); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.hub.BroadcastScene()
	writeJSON(w, http.StatusOK, map[string]bool{"visible": *req.Visible})
}

// GetScene handles GET /api/render/scene
func (h *RenderHandlers) GetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Payload())
}

// SetupRenderRoutes registers render routes
func SetupRenderRoutes(mux *http.ServeMux, handlers *RenderHandlers, middleware func(http.Handler) http.Handler) {
	mux.Handle("/api/render/", middleware(GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/render/visibility" && r.Method == http.MethodGet:
			handlers.GetVisibility(w, r)
		case r.URL.Path == "/api/render/visibility" && r.Method == http.MethodPut:
			handlers.SetVisibility(w, r)
		case r.URL.Path == "/api/render/scene" && r.Method == http.MethodGet:
			handlers.GetScene(w, r)
		default:
			http.NotFound(w, r)
		}
	}))))
}
