package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/locations"
)

// LocationHandlers manages HTTP handlers for map locations and their connections
type LocationHandlers struct {
	registry *locations.Registry
	logger   *zap.Logger
}

// NewLocationHandlers creates a new LocationHandlers instance
func NewLocationHandlers(registry *locations.Registry, logger *zap.Logger) *LocationHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationHandlers{registry: registry, logger: logger}
}

// locationRequest is the location form. A null membrane disables it.
type locationRequest struct {
	locations.Draft
	Membrane *locations.Membrane `json:"membrane"`
}

type locationResponse struct {
	Location       locations.Location       `json:"location"`
	MembraneAction locations.MembraneAction `json:"membraneAction"`
}

// ListLocations handles GET /api/locations
func (h *LocationHandlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	all := h.registry.All()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"locations": all,
		"count":     len(all),
	})
}

// LocationFeatures handles GET /api/locations/features
func (h *LocationHandlers) LocationFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Markers())
}

// CreateLocation handles POST /api/locations
func (h *LocationHandlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	loc, err := h.registry.Register(r.Context(), req.Draft, req.Membrane)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	action := locations.MembraneNone
	if loc.MembraneZoneID != "" {
		action = locations.MembraneCreated
	}
	h.logger.Info("Location registered", zap.String("location_id", loc.ID), zap.String("type", string(loc.Type)))
	writeJSON(w, http.StatusCreated, locationResponse{Location: loc, MembraneAction: action})
}

// UpdateLocation handles PUT /api/locations/{id}. With remove_zone=true a disabled
// membrane also deletes its zone; otherwise the zone is only unlinked.
func (h *LocationHandlers) UpdateLocation(w http.ResponseWriter, r *http.Request, id string) {
	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	policy := locations.KeepZone
	if r.URL.Query().Get("remove_zone") == "true" {
		policy = locations.RemoveZone
	}
	loc, action, err := h.registry.Update(r.Context(), id, req.Draft, req.Membrane, policy)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, locationResponse{Location: loc, MembraneAction: action})
}

// DeleteLocation handles DELETE /api/locations/{id}
func (h *LocationHandlers) DeleteLocation(w http.ResponseWriter, r *http.Request, id string) {
	removed, err := h.registry.Delete(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !removed {
		sendError(w, http.StatusNotFound, "NotFound", "Location not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListConnections handles GET /api/connections
func (h *LocationHandlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": h.registry.Connections(),
	})
}

// ConnectionFeatures handles GET /api/connections/features
func (h *LocationHandlers) ConnectionFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Features())
}

// CreateConnection handles POST /api/connections
func (h *LocationHandlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var draft locations.ConnectionDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	conn, err := h.registry.AddConnection(r.Context(), draft)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// DeleteConnection handles DELETE /api/connections/{id}
func (h *LocationHandlers) DeleteConnection(w http.ResponseWriter, r *http.Request, id string) {
	removed, err := h.registry.RemoveConnection(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !removed {
		sendError(w, http.StatusNotFound, "NotFound", "Connection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
