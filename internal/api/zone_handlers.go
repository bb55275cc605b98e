package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/membrane"
	"github.com/crismap/server/internal/zones"
)

// ZoneHandlers manages HTTP handlers for membrane zones
type ZoneHandlers struct {
	store  *zones.Store
	logger *zap.Logger
}

// NewZoneHandlers creates a new ZoneHandlers instance
func NewZoneHandlers(store *zones.Store, logger *zap.Logger) *ZoneHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZoneHandlers{store: store, logger: logger}
}

type zoneListResponse struct {
	Zones     []zones.Zone `json:"zones"`
	Count     int          `json:"count"`
	StyleMode string       `json:"styleMode"`
}

type stateResponse struct {
	Key   membrane.State `json:"key"`
	Level int            `json:"level"`
	Style membrane.Style `json:"style"`
}

// ListZones handles GET /api/zones
func (h *ZoneHandlers) ListZones(w http.ResponseWriter, r *http.Request) {
	list := h.store.Zones()
	writeJSON(w, http.StatusOK, zoneListResponse{
		Zones:     list,
		Count:     len(list),
		StyleMode: h.store.Normalizer().Mode().String(),
	})
}

// CreateZone handles POST /api/zones
func (h *ZoneHandlers) CreateZone(w http.ResponseWriter, r *http.Request) {
	var draft zones.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	raw, err := draft.Build()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	zone, err := h.store.Create(r.Context(), raw)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("Zone created", zap.String("zone_id", zone.ID), zap.String("state", string(zone.MembraneState)))
	writeJSON(w, http.StatusCreated, zone)
}

// GetZone handles GET /api/zones/{id}
func (h *ZoneHandlers) GetZone(w http.ResponseWriter, r *http.Request, id string) {
	zone, ok := h.store.Get(id)
	if !ok {
		sendError(w, http.StatusNotFound, "NotFound", "Zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// GetZoneDraft handles GET /api/zones/{id}/draft, the form pre-fill for editing
func (h *ZoneHandlers) GetZoneDraft(w http.ResponseWriter, r *http.Request, id string) {
	zone, ok := h.store.Get(id)
	if !ok {
		sendError(w, http.StatusNotFound, "NotFound", "Zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zones.EditDraft(zone))
}

// UpdateZone handles PUT /api/zones/{id}. The record is replaced wholesale; an unknown
// id answers 404 but the snapshot is still persisted.
func (h *ZoneHandlers) UpdateZone(w http.ResponseWriter, r *http.Request, id string) {
	var draft zones.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	raw, err := draft.Build()
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	zone, found, err := h.store.Update(r.Context(), id, raw)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "NotFound", "Zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// DeleteZone handles DELETE /api/zones/{id}
func (h *ZoneHandlers) DeleteZone(w http.ResponseWriter, r *http.Request, id string) {
	removed, err := h.store.Delete(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	if !removed {
		sendError(w, http.StatusNotFound, "NotFound", "Zone not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreDefaults handles POST /api/zones/restore?confirm=true
func (h *ZoneHandlers) RestoreDefaults(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := h.store.RestoreDefaults(r.Context(), confirmed); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	h.logger.Info("Default zones restored")
	h.ListZones(w, r)
}

// ListStates handles GET /api/states
func (h *ZoneHandlers) ListStates(w http.ResponseWriter, r *http.Request) {
	states := membrane.States()
	out := make([]stateResponse, 0, len(states))
	for _, state := range states {
		out = append(out, stateResponse{Key: state, Level: state.Level(), Style: membrane.StyleFor(state)})
	}
	writeJSON(w, http.StatusOK, out)
}
