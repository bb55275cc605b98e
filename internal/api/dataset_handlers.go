package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/crismap/server/internal/dataset"
)

// ExportFilename is the attachment name of an exported dataset
const ExportFilename = "CRIS-locais.json"

// DatasetHandlers manages dataset export and import
type DatasetHandlers struct {
	service *dataset.Service
	logger  *zap.Logger
}

// NewDatasetHandlers creates a new DatasetHandlers instance
func NewDatasetHandlers(service *dataset.Service, logger *zap.Logger) *DatasetHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetHandlers{service: service, logger: logger}
}

// Export handles GET /api/export?defaults=true
func (h *DatasetHandlers) Export(w http.ResponseWriter, r *http.Request) {
	doc := h.service.Export(r.URL.Query().Get("defaults") == "true")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// Import handles POST /api/import
func (h *DatasetHandlers) Import(w http.ResponseWriter, r *http.Request) {
	var doc dataset.ImportDocument
	if !decodeJSON(w, r, &doc) {
		return
	}
	result, err := h.service.Import(r.Context(), doc)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetupDatasetRoutes registers export and import routes
func SetupDatasetRoutes(mux *http.ServeMux, handlers *DatasetHandlers, middleware func(http.Handler) http.Handler) {
	mux.Handle("/api/export", middleware(GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handlers.Export(w, r)
	}))))
	mux.Handle("/api/import", middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		handlers.Import(w, r)
	})))
}
