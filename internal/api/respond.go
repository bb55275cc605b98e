package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/locations"
	"github.com/crismap/server/internal/zones"
)

// maxBodyBytes bounds request bodies; imports carry whole datasets
const maxBodyBytes = 10 << 20

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

// writeJSON encodes payload before sending any header, so an unencodable payload
// becomes a 500 instead of an empty 200
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Failed to encode response", zap.Int("status", status), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(encodeFailureJSON)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

var encodeFailureJSON = []byte(`{"error":"Internal Server Error","message":"The response could not be encoded","code":"EncodeError"}` + "\n")

func sendError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	})
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	sendError(w, status, http.StatusText(status), message)
}

func sendValidationError(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: message,
		Code:    "ValidationError",
		Field:   field,
	})
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "hexcolor":
		return "must be a hex color"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// decodeJSON reads a bounded JSON body into v, answering 400 itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "InvalidJSON", fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

// respondDomainError maps store and registry errors onto HTTP statuses
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var zoneErr *zones.ValidationError
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &zoneErr):
		sendValidationError(w, zoneErr.Field, zoneErr.Message)
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		sendValidationError(w, fieldErrs[0].Field(), getValidationMessage(fieldErrs[0]))
	case errors.Is(err, zones.ErrConfirmationRequired):
		sendError(w, http.StatusBadRequest, "ConfirmationRequired", "Pass confirm=true to restore the default zones")
	case errors.Is(err, zones.ErrZoneExists):
		sendError(w, http.StatusConflict, "ZoneExists", err.Error())
	case errors.Is(err, zones.ErrZoneNotFound), errors.Is(err, locations.ErrLocationNotFound):
		sendError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, locations.ErrInvalidLocation),
		errors.Is(err, locations.ErrInvalidConnection),
		errors.Is(err, locations.ErrInvalidRadius):
		sendValidationError(w, "", err.Error())
	default:
		logger.Error("Request failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "InternalError", "The change could not be saved")
	}
}
