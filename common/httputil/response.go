// Package httputil holds the JSON and JSON:API response helpers shared by the
// service HTTP surfaces.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteJSONAPI writes a JSON:API response (application/vnd.api+json).
func WriteJSONAPI(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON:API response", slog.String("error", err.Error()))
	}
}

// WriteError writes a plain JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteJSONAPIError writes a JSON:API compliant error response.
func WriteJSONAPIError(w http.ResponseWriter, status int, code, title, detail string) {
	WriteJSONAPI(w, status, ErrorDocument{Errors: []ErrorObject{{
		Status: status,
		Code:   code,
		Title:  title,
		Detail: detail,
	}}})
}

// WriteJSONAPIValidationError writes a 400 validation error.
func WriteJSONAPIValidationError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusBadRequest, "validation_failed", "Validation Failed", detail)
}

// WriteJSONAPINotFoundError writes a 404 for resourceType/id.
func WriteJSONAPINotFoundError(w http.ResponseWriter, resourceType, id string) {
	WriteJSONAPIError(w, http.StatusNotFound, "not_found", "Resource Not Found",
		"The requested "+resourceType+" with ID '"+id+"' was not found")
}

// WriteJSONAPIUnauthorizedError writes a 401.
func WriteJSONAPIUnauthorizedError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", detail)
}

// WriteJSONAPIUnavailableError writes a 503 for a failing dependency.
func WriteJSONAPIUnavailableError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusServiceUnavailable, "unavailable", "Service Unavailable", detail)
}

// WriteJSONAPIInternalError writes a 500. Log the cause before calling.
func WriteJSONAPIInternalError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error", detail)
}
