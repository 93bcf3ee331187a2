package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gatehouse-labs/gatehouse"
)

// Envelope is the uniform response shape: {success, message, data?, meta?}.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Meta carries pagination state for list responses.
type Meta struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeList(w http.ResponseWriter, message string, data any, meta Meta) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Meta: &meta})
}

// writeError maps the error taxonomy onto the envelope. Untyped errors come
// out as a generic 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, gatehouse.StatusOf(err), Envelope{
		Success: false,
		Message: gatehouse.PublicMessage(err),
	})
}
