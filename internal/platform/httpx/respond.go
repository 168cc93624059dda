// Package httpx provides HTTP response utilities for the JSON API.
//
// Every response carries the service envelope {status, message} plus
// operation-specific payload fields.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the common response body shape.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success sends a success envelope with no extra payload.
func Success(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: "success", Message: message})
}

// Error sends an error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Status: "error", Message: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
