// Package api implements the read-only ops HTTP endpoints of the rate bot.
package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"unsupported currency"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
