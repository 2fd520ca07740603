// Package api provides shared HTTP helpers and the health endpoint.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "status", status, "error", err)
	}
}

// Failure is the error body of the chat endpoints and socket.
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Fail writes a chat-style failure body.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure{Success: false, Message: message})
}
