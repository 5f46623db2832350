package middleware

import (
	"encoding/json"
	"net/http"
)

// errorResponse matches the {"error": ...} body the handlers write.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSONError answers a request the middleware chain stops early.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
