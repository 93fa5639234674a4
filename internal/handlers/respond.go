package handlers

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the envelope of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// uploadResponse keeps the success flag the upload form checks.
type uploadResponse struct {
	Success bool   `json:"success"`
	FileURL string `json:"fileUrl,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
