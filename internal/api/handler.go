// Package api provides HTTP handlers for the RevReach agent API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/revreach/internal/campaign"
	"github.com/ashureev/revreach/internal/checkpoint"
	"github.com/ashureev/revreach/internal/safety"
	"github.com/ashureev/revreach/internal/state"
)

// Handler provides common handler utilities and dependencies.
type Handler struct {
	store       *state.Store
	checkpoints *checkpoint.Manager
	safety      *safety.Controller
	campaigns   *campaign.Service
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(store *state.Store, checkpoints *checkpoint.Manager, safetyCtrl *safety.Controller, campaigns *campaign.Service) *Handler {
	return &Handler{
		store:       store,
		checkpoints: checkpoints,
		safety:      safetyCtrl,
		campaigns:   campaigns,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
