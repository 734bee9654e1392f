package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// OverrideService defines the override operations required by the override
// handler.
type OverrideService interface {
	// Get returns the current override, nil when unset.
	Get(ctx context.Context) (*models.AdminOverride, error)
	// Apply sets the override, or clears it when payload fields are null.
	Apply(ctx context.Context, p models.OverridePayload) (*models.AdminOverride, error)
}

// OverrideHandler handles the admin week override endpoints.
type OverrideHandler struct {
	OverrideService OverrideService
}

// Get handles GET /api/override.
func (h *OverrideHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.OverrideService.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OverrideResponse{
		Envelope: models.Envelope{OK: true},
		Override: o,
	})
}

// Apply handles POST /api/override. Null payload values clear the override.
func (h *OverrideHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req models.OverridePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	o, err := h.OverrideService.Apply(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OverrideResponse{
		Envelope: models.Envelope{OK: true},
		Override: o,
	})
}
