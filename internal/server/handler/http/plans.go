package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
)

// PlanService defines the plan operations required by the plan handlers.
type PlanService interface {
	// PlansForWeek returns every user's plan for one week.
	PlansForWeek(ctx context.Context, weekStart string) (map[string][]string, error)
	// SetPlan overwrites one user's 7-slot plan for one week.
	SetPlan(ctx context.Context, weekStart, userName string, locations []string) error
	// AddCustomLocation records a one-off location for one day.
	AddCustomLocation(ctx context.Context, userName, weekStart, dayDate, location string) error
}

// PlansHandler handles the plan endpoints of the datastore API.
type PlansHandler struct {
	PlanService PlanService
}

// Get handles POST /api/plans/get.
func (h *PlansHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WeekStart string `json:"weekStart"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	plans, err := h.PlanService.PlansForWeek(r.Context(), req.WeekStart)
	if err != nil {
		writeError(w, err)
		return
	}
	if plans == nil {
		plans = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, models.PlansResponse{
		Envelope: models.Envelope{OK: true},
		Plans:    plans,
	})
}

// Set handles POST /api/plans/set.
func (h *PlansHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req models.PlanPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.PlanService.SetPlan(r.Context(), req.WeekStart, req.Name, req.Locations); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope{OK: true})
}

// AddCustom handles POST /api/custom/add.
func (h *PlansHandler) AddCustom(w http.ResponseWriter, r *http.Request) {
	var req models.CustomLocationPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.PlanService.AddCustomLocation(r.Context(), req.Name, req.WeekStart, req.DayDate, req.Location); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope{OK: true})
}
