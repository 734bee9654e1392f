package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/models"
	"github.com/samplerpa08-cpu/tourplan/internal/service"
)

// UserService defines the user operations required by the user handlers.
type UserService interface {
	// List returns every user without credentials.
	List(ctx context.Context) ([]models.User, error)
	// Add creates a user with a 4-digit PIN.
	Add(ctx context.Context, name, pin string, isAdmin bool) error
	// Delete removes a user and everything keyed by their name.
	Delete(ctx context.Context, name string) (models.DeletedData, error)
	// Login validates credentials and returns the admin flag plus the
	// current week's plans.
	Login(ctx context.Context, name, pin string) (bool, map[string][]string, error)
	// Decrypt returns a user's plaintext PIN.
	Decrypt(ctx context.Context, name string) (string, error)
}

// UsersHandler handles the user endpoints of the datastore API.
type UsersHandler struct {
	UserService UserService
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeJSON(w, http.StatusOK, models.UsersResponse{
		Envelope: models.Envelope{OK: true},
		Users:    users,
	})
}

// Add handles POST /api/users/add. A name collision answers 409.
func (h *UsersHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.UserPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.UserService.Add(r.Context(), req.Name, req.Password, req.IsAdmin); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Envelope{OK: true})
}

// Delete handles POST /api/users/delete, reporting what the cascade
// removed.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.UserDeletePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	deleted, err := h.UserService.Delete(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteUserResponse{
		Envelope:    models.Envelope{OK: true},
		DeletedData: deleted,
	})
}

// Login handles POST /api/login. A bad name/PIN pair is an ok:false
// envelope, not a transport error.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	isAdmin, plans, err := h.UserService.Login(r.Context(), req.Name, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeJSON(w, http.StatusOK, models.Envelope{OK: false, Message: "invalid credentials"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{
		Envelope:            models.Envelope{OK: true},
		IsAdmin:             isAdmin,
		PlansForCurrentWeek: plans,
	})
}

// Decrypt handles POST /api/users/decrypt. The router gates it behind the
// admin secret.
func (h *UsersHandler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeFailure(w, http.StatusBadRequest, "invalid body")
		return
	}
	pin, err := h.UserService.Decrypt(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DecryptResponse{
		Envelope: models.Envelope{OK: true},
		Password: pin,
	})
}
