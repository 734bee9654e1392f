package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samplerpa08-cpu/tourplan/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"ok": false, "message": message})
}

// writeError maps service errors onto the wire contract.
func writeError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeFailure(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, service.ErrExists):
		writeFailure(w, http.StatusConflict, "user already exists")
	case errors.Is(err, service.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "user not found")
	default:
		writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}
