package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ovialab/cliniguard-server/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

// handleError maps service errors to HTTP statuses. Security-decision
// errors keep their stable message; infrastructure failures surface as a
// generic 500 with detail only in the server logs.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrOTPInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrAccountLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrConflictingDependency):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
