package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buemura/scanhub/internal/auth"
	"github.com/buemura/scanhub/internal/jobs"
	"github.com/buemura/scanhub/internal/store"
	"github.com/buemura/scanhub/pkg/types"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the standard error JSON body.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Code   int                `json:"code"`
	Errors []types.FieldError `json:"errors,omitempty"`
}

// ScanDetail is the job view returned to the job's owner.
type ScanDetail struct {
	*types.ScanJob
	Vulnerabilities []types.Vulnerability `json:"vulnerabilities"`
}

// writeJSON encodes data as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}

type fieldErrors interface {
	FieldErrors() []types.FieldError
}

// writeErr maps a domain error onto its HTTP status.
func writeErr(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var fe fieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "validation failed",
			Code:   http.StatusBadRequest,
			Errors: fe.FieldErrors(),
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
