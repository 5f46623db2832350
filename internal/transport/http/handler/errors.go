package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-identity-api/internal/domain"
)

type errorMapping struct {
	target error
	status int
	// message replaces the error text; empty means the wrapped text is safe to show.
	message string
}

// errorTable is checked in order. Credential failures come first so every
// login/secret/token rejection answers one generic body regardless of the cause
// that was wrapped alongside it.
var errorTable = []errorMapping{
	{domain.ErrInvalidSecret, http.StatusBadRequest, "invalid or expired code"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, ""},
	{domain.ErrLastAdmin, http.StatusConflict, "operation would remove the last active admin"},
	{domain.ErrConflict, http.StatusConflict, "resource already exists"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrUnverified, http.StatusForbidden, "account not verified"},
	{domain.ErrInactive, http.StatusForbidden, "account deactivated"},
	{domain.ErrNotFound, http.StatusNotFound, "not found"},
}

// httpError maps a service error to a status and JSON body. Unknown errors are
// logged and answered with a generic 500.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			writeError(w, m.status, msg)
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
