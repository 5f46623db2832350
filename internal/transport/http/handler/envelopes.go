package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/validate"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RegisterEnvelope is returned by a successful registration.
type RegisterEnvelope struct {
	AccountID           string `json:"account_id"`
	VerificationPending bool   `json:"verification_pending"`
	Message             string `json:"message,omitempty"`
}

// SessionEnvelope wraps login and refresh responses.
type SessionEnvelope struct {
	Token            string      `json:"token"`
	ExpiresAt        time.Time   `json:"expires_at"`
	RefreshToken     string      `json:"refresh_token"`
	RefreshExpiresAt time.Time   `json:"refresh_expires_at"`
	Role             domain.Role `json:"role"`
	AccountID        string      `json:"account_id"`
}

func newSessionEnvelope(s *domain.Session) SessionEnvelope {
	return SessionEnvelope{
		Token:            s.Token,
		ExpiresAt:        s.ExpiresAt,
		RefreshToken:     s.RefreshToken,
		RefreshExpiresAt: s.RefreshExpiresAt,
		Role:             s.Role,
		AccountID:        s.AccountID,
	}
}

// AccountEnvelope is an account plus a short-lived avatar link.
type AccountEnvelope struct {
	*domain.Account
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AccountListEnvelope wraps admin listings.
type AccountListEnvelope struct {
	Count int              `json:"count"`
	Data  []domain.Account `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// decode reads a JSON body into dst and runs its validate tags. It writes the
// error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
