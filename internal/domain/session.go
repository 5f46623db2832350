package domain

import "time"

// Session is the result of a successful login or refresh. Both tokens are
// stateless; only revoked token ids are persisted.
type Session struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Role             Role      `json:"role"`
	AccountID        string    `json:"account_id"`
}

// Principal is the verified identity behind a bearer token.
type Principal struct {
	AccountID string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}
