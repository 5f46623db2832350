package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failure")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("account not verified")
	ErrInactive           = errors.New("account deactivated")
	ErrLastAdmin          = errors.New("operation would remove the last admin")
)

// Token and secret failures. Each wraps ErrInvalidCredentials so callers that
// only care about "the credential was rejected" can test for that one value.
var (
	ErrUnauthenticated = fmt.Errorf("signature rejected: %w", ErrInvalidCredentials)
	ErrExpired         = fmt.Errorf("expired: %w", ErrInvalidCredentials)
	ErrMalformed       = fmt.Errorf("malformed: %w", ErrInvalidCredentials)
	ErrInvalidSecret   = fmt.Errorf("invalid or expired secret: %w", ErrInvalidCredentials)
)
