// Package secret issues and consumes short-lived single-use secrets bound to
// an account and a purpose.
package secret

import (
	"context"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/domain"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
)

const codeDigits = 6

type accountStore interface {
	PutSecret(ctx context.Context, accountID string, s *domain.OneTimeSecret) error
	ConsumeSecret(ctx context.Context, accountID string, purpose domain.Purpose, valueHash string, now time.Time, effect domain.AccountPatch) error
}

// TTLs sets the validity window per purpose.
type TTLs struct {
	Verification time.Duration
	Reset        time.Duration
}

type Store struct {
	repo accountStore
	ttls TTLs
	now  func() time.Time
}

func NewStore(repo accountStore, ttls TTLs) *Store {
	if ttls.Verification <= 0 {
		ttls.Verification = 15 * time.Minute
	}
	if ttls.Reset <= 0 {
		ttls.Reset = 15 * time.Minute
	}
	return &Store{repo: repo, ttls: ttls, now: time.Now}
}

// WithClock overrides the clock. Tests only.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Issue generates a fresh secret for purpose and overwrites the account's
// slot for that purpose, so any earlier unconsumed secret is dead from this
// point on. Only the digest is persisted; the plaintext is returned once.
func (s *Store) Issue(ctx context.Context, accountID string, purpose domain.Purpose) (string, time.Time, error) {
	var (
		value string
		ttl   time.Duration
		err   error
	)
	switch purpose {
	case domain.PurposeEmailVerification:
		value, err = pkgtoken.NewNumericCode(codeDigits)
		ttl = s.ttls.Verification
	case domain.PurposePasswordReset:
		value, err = pkgtoken.NewResetSecret(accountID)
		ttl = s.ttls.Reset
	default:
		return "", time.Time{}, fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrValidation)
	}
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now().UTC()
	// Stored with second precision.
	expiresAt := now.Add(ttl).Truncate(time.Second)
	err = s.repo.PutSecret(ctx, accountID, &domain.OneTimeSecret{
		Purpose:   purpose,
		ValueHash: pkgtoken.Digest(value),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store %s secret: %w", purpose, err)
	}
	return value, expiresAt, nil
}

// Consume atomically checks and retires the secret, applying effect in the
// same write. A failed check is domain.ErrInvalidSecret with no detail about
// which check failed; store outages pass through unchanged.
func (s *Store) Consume(ctx context.Context, accountID string, purpose domain.Purpose, presented string, effect domain.AccountPatch) error {
	if presented == "" {
		return fmt.Errorf("empty secret: %w", domain.ErrInvalidSecret)
	}
	return s.repo.ConsumeSecret(ctx, accountID, purpose, pkgtoken.Digest(presented), s.now().UTC(), effect)
}
