package memory

import (
	"context"
	"sync"
	"time"
)

// RevocationRepo is an in-process token denylist. Expired entries are pruned
// on write.
type RevocationRepo struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewRevocationRepo() *RevocationRepo {
	return &RevocationRepo{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *RevocationRepo) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(r.now())
	r.revoked[jti] = expiresAt
	return nil
}

// RevokeOnce revokes jti and reports whether this call was the one that did.
func (r *RevocationRepo) RevokeOnce(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if exp, ok := r.revoked[jti]; ok && now.Before(exp) {
		return false, nil
	}
	r.prune(now)
	r.revoked[jti] = expiresAt
	return true, nil
}

func (r *RevocationRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[jti]
	return ok && r.now().Before(exp), nil
}

// prune must be called with mu held.
func (r *RevocationRepo) prune(now time.Time) {
	for k, exp := range r.revoked {
		if !now.Before(exp) {
			delete(r.revoked, k)
		}
	}
}
