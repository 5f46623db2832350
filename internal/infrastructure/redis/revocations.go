package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "revoked"

// RevocationRepo is the token denylist backed by Redis keys that expire
// together with the token they revoke.
type RevocationRepo struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

func NewRevocationRepo(client *red.Client, prefix string) *RevocationRepo {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RevocationRepo{client: client, prefix: prefix, now: time.Now}
}

// Revoke stores jti until expiresAt. Already expired tokens are skipped.
func (r *RevocationRepo) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}
	return nil
}

// RevokeOnce revokes jti with SET NX and reports whether this call created
// the entry. Already expired tokens are never claimed.
func (r *RevocationRepo) RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return false, nil
	}
	ok, err := r.client.SetNX(ctx, r.key(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx revoked token: %w", err)
	}
	return ok, nil
}

func (r *RevocationRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked token: %w", err)
	}
	return n > 0, nil
}

func (r *RevocationRepo) key(jti string) string {
	return r.prefix + ":" + jti
}
