package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevocationRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRevocationRepo()
	r.now = func() time.Time { return now }

	ok, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	ok, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Hour)
	ok, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Revoke(ctx, "jti-2", now.Add(time.Hour)))
	assert.NotContains(t, r.revoked, "jti-1")
}

func TestRevocationRepo_RevokeOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRevocationRepo()
	r.now = func() time.Time { return now }

	first, err := r.RevokeOnce(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, first)

	again, err := r.RevokeOnce(ctx, "jti-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, again)

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
