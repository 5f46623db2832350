package s3infra

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarStore_URLIsPresignedAndPathStyle(t *testing.T) {
	client := NewClient(&config.Config{
		AWSRegion:      "us-east-1",
		AWSEndpointURL: "http://localhost:4566",
		AWSAccessKeyID: "test",
		AWSSecretKey:   "test",
	})
	store := NewAvatarStore(client, "avatars-bucket")

	raw, err := store.URL(context.Background(), "avatars/acc1/01HXYZ", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", u.Host)
	assert.Equal(t, "/avatars-bucket/avatars/acc1/01HXYZ", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
