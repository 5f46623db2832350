package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAvatarStore struct{ mock.Mock }

func (m *mockAvatarStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return m.Called(ctx, key, r, contentType).Error(0)
}
func (m *mockAvatarStore) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockAvatarStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func seeded(t *testing.T) *memory.AccountRepo {
	t.Helper()
	repo := memory.NewAccountRepo()
	require.NoError(t, repo.Create(context.Background(), &domain.Account{
		AccountID: "acc1",
		Email:     "alice@example.com",
		Active:    true,
		Profile: domain.Profile{
			DisplayName: "Alice",
			Phone:       "555-0100",
			Addresses:   []domain.Address{{Type: "home", Street: "1 Main St", City: "Austin", State: "TX", Zip: "73301"}},
		},
	}))
	return repo
}

func decode(t *testing.T, body string) domain.UpdateProfileRequest {
	t.Helper()
	var req domain.UpdateProfileRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func TestUpdate_OnlyPresentFieldsChange(t *testing.T) {
	svc := NewService(seeded(t), nil)

	a, err := svc.Update(context.Background(), "acc1", decode(t, `{"phone":"555-0199"}`))
	require.NoError(t, err)
	assert.Equal(t, "555-0199", a.Profile.Phone)
	assert.Equal(t, "Alice", a.Profile.DisplayName)
	assert.Len(t, a.Profile.Addresses, 1)
	assert.Equal(t, "alice@example.com", a.Email)
}

func TestUpdate_EmptyAddressListClears(t *testing.T) {
	svc := NewService(seeded(t), nil)

	a, err := svc.Update(context.Background(), "acc1", decode(t, `{"addresses":[]}`))
	require.NoError(t, err)
	assert.Empty(t, a.Profile.Addresses)
	assert.Equal(t, "555-0100", a.Profile.Phone)
}

func TestUpdate_NullAddressesClears(t *testing.T) {
	svc := NewService(seeded(t), nil)

	a, err := svc.Update(context.Background(), "acc1", decode(t, `{"addresses":null}`))
	require.NoError(t, err)
	assert.Empty(t, a.Profile.Addresses)
}

func TestUpdate_EmptyBodyIsNoop(t *testing.T) {
	svc := NewService(seeded(t), nil)

	a, err := svc.Update(context.Background(), "acc1", decode(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.Profile.DisplayName)
	assert.Len(t, a.Profile.Addresses, 1)
}

func TestUpdate_Validation(t *testing.T) {
	svc := NewService(seeded(t), nil)

	_, err := svc.Update(context.Background(), "acc1", decode(t, `{"phone":"12345678901234567890"}`))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	long := strings.Repeat("x", 300)
	_, err = svc.Update(context.Background(), "acc1", decode(t, `{"addresses":[{"street_address":"`+long+`"}]}`))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestUpdate_UnknownAccount(t *testing.T) {
	svc := NewService(memory.NewAccountRepo(), nil)
	_, err := svc.Update(context.Background(), "ghost", decode(t, `{"name":"x"}`))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUploadAvatar_StoresAndReplaces(t *testing.T) {
	ctx := context.Background()
	repo := seeded(t)
	avatars := &mockAvatarStore{}
	avatars.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "avatars/acc1/")
	}), mock.Anything, "image/png").Return(nil)
	svc := NewService(repo, avatars)

	first, err := svc.UploadAvatar(ctx, "acc1", bytes.NewReader([]byte("png")), "image/png")
	require.NoError(t, err)
	firstKey := first.Profile.AvatarKey
	require.NotEmpty(t, firstKey)

	avatars.On("Delete", mock.Anything, firstKey).Return(errors.New("s3 down"))
	second, err := svc.UploadAvatar(ctx, "acc1", bytes.NewReader([]byte("png")), "image/png")
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, second.Profile.AvatarKey)
	avatars.AssertExpectations(t)
}

func TestUploadAvatar_RejectsNonImage(t *testing.T) {
	svc := NewService(seeded(t), &mockAvatarStore{})
	_, err := svc.UploadAvatar(context.Background(), "acc1", strings.NewReader("x"), "application/pdf")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAvatarURL(t *testing.T) {
	avatars := &mockAvatarStore{}
	avatars.On("URL", mock.Anything, "avatars/acc1/k", avatarURLTTL).Return("https://signed", nil)
	svc := NewService(seeded(t), avatars)

	assert.Equal(t, "https://signed", svc.AvatarURL(context.Background(), &domain.Account{Profile: domain.Profile{AvatarKey: "avatars/acc1/k"}}))
	assert.Empty(t, svc.AvatarURL(context.Background(), &domain.Account{}))
}
