package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/go-identity-api/internal/pkg/validate"
)

const avatarURLTTL = 15 * time.Minute

// AllowedAvatarTypes lists the accepted image content types.
var AllowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	Update(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error)
	UploadAvatar(ctx context.Context, accountID string, r io.Reader, contentType string) (*domain.Account, error)
	AvatarURL(ctx context.Context, a *domain.Account) string
}

type accountStore interface {
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID string, p domain.ProfilePatch) (*domain.Account, error)
}

type avatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	accounts accountStore
	avatars  avatarStore
}

// NewService builds the profile service. avatars may be nil, in which case
// uploads are rejected.
func NewService(accounts accountStore, avatars avatarStore) Service {
	return &service{accounts: accounts, avatars: avatars}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// Update applies only the fields present in req. Identity fields (email,
// credential, role, verification) are not reachable from here.
func (s *service) Update(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	if req.Name.Set {
		if err := validate.Var("name", req.Name.Value, "max=100"); err != nil {
			return nil, err
		}
	}
	if req.Phone.Set {
		if err := validate.Var("phone", req.Phone.Value, "max=15"); err != nil {
			return nil, err
		}
	}
	if req.Addresses.Set {
		if err := validate.Addresses(req.Addresses.Value); err != nil {
			return nil, err
		}
	}
	return s.accounts.UpdateProfile(ctx, accountID, req.Patch())
}

func (s *service) UploadAvatar(ctx context.Context, accountID string, r io.Reader, contentType string) (*domain.Account, error) {
	if s.avatars == nil {
		return nil, fmt.Errorf("avatar storage not configured: %w", domain.ErrValidation)
	}
	if !AllowedAvatarTypes[contentType] {
		return nil, fmt.Errorf("unsupported image type %q: %w", contentType, domain.ErrValidation)
	}
	prev, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%s/%s", accountID, id.New())
	if err := s.avatars.Put(ctx, key, r, contentType); err != nil {
		return nil, err
	}
	a, err := s.accounts.UpdateProfile(ctx, accountID, domain.ProfilePatch{AvatarKey: domain.Some(key)})
	if err != nil {
		return nil, err
	}
	if old := prev.Profile.AvatarKey; old != "" && old != key {
		if err := s.avatars.Delete(ctx, old); err != nil {
			slog.Warn("could not delete replaced avatar", "account_id", accountID, "key", old, "err", err)
		}
	}
	return a, nil
}

// AvatarURL returns a short-lived download link, or "" when there is none.
func (s *service) AvatarURL(ctx context.Context, a *domain.Account) string {
	if s.avatars == nil || a.Profile.AvatarKey == "" {
		return ""
	}
	url, err := s.avatars.URL(ctx, a.Profile.AvatarKey, avatarURLTTL)
	if err != nil {
		slog.Warn("could not presign avatar", "account_id", a.AccountID, "err", err)
		return ""
	}
	return url
}
