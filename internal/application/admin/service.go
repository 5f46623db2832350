package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
)

const (
	dashboardRecent = 10
	activityRecent  = 20
)

// Service is the admin role layer. Every call re-reads the caller from the
// store and requires an active admin; the token's role claim alone is not
// trusted.
type Service interface {
	List(ctx context.Context, callerID string, f domain.ListFilter) ([]domain.Account, error)
	Get(ctx context.Context, callerID, accountID string) (*domain.Account, error)
	Update(ctx context.Context, callerID, accountID string, req domain.AdminUpdateRequest) (*domain.Account, error)
	Delete(ctx context.Context, callerID, accountID string) error
	Dashboard(ctx context.Context, callerID string) (*domain.Dashboard, error)
	Activity(ctx context.Context, callerID string) ([]domain.Account, error)
	// EnsureAdmin creates or promotes the seed admin account.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Patch(ctx context.Context, accountID string, p domain.AccountPatch) error
	Delete(ctx context.Context, accountID string) error
	List(ctx context.Context, f domain.ListFilter) ([]domain.Account, error)
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
}

type passwordPolicy interface {
	Validate(pw string, userInputs ...string) error
}

type ServiceDeps struct {
	Accounts accountStore
	Hasher   passwordHasher
	Policy   passwordPolicy
}

type service struct {
	accounts accountStore
	hasher   passwordHasher
	policy   passwordPolicy
}

func NewService(deps ServiceDeps) Service {
	return &service{accounts: deps.Accounts, hasher: deps.Hasher, policy: deps.Policy}
}

func (s *service) requireAdmin(ctx context.Context, callerID string) error {
	caller, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("caller unknown: %w", domain.ErrForbidden)
		}
		return err
	}
	if !caller.IsActiveAdmin() {
		return fmt.Errorf("admin role required: %w", domain.ErrForbidden)
	}
	return nil
}

func (s *service) List(ctx context.Context, callerID string, f domain.ListFilter) ([]domain.Account, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sortByCreated(accounts)
	return accounts, nil
}

func (s *service) Get(ctx context.Context, callerID, accountID string) (*domain.Account, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, accountID)
}

// Update changes role, verification or active state. Removing the last
// active admin fails with domain.ErrLastAdmin.
func (s *service) Update(ctx context.Context, callerID, accountID string, req domain.AdminUpdateRequest) (*domain.Account, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	var p domain.AccountPatch
	if req.Role.Set {
		if !req.Role.Value.Valid() {
			return nil, fmt.Errorf("unknown role %q: %w", req.Role.Value, domain.ErrValidation)
		}
		role := req.Role.Value
		p.Role = &role
	}
	if req.Verified.Set {
		v := req.Verified.Value
		p.Verified = &v
	}
	if req.Active.Set {
		v := req.Active.Value
		p.Active = &v
	}
	if err := s.accounts.Patch(ctx, accountID, p); err != nil {
		return nil, err
	}
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	slog.Info("account updated by admin", "admin_id", callerID, "account_id", accountID, "role", a.Role, "active", a.Active, "verified", a.Verified)
	return a, nil
}

func (s *service) Delete(ctx context.Context, callerID, accountID string) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, accountID); err != nil {
		return err
	}
	slog.Info("account deleted by admin", "admin_id", callerID, "account_id", accountID)
	return nil
}

func (s *service) Dashboard(ctx context.Context, callerID string) (*domain.Dashboard, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx, domain.ListFilter{})
	if err != nil {
		return nil, err
	}
	d := &domain.Dashboard{TotalAccounts: len(accounts)}
	for i := range accounts {
		if accounts[i].Verified {
			d.VerifiedAccounts++
		} else {
			d.UnverifiedAccounts++
		}
		if accounts[i].Role == domain.RoleAdmin {
			d.AdminAccounts++
		}
	}
	sortByCreated(accounts)
	if len(accounts) > dashboardRecent {
		accounts = accounts[:dashboardRecent]
	}
	d.Recent = accounts
	return d, nil
}

// Activity lists the accounts with the most recent logins.
func (s *service) Activity(ctx context.Context, callerID string) ([]domain.Account, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	accounts, err := s.accounts.List(ctx, domain.ListFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.LastLoginAt != nil {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastLoginAt.After(*out[j].LastLoginAt)
	})
	if len(out) > activityRecent {
		out = out[:activityRecent]
	}
	return out, nil
}

func (s *service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = domain.NormalizeEmail(email)
	a, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if a.IsActiveAdmin() && a.Verified {
			return nil
		}
		role, yes := domain.RoleAdmin, true
		if err := s.accounts.Patch(ctx, a.AccountID, domain.AccountPatch{Role: &role, Verified: &yes, Active: &yes}); err != nil {
			return fmt.Errorf("promote seed admin: %w", err)
		}
		slog.Info("promoted seed admin", "account_id", a.AccountID)
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if err := s.policy.Validate(password, email); err != nil {
		return fmt.Errorf("seed admin password: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	a = &domain.Account{
		AccountID:      id.New(),
		Email:          email,
		CredentialHash: hash,
		Verified:       true,
		Active:         true,
		Role:           domain.RoleAdmin,
		Secrets:        map[domain.Purpose]*domain.OneTimeSecret{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	slog.Info("created seed admin", "account_id", a.AccountID)
	return nil
}

func sortByCreated(accounts []domain.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].AccountID > accounts[j].AccountID
		}
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
}
