package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/go-identity-api/internal/pkg/metrics"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
)

// Service drives the identity lifecycle: registration, email verification,
// login, refresh and logout, and the forgot/reset/change password flows.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error)
	ResendVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) error
	Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Logout(ctx context.Context, p domain.Principal, refreshToken string) error
	VerifyToken(ctx context.Context, token string) (*domain.Principal, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, accountID string, req domain.ChangePasswordRequest) error
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	SetCredential(ctx context.Context, accountID, oldHash, newHash string) error
	Patch(ctx context.Context, accountID string, p domain.AccountPatch) error
}

type secretStore interface {
	Issue(ctx context.Context, accountID string, purpose domain.Purpose) (string, time.Time, error)
	Consume(ctx context.Context, accountID string, purpose domain.Purpose, presented string, effect domain.AccountPatch) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	VerifyDummy(plaintext string)
}

type passwordPolicy interface {
	Validate(pw string, userInputs ...string) error
}

type tokenIssuer interface {
	Issue(subjectID string, role domain.Role) (string, time.Time, error)
	IssueRefresh(subjectID string, role domain.Role) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
	VerifyRefresh(token string) (*jwtinfra.Claims, error)
}

type revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	RevokeOnce(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type ServiceDeps struct {
	Accounts accountStore
	Secrets  secretStore
	Hasher   passwordHasher
	Policy   passwordPolicy
	Tokens   tokenIssuer
	Revoker  revoker
	Notifier notifier
	Metrics  *metrics.AuthOutcomes
	Now      func() time.Time
}

type service struct {
	accounts accountStore
	secrets  secretStore
	hasher   passwordHasher
	policy   passwordPolicy
	tokens   tokenIssuer
	revoker  revoker
	notifier notifier
	metrics  *metrics.AuthOutcomes
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts: deps.Accounts,
		secrets:  deps.Secrets,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		tokens:   deps.Tokens,
		revoker:  deps.Revoker,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		now:      now,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := s.policy.Validate(req.Password, email, req.Name); err != nil {
		s.metrics.Record("register", metrics.Failure)
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &domain.Account{
		AccountID:      id.New(),
		Email:          email,
		CredentialHash: hash,
		Active:         true,
		Role:           domain.RoleUser,
		Profile:        domain.Profile{DisplayName: req.Name, Phone: req.Phone},
		Secrets:        map[domain.Purpose]*domain.OneTimeSecret{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		s.metrics.Record("register", metrics.Failure)
		return nil, err
	}
	s.metrics.Record("register", metrics.Success)

	// The account exists from here on; a failed issuance is recoverable
	// through resend-verification.
	if err := s.sendVerification(ctx, a); err != nil {
		slog.Warn("could not issue verification code", "account_id", a.AccountID, "err", err)
	}
	return a, nil
}

func (s *service) ResendVerification(ctx context.Context, email string) error {
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if a.Verified || !a.Active {
		return nil
	}
	return s.sendVerification(ctx, a)
}

func (s *service) sendVerification(ctx context.Context, a *domain.Account) error {
	code, _, err := s.secrets.Issue(ctx, a.AccountID, domain.PurposeEmailVerification)
	if err != nil {
		return err
	}
	s.notifier.Notify(ctx, domain.Notification{
		Kind:      domain.NotifyEmailVerification,
		AccountID: a.AccountID,
		Email:     a.Email,
		Phone:     a.Profile.Phone,
		Secret:    code,
	})
	return nil
}

func (s *service) VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) error {
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.Record("verify_email", metrics.Failure)
			return fmt.Errorf("verify email: %w", domain.ErrInvalidSecret)
		}
		return err
	}
	verified := true
	if err := s.secrets.Consume(ctx, a.AccountID, domain.PurposeEmailVerification, req.Code, domain.AccountPatch{Verified: &verified}); err != nil {
		s.metrics.Record("verify_email", metrics.Failure)
		return err
	}
	s.metrics.Record("verify_email", metrics.Success)
	return nil
}

// Login reports every rejection as domain.ErrInvalidCredentials. The specific
// cause (not found, unverified, inactive) is joined for logs and tests only.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error) {
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.VerifyDummy(req.Password)
			s.metrics.Record("login", metrics.Failure)
			return nil, fmt.Errorf("login: %w: %w", domain.ErrInvalidCredentials, domain.ErrNotFound)
		}
		return nil, err
	}
	if !s.hasher.Verify(req.Password, a.CredentialHash) {
		s.metrics.Record("login", metrics.Failure)
		return nil, fmt.Errorf("login: wrong password: %w", domain.ErrInvalidCredentials)
	}
	if !a.Active {
		s.metrics.Record("login", metrics.Failure)
		return nil, fmt.Errorf("login: %w: %w", domain.ErrInvalidCredentials, domain.ErrInactive)
	}
	if !a.Verified {
		s.metrics.Record("login", metrics.Failure)
		return nil, fmt.Errorf("login: %w: %w", domain.ErrInvalidCredentials, domain.ErrUnverified)
	}

	sess, err := s.issueSession(a)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.accounts.Patch(ctx, a.AccountID, domain.AccountPatch{LastLoginAt: &now}); err != nil {
		slog.Warn("could not record last login", "account_id", a.AccountID, "err", err)
	}
	s.metrics.Record("login", metrics.Success)
	return sess, nil
}

// Refresh rotates a refresh token into a new access/refresh pair. The
// presented token is revoked in the same step, so a replayed or concurrently
// reused refresh token is rejected.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.Record("refresh", metrics.Failure)
		return nil, err
	}
	first, err := s.revoker.RevokeOnce(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !first {
		s.metrics.Record("refresh", metrics.Failure)
		slog.Warn("refresh token replayed", "account_id", claims.Subject, "jti", claims.ID)
		return nil, fmt.Errorf("refresh token reused: %w", domain.ErrUnauthenticated)
	}

	a, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.Record("refresh", metrics.Failure)
			return nil, fmt.Errorf("refresh subject gone: %w", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if !a.Active {
		s.metrics.Record("refresh", metrics.Failure)
		return nil, fmt.Errorf("refresh: %w: %w", domain.ErrInvalidCredentials, domain.ErrInactive)
	}

	sess, err := s.issueSession(a)
	if err != nil {
		return nil, err
	}
	s.metrics.Record("refresh", metrics.Success)
	return sess, nil
}

func (s *service) issueSession(a *domain.Account) (*domain.Session, error) {
	token, exp, err := s.tokens.Issue(a.AccountID, a.Role)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(a.AccountID, a.Role)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		Token:            token,
		ExpiresAt:        exp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		Role:             a.Role,
		AccountID:        a.AccountID,
	}, nil
}

// Logout revokes the bearer token. A refresh token belonging to the same
// account is revoked too; one that fails verification or belongs to someone
// else is ignored.
func (s *service) Logout(ctx context.Context, p domain.Principal, refreshToken string) error {
	if err := s.revoker.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if refreshToken != "" {
		claims, err := s.tokens.VerifyRefresh(refreshToken)
		if err == nil && claims.Subject == p.AccountID {
			if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				return fmt.Errorf("revoke refresh token: %w", err)
			}
		}
	}
	s.metrics.Record("logout", metrics.Success)
	return nil
}

// VerifyToken resolves a bearer token to its principal. On top of the
// signature and expiry checks it rejects revoked tokens and tokens whose
// account was deleted or deactivated. The role comes from the account, so a
// demotion takes effect before the token expires.
func (s *service) VerifyToken(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token revoked: %w", domain.ErrUnauthenticated)
	}
	a, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token subject gone: %w", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if !a.Active {
		return nil, fmt.Errorf("token subject: %w: %w", domain.ErrInvalidCredentials, domain.ErrInactive)
	}
	return &domain.Principal{
		AccountID: a.AccountID,
		Role:      a.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ForgotPassword never reports whether the email is registered. Store and
// delivery failures are logged only.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("forgot password lookup failed", "err", err)
		}
		return nil
	}
	if !a.Active {
		return nil
	}
	secret, _, err := s.secrets.Issue(ctx, a.AccountID, domain.PurposePasswordReset)
	if err != nil {
		slog.Warn("could not issue reset secret", "account_id", a.AccountID, "err", err)
		return nil
	}
	s.notifier.Notify(ctx, domain.Notification{
		Kind:      domain.NotifyPasswordReset,
		AccountID: a.AccountID,
		Email:     a.Email,
		Secret:    secret,
	})
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	accountID, ok := pkgtoken.SplitResetSecret(req.ResetSecret)
	if !ok {
		s.metrics.Record("reset_password", metrics.Failure)
		return fmt.Errorf("reset password: %w", domain.ErrInvalidSecret)
	}
	if err := s.policy.Validate(req.NewPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	err = s.secrets.Consume(ctx, accountID, domain.PurposePasswordReset, req.ResetSecret, domain.AccountPatch{CredentialHash: &hash})
	if err != nil {
		s.metrics.Record("reset_password", metrics.Failure)
		return err
	}
	s.metrics.Record("reset_password", metrics.Success)
	s.notifyPasswordChanged(ctx, accountID)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, accountID string, req domain.ChangePasswordRequest) error {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.CurrentPassword, a.CredentialHash) {
		s.metrics.Record("change_password", metrics.Failure)
		return fmt.Errorf("change password: current password: %w", domain.ErrInvalidCredentials)
	}
	if req.NewPassword == req.CurrentPassword {
		return fmt.Errorf("new password must differ from the current one: %w", domain.ErrValidation)
	}
	if err := s.policy.Validate(req.NewPassword, a.Email, a.Profile.DisplayName); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.SetCredential(ctx, a.AccountID, a.CredentialHash, hash); err != nil {
		s.metrics.Record("change_password", metrics.Failure)
		return err
	}
	s.metrics.Record("change_password", metrics.Success)
	s.notify(ctx, a, domain.NotifyPasswordChanged)
	return nil
}

func (s *service) notifyPasswordChanged(ctx context.Context, accountID string) {
	a, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		slog.Warn("could not load account for password notice", "account_id", accountID, "err", err)
		return
	}
	s.notify(ctx, a, domain.NotifyPasswordChanged)
}

func (s *service) notify(ctx context.Context, a *domain.Account, kind domain.NotificationKind) {
	s.notifier.Notify(ctx, domain.Notification{Kind: kind, AccountID: a.AccountID, Email: a.Email})
}
