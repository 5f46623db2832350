package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	args := m.Called(ctx, req)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	args := m.Called(ctx, refreshToken)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Logout(ctx context.Context, p domain.Principal, refreshToken string) error {
	return m.Called(ctx, p, refreshToken).Error(0)
}

func (m *mockAuthSvc) VerifyToken(ctx context.Context, token string) (*domain.Principal, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*domain.Principal); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) ChangePassword(ctx context.Context, accountID string, req domain.ChangePasswordRequest) error {
	return m.Called(ctx, accountID, req).Error(0)
}

type mockProfileSvc struct{ mock.Mock }

func (m *mockProfileSvc) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileSvc) Update(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	args := m.Called(ctx, accountID, req)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileSvc) UploadAvatar(ctx context.Context, accountID string, r io.Reader, contentType string) (*domain.Account, error) {
	args := m.Called(ctx, accountID, r, contentType)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileSvc) AvatarURL(ctx context.Context, a *domain.Account) string {
	return m.Called(ctx, a).String(0)
}

type mockAdminSvc struct{ mock.Mock }

func (m *mockAdminSvc) List(ctx context.Context, callerID string, f domain.ListFilter) ([]domain.Account, error) {
	args := m.Called(ctx, callerID, f)
	accounts, _ := args.Get(0).([]domain.Account)
	return accounts, args.Error(1)
}

func (m *mockAdminSvc) Get(ctx context.Context, callerID, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, callerID, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdminSvc) Update(ctx context.Context, callerID, accountID string, req domain.AdminUpdateRequest) (*domain.Account, error) {
	args := m.Called(ctx, callerID, accountID, req)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdminSvc) Delete(ctx context.Context, callerID, accountID string) error {
	return m.Called(ctx, callerID, accountID).Error(0)
}

func (m *mockAdminSvc) Dashboard(ctx context.Context, callerID string) (*domain.Dashboard, error) {
	args := m.Called(ctx, callerID)
	if d, _ := args.Get(0).(*domain.Dashboard); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdminSvc) Activity(ctx context.Context, callerID string) ([]domain.Account, error) {
	args := m.Called(ctx, callerID)
	accounts, _ := args.Get(0).([]domain.Account)
	return accounts, args.Error(1)
}

func (m *mockAdminSvc) EnsureAdmin(ctx context.Context, email, password string) error {
	return m.Called(ctx, email, password).Error(0)
}

// --- helpers ---

// as attaches an authenticated principal to r, the way middleware.Auth would.
func as(r *http.Request, accountID string, role domain.Role) *http.Request {
	p := &domain.Principal{AccountID: accountID, Role: role, TokenID: "jti-" + accountID}
	return r.WithContext(middleware.WithPrincipal(r.Context(), p))
}

// withChiID injects a chi URL param "id" into the request context.
func withChiID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
