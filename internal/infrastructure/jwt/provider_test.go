package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newHMAC(t *testing.T, clock *fakeClock) *Provider {
	t.Helper()
	p, err := NewHMACProvider(testSecret, "identity-api", time.Hour)
	require.NoError(t, err)
	return p.WithClock(clock.Now)
}

func TestProvider_IssueVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := newHMAC(t, clock)

	tok, exp, err := p.Issue("acc-1", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(time.Hour), exp)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.NotEmpty(t, claims.ID)
}

func TestProvider_RefreshTokens(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := newHMAC(t, clock).WithRefreshTTL(48 * time.Hour)

	refresh, exp, err := p.IssueRefresh("acc-1", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(48*time.Hour), exp)

	claims, err := p.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, TypeRefresh, claims.Type)

	// Still within the refresh lifetime but past the access one.
	clock.t = clock.t.Add(2 * time.Hour)
	_, err = p.VerifyRefresh(refresh)
	assert.NoError(t, err)
}

func TestProvider_TokenTypesNotInterchangeable(t *testing.T) {
	p := newHMAC(t, &fakeClock{t: time.Now()})

	access, _, err := p.Issue("acc-1", domain.RoleUser)
	require.NoError(t, err)
	refresh, _, err := p.IssueRefresh("acc-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = p.Verify(refresh)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
	_, err = p.VerifyRefresh(access)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestProvider_ExpiryBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := newHMAC(t, clock)

	tok, exp, err := p.Issue("acc-1", domain.RoleUser)
	require.NoError(t, err)

	clock.t = exp.Add(-time.Second)
	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)

	clock.t = exp
	_, err = p.Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrExpired))
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))

	clock.t = exp.Add(time.Hour)
	_, err = p.Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestProvider_Malformed(t *testing.T) {
	p := newHMAC(t, &fakeClock{t: time.Now()})
	_, err := p.Verify("not-a-real-token")
	assert.True(t, errors.Is(err, domain.ErrMalformed))
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
}

func TestProvider_TamperedSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newHMAC(t, clock)
	tok, _, err := p.Issue("acc-1", domain.RoleUser)
	require.NoError(t, err)

	other, err := NewHMACProvider([]byte("ffffffffffffffffffffffffffffffff"), "identity-api", time.Hour)
	require.NoError(t, err)
	_, err = other.WithClock(clock.Now).Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	_, err = p.Verify(parts[0] + "." + parts[1] + ".AAAA")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
}

func TestProvider_RejectsAlgNone(t *testing.T) {
	p := newHMAC(t, &fakeClock{t: time.Now()})
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "acc-1",
		ID:        "jti",
		Issuer:    "identity-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestProvider_WrongIssuer(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other, err := NewHMACProvider(testSecret, "someone-else", time.Hour)
	require.NoError(t, err)
	tok, _, err := other.WithClock(clock.Now).Issue("acc-1", domain.RoleUser)
	require.NoError(t, err)

	_, err = newHMAC(t, clock).Verify(tok)
	assert.True(t, errors.Is(err, domain.ErrUnauthenticated))
}

func TestNewHMACProvider_ShortSecret(t *testing.T) {
	_, err := NewHMACProvider([]byte("short"), "x", time.Hour)
	assert.Error(t, err)
}

func TestNewProvider_RSAKeyFiles(t *testing.T) {
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	p, err := NewProvider(&config.Config{
		JWTPrivateKeyPath: privPath,
		JWTPublicKeyPath:  pubPath,
		JWTIssuer:         "identity-api",
		JWTTTL:            24 * time.Hour,
	})
	require.NoError(t, err)

	tok, _, err := p.Issue("acc-1", domain.RoleUser)
	require.NoError(t, err)
	claims, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, 24*time.Hour, p.TTL())
}

func TestNewProvider_MissingKeyFile(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: "/nonexistent/key.pem"})
	assert.Error(t, err)
}
