package jwtinfra

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the shortest HS256 secret accepted (256 bits).
const minSecretLen = 32

// Token types carried in the typ claim. A refresh token is never accepted as
// a bearer token and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const defaultRefreshTTL = 7 * 24 * time.Hour

// Claims holds the JWT payload fields. Subject carries the account id and ID
// the token id consulted by the denylist.
type Claims struct {
	Role domain.Role `json:"role"`
	Type string      `json:"typ"`
	jwt.RegisteredClaims
}

// Provider signs and verifies session JWTs with either HS256 or RS256.
type Provider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	issuer     string
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewProvider builds a provider from configuration. A non-empty JWTSecret
// selects HS256; otherwise the RSA key pair is read from disk.
func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTSecret != "" {
		p, err := NewHMACProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)
		if err != nil {
			return nil, err
		}
		return p.WithRefreshTTL(cfg.JWTRefreshTTL), nil
	}

	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return newProvider(jwt.SigningMethodRS256, privKey, pubKey, cfg.JWTIssuer, cfg.JWTTTL).
		WithRefreshTTL(cfg.JWTRefreshTTL), nil
}

// NewHMACProvider builds an HS256 provider around a shared secret.
func NewHMACProvider(secret []byte, issuer string, ttl time.Duration) (*Provider, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	return newProvider(jwt.SigningMethodHS256, secret, secret, issuer, ttl), nil
}

func newProvider(method jwt.SigningMethod, signKey, verifyKey interface{}, issuer string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{
		method:     method,
		signKey:    signKey,
		verifyKey:  verifyKey,
		issuer:     issuer,
		ttl:        ttl,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
}

// WithRefreshTTL sets the refresh token lifetime. Non-positive values keep
// the default of seven days.
func (p *Provider) WithRefreshTTL(ttl time.Duration) *Provider {
	if ttl > 0 {
		p.refreshTTL = ttl
	}
	return p
}

// WithClock overrides the clock used for issuing and verifying. Tests only.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// TTL is the lifetime of issued tokens.
func (p *Provider) TTL() time.Duration { return p.ttl }

// Issue signs an access token {sub, role, typ, jti, iat, exp} and returns it
// with its expiry. The returned expiry is truncated to the second, as encoded
// in the token.
func (p *Provider) Issue(subjectID string, role domain.Role) (string, time.Time, error) {
	return p.sign(subjectID, role, TypeAccess, p.ttl)
}

// IssueRefresh signs a refresh token for subjectID.
func (p *Provider) IssueRefresh(subjectID string, role domain.Role) (string, time.Time, error) {
	return p.sign(subjectID, role, TypeRefresh, p.refreshTTL)
}

func (p *Provider) sign(subjectID string, role domain.Role, typ string, ttl time.Duration) (string, time.Time, error) {
	now := p.now()
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    p.issuer,
			ID:        id.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}
	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp.Time, nil
}

// Verify checks an access token's signature, algorithm, issuer, expiry and
// type. Failures are domain.ErrMalformed, domain.ErrExpired or
// domain.ErrUnauthenticated, all of which wrap domain.ErrInvalidCredentials.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeAccess)
}

// VerifyRefresh is Verify for refresh tokens.
func (p *Provider) VerifyRefresh(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeRefresh)
}

func (p *Provider) verify(tokenStr, typ string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("parse token: %w", domain.ErrMalformed)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", domain.ErrExpired)
		default:
			return nil, fmt.Errorf("verify token: %w", domain.ErrUnauthenticated)
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthenticated)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("token type %q, want %q: %w", claims.Type, typ, domain.ErrUnauthenticated)
	}
	return claims, nil
}
