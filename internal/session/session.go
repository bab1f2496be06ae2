// Package session issues and verifies per-identity bearer tokens. Token
// secrets are derived from the identity's signing key rather than a shared
// system secret, so one identity's leaked token material exposes nothing
// about any other identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"swap-custodian/internal/wallet"
)

const (
	// AccessTokenTTL bounds how long a minted access token verifies.
	AccessTokenTTL = time.Hour
	// RefreshTokenTTL bounds how long a minted refresh token verifies.
	RefreshTokenTTL = 7 * 24 * time.Hour

	accessSuffix  = "_access"
	refreshSuffix = "_refresh"
)

var (
	// ErrRejected means a refresh token failed verification: key absent,
	// signature invalid, or expired.
	ErrRejected = errors.New("refresh token rejected")
	// ErrUnauthorized means an access token failed verification: key
	// absent, token absent, signature invalid, or expired.
	ErrUnauthorized = errors.New("unauthorized")
)

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Claims are the JWT claims carried by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
}

// Service mints and verifies tokens against the identity's signing key.
// Validity is stateless: signature plus expiry, no revocation list.
type Service struct {
	vault *wallet.Vault
	now   func() time.Time
}

// NewService creates a Service over the given key vault.
func NewService(vault *wallet.Vault) *Service {
	return &Service{vault: vault, now: time.Now}
}

// Issue mints a token pair for the identity, provisioning a signing key on
// first use.
func (s *Service) Issue(ctx context.Context, identity string) (*TokenPair, error) {
	acct, err := s.vault.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("issue tokens for %s: %w", identity, err)
	}
	return s.mintPair(identity, acct.PrivateKeyHex())
}

// Refresh verifies the refresh token and mints a fresh pair. The old
// refresh token stays valid until its natural expiry; verification is
// stateless, so rotation cannot invalidate it.
func (s *Service) Refresh(ctx context.Context, identity, refreshToken string) (*TokenPair, error) {
	acct, err := s.vault.Get(ctx, identity)
	if err != nil {
		return nil, ErrRejected
	}

	if err := s.verify(identity, refreshToken, acct.PrivateKeyHex()+refreshSuffix); err != nil {
		return nil, ErrRejected
	}

	return s.mintPair(identity, acct.PrivateKeyHex())
}

// Authorize verifies an access token for the identity. Returns
// ErrUnauthorized on any verification failure.
func (s *Service) Authorize(ctx context.Context, identity, accessToken string) error {
	if accessToken == "" {
		return ErrUnauthorized
	}

	acct, err := s.vault.Get(ctx, identity)
	if err != nil {
		return ErrUnauthorized
	}

	if err := s.verify(identity, accessToken, acct.PrivateKeyHex()+accessSuffix); err != nil {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) mintPair(identity, keyHex string) (*TokenPair, error) {
	access, err := s.mint(identity, keyHex+accessSuffix, AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, err := s.mint(identity, keyHex+refreshSuffix, RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) mint(identity, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *Service) verify(identity, tokenString, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid token")
	}
	if claims.Subject != identity {
		return fmt.Errorf("token subject mismatch")
	}
	return nil
}

// ExtractBearer pulls the token out of an Authorization header value.
// Returns "" when the header is absent or not a Bearer scheme.
func ExtractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
