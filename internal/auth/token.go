// Package auth resolves bearer tokens to user identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
	ErrRevokedToken       = errors.New("revoked token")
	ErrAuthUnavailable    = errors.New("authentication backend unavailable")
	ErrRevocationDisabled = errors.New("token revocation is not configured")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationList remembers token ids that must no longer be accepted.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Gateway verifies HS256 access tokens and optionally consults a revocation
// list.
type Gateway struct {
	secret      []byte
	issuer      string
	revocations RevocationList
	now         func() time.Time
}

func NewGateway(secret, issuer string, revocations RevocationList) *Gateway {
	return &Gateway{
		secret:      []byte(secret),
		issuer:      issuer,
		revocations: revocations,
		now:         time.Now,
	}
}

// Authenticate resolves a raw bearer token to an identity.
func (g *Gateway) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrInvalidToken
	}

	identity := Identity{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if g.revocations != nil {
		if identity.TokenID == "" {
			return Identity{}, ErrInvalidToken
		}
		revoked, err := g.revocations.IsRevoked(ctx, identity.TokenID)
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
		}
		if revoked {
			return Identity{}, ErrRevokedToken
		}
	}
	return identity, nil
}

// Revoke stops the identity's token from being accepted until it expires.
func (g *Gateway) Revoke(ctx context.Context, identity Identity) error {
	if g.revocations == nil {
		return ErrRevocationDisabled
	}
	if identity.TokenID == "" {
		return ErrInvalidToken
	}
	ttl := identity.ExpiresAt.Sub(g.now())
	if ttl <= 0 {
		return nil
	}
	if err := g.revocations.Revoke(ctx, identity.TokenID, ttl); err != nil {
		return fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	return nil
}

// IssueToken signs an access token for userID. Token issuance belongs to the
// identity provider; this exists for local development and tests.
func IssueToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
