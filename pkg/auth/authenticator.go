package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrRevokedToken = errors.New("token is revoked")

// Authenticator resolves a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uint, error)
}

// TokenAuthenticator checks the revocation list before verifying the JWT.
type TokenAuthenticator struct {
	jwt       *JWTManager
	blacklist Blacklist
}

func NewTokenAuthenticator(jwt *JWTManager, blacklist Blacklist) *TokenAuthenticator {
	return &TokenAuthenticator{jwt: jwt, blacklist: blacklist}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrMissingToken
	}

	revoked, err := a.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return 0, ErrRevokedToken
	}

	return a.jwt.UserID(token)
}

func (a *TokenAuthenticator) Generate(userID uint) (string, error) {
	return a.jwt.Generate(userID)
}

// Revoke blacklists the token for the rest of its lifetime.
func (a *TokenAuthenticator) Revoke(ctx context.Context, token string) error {
	exp, err := a.jwt.Expiry(token)
	if err != nil {
		return err
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return a.blacklist.Revoke(ctx, token, ttl)
}
