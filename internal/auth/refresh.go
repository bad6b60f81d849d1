package auth

import (
	"context"
	"errors"
)

// RefreshCoordinator exchanges a refresh token for a new access token.
type RefreshCoordinator struct {
	tokens *TokenManager
}

// NewRefreshCoordinator wires a coordinator to the token manager.
func NewRefreshCoordinator(tokens *TokenManager) (*RefreshCoordinator, error) {
	if tokens == nil {
		return nil, errors.New("auth: token manager is required")
	}
	return &RefreshCoordinator{tokens: tokens}, nil
}

// Refresh validates refreshToken with the refresh key and mints an access
// token carrying the same subject and role. Every rejection collapses into
// ErrInvalidRefreshToken. No new refresh token is issued. The exchange is
// pure computation and does not observe ctx cancellation.
func (c *RefreshCoordinator) Refresh(_ context.Context, refreshToken string) (string, Principal, error) {
	claims, err := c.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", Principal{}, ErrInvalidRefreshToken
	}
	p := claims.Principal()
	if !p.Role.Valid() {
		return "", Principal{}, ErrInvalidRefreshToken
	}
	access, err := c.tokens.IssueAccessToken(p)
	if err != nil {
		return "", Principal{}, err
	}
	return access, p, nil
}
