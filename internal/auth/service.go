package auth

import (
	"context"
	"errors"
	"fmt"
)

// Service ties credential checks, token issuance and refresh together.
type Service struct {
	users   UserStore
	tokens  *TokenManager
	creds   *CredentialVerifier
	refresh *RefreshCoordinator
}

// NewService constructs Service from its collaborators.
func NewService(users UserStore, tokens *TokenManager, creds *CredentialVerifier) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if creds == nil {
		return nil, errors.New("auth: credential verifier is required")
	}
	refresh, err := NewRefreshCoordinator(tokens)
	if err != nil {
		return nil, err
	}
	return &Service{users: users, tokens: tokens, creds: creds, refresh: refresh}, nil
}

// Tokens exposes the token manager used for access validation.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// Register creates a user account with the default role and signs it in.
func (s *Service) Register(ctx context.Context, email, password string) (Session, error) {
	email, err := ValidateCredentials(email, password)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return Session{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.creds.Hash(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, hash, RoleUser)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Session{}, ErrConflict
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.session(user)
}

// Login verifies credentials and issues a fresh token pair. Unknown accounts
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email, err := ValidateCredentials(email, password)
	if err != nil {
		return Session{}, err
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.creds.burn(password)
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.creds.Verify(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, Principal, error) {
	if err := ValidateRefreshRequest(refreshToken); err != nil {
		return "", Principal{}, err
	}
	return s.refresh.Refresh(ctx, refreshToken)
}

// EnsureUser creates the account if it does not exist yet. Existing accounts
// are returned untouched.
func (s *Service) EnsureUser(ctx context.Context, email, password string, role Role) (User, bool, error) {
	if !role.Valid() {
		return User{}, false, fmt.Errorf("auth: invalid role %q", role)
	}
	email, err := ValidateCredentials(email, password)
	if err != nil {
		return User{}, false, err
	}
	existing, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, fmt.Errorf("lookup user: %w", err)
	}
	hash, err := s.creds.Hash(password)
	if err != nil {
		return User{}, false, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, email, hash, role)
	if err != nil {
		return User{}, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func (s *Service) session(user User) (Session, error) {
	p := user.Principal()
	access, err := s.tokens.IssueAccessToken(p)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(p)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
