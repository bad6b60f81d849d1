package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "projgate"

	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 2 * time.Hour
)

// Claims represents JWT claims used for both access and refresh tokens.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal returns the identity the claims were issued for.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role}
}

// TokenReason classifies why a token was rejected.
type TokenReason string

const (
	ReasonNoToken      TokenReason = "NoToken"
	ReasonMalformed    TokenReason = "Malformed"
	ReasonBadSignature TokenReason = "BadSignature"
	ReasonExpired      TokenReason = "Expired"
	ReasonIncomplete   TokenReason = "Incomplete"
)

// TokenError is returned for every token rejection. It matches ErrInvalidToken.
type TokenError struct {
	Reason TokenReason
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

func (e *TokenError) Unwrap() error { return e.Err }

// ReasonOf extracts the rejection reason from err, if it is a token error.
func ReasonOf(err error) (TokenReason, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Reason, true
	}
	return "", false
}

// TokenManager issues and validates HS256 tokens.
type TokenManager struct {
	keys       KeySource
	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
}

// TokenOption configures TokenManager behavior.
type TokenOption func(*TokenManager) error

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(m *TokenManager) error {
		if fn != nil {
			m.now = fn
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl < 0 {
			return errors.New("auth: access ttl must not be negative")
		}
		if ttl > 0 {
			m.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl < 0 {
			return errors.New("auth: refresh ttl must not be negative")
		}
		if ttl > 0 {
			m.refreshTTL = ttl
		}
		return nil
	}
}

// NewTokenManager constructs a TokenManager reading keys from src.
func NewTokenManager(src KeySource, opts ...TokenOption) (*TokenManager, error) {
	if src == nil {
		return nil, errors.New("auth: key source is required")
	}
	m := &TokenManager{
		keys:       src,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		// Expiry is checked against the injected clock after the signature.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// IssueAccessToken signs a short-lived access token for p.
func (m *TokenManager) IssueAccessToken(p Principal) (string, error) {
	return m.issue(p, m.keys.Keys().Access, m.accessTTL)
}

// IssueRefreshToken signs a refresh token for p with the refresh key.
func (m *TokenManager) IssueRefreshToken(p Principal) (string, error) {
	return m.issue(p, m.keys.Keys().Refresh, m.refreshTTL)
}

func (m *TokenManager) issue(p Principal, key []byte, ttl time.Duration) (string, error) {
	if strings.TrimSpace(p.ID) == "" {
		return "", errors.New("auth: principal id is required")
	}
	if !p.Role.Valid() {
		return "", fmt.Errorf("auth: invalid role %q", p.Role)
	}
	if len(key) == 0 {
		return "", errors.New("auth: signing key is not configured")
	}

	now := m.now().UTC()
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// NumericDate has second resolution; the nonce keeps tokens
			// minted within the same second distinct.
			ID: uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken validates token with the access key.
func (m *TokenManager) ValidateAccessToken(token string) (*Claims, error) {
	return m.Validate(token, m.keys.Keys().Access)
}

// ValidateRefreshToken validates token with the refresh key.
func (m *TokenManager) ValidateRefreshToken(token string) (*Claims, error) {
	return m.Validate(token, m.keys.Keys().Refresh)
}

// Validate checks token against key. Rejections are reported in a fixed
// order: Malformed, BadSignature, Expired, Incomplete.
func (m *TokenManager) Validate(token string, key []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &TokenError{Reason: ReasonMalformed, Err: errors.New("empty token")}
	}

	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if len(key) == 0 {
			return nil, errors.New("verification key is not configured")
		}
		return key, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	now := m.now()
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return nil, &TokenError{Reason: ReasonExpired}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, &TokenError{Reason: ReasonIncomplete, Err: errors.New("subject missing")}
	}
	if claims.ExpiresAt == nil {
		return nil, &TokenError{Reason: ReasonIncomplete, Err: errors.New("expiry missing")}
	}
	return claims, nil
}

func classifyParseError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Reason: ReasonMalformed, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Reason: ReasonBadSignature, Err: err}
	default:
		return &TokenError{Reason: ReasonMalformed, Err: err}
	}
}
