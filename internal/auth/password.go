package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"projgate.org/internal/obs"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 10

// CredentialVerifier hashes and checks passwords with bcrypt.
type CredentialVerifier struct {
	cost int
	// decoy is compared against when the account does not exist so that
	// unknown emails take as long as wrong passwords.
	decoy []byte
}

// NewCredentialVerifier builds a verifier with the given bcrypt cost.
// A zero cost selects DefaultCost.
func NewCredentialVerifier(cost int) (*CredentialVerifier, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("auth: bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte("projgate-decoy-secret"), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: prepare decoy hash: %w", err)
	}
	return &CredentialVerifier{cost: cost, decoy: decoy}, nil
}

// Cost reports the configured work factor.
func (v *CredentialVerifier) Cost() int { return v.cost }

// Hash returns a salted bcrypt hash of secret.
func (v *CredentialVerifier) Hash(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether secret matches hash. A corrupt hash is logged and
// treated as a mismatch.
func (v *CredentialVerifier) Verify(secret, hash string) bool {
	if hash == "" {
		obs.Log("warn", "credential_hash_invalid", map[string]any{"error": "empty hash"})
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false
	default:
		obs.Log("warn", "credential_hash_invalid", map[string]any{"error": err.Error()})
		return false
	}
}

// burn performs a comparison against the decoy hash and always fails.
func (v *CredentialVerifier) burn(secret string) {
	_ = bcrypt.CompareHashAndPassword(v.decoy, []byte(secret))
}
