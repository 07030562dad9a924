package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned when a connection token does not match.
var ErrInvalidToken = errors.New("invalid connection token")

// Verifier checks connection tokens against a bcrypt hash.
type Verifier struct {
	hash []byte
}

// NewVerifier builds a verifier for hash. An empty hash accepts every token.
func NewVerifier(hash string) (*Verifier, error) {
	if hash == "" {
		return &Verifier{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid token hash: %w", err)
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Enabled reports whether tokens are checked at all.
func (v *Verifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify returns ErrInvalidToken unless token matches the configured hash.
func (v *Verifier) Verify(token string) error {
	if !v.Enabled() {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// HashToken returns the bcrypt hash to put in auth.token_hash.
func HashToken(token string, cost int) (string, error) {
	if token == "" {
		return "", errors.New("token must not be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}
