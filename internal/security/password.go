package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the bcrypt input limit; longer passwords are rejected
// before hashing instead of being silently truncated.
const MaxPasswordBytes = 72

const DefaultBcryptCost = 12

// dummyPassword feeds the decoy hash used when a login names an unknown user.
const dummyPassword = "videotube-decoy-password"

type PasswordHasher struct {
	cost      int
	decoyHash []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	decoy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare decoy hash: %w", err)
	}

	return &PasswordHasher{cost: cost, decoyHash: decoy}, nil
}

// Hash returns a bcrypt string that embeds its own cost and salt.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("hash password: %w", bcrypt.ErrPasswordTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

func (h *PasswordHasher) Verify(plaintext string, hash string) bool {
	if hash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// VerifyDecoy spends the same work as Verify against a hash nobody owns.
// It always reports false.
func (h *PasswordHasher) VerifyDecoy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword(h.decoyHash, []byte(plaintext))
	return false
}
