package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost used when hashing admin keys. The default cost balances
// verification latency against brute-force resistance.
const bcryptCost = bcrypt.DefaultCost

// HashAdminKey hashes an operator key for storage in configuration.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hash), nil
}

// VerifyAdminKey checks a presented operator key against the configured
// bcrypt hash. Returns ErrInvalidAdminKey on mismatch.
func VerifyAdminKey(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidAdminKey
	}
	return nil
}
