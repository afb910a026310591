package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password with bcrypt at the given cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a password with a bcrypt hash. A mismatch is
// reported as (false, nil); malformed hashes return an error.
func VerifyPassword(password, hashedPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// DecoyHash returns a hash of a random password at the given cost. Comparing
// against it when no user matches makes a login for an unknown email cost the
// same bcrypt work as a wrong password for a real one.
func DecoyHash(cost int) (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return HashPassword(hex.EncodeToString(secret), cost)
}

// BurnPasswordCheck spends one bcrypt comparison against decoy and always
// fails.
func BurnPasswordCheck(decoy, password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(decoy), []byte(password))
}
