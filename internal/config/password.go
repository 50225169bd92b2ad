package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultBcryptCost = 12
	minBcryptCost     = 10
	maxBcryptCost     = 14
)

// PasswordConfig hashes and checks the admin password that unlocks token issuance.
type PasswordConfig struct {
	BcryptCost int
	// Pepper is appended to the password before hashing. Changing it
	// invalidates every existing hash.
	Pepper    string
	AdminHash string
}

// NewPasswordConfig reads BCRYPT_COST and PASSWORD_PEPPER and takes the admin
// hash from auth. A configured hash must be a bcrypt hash.
func NewPasswordConfig(auth AuthConfig) (*PasswordConfig, error) {
	cost := defaultBcryptCost
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, configError("invalid BCRYPT_COST: %v", err)
		}
		cost = n
	}
	if cost < minBcryptCost || cost > maxBcryptCost {
		return nil, configError("bcrypt cost out of range: %d (must be %d-%d)", cost, minBcryptCost, maxBcryptCost)
	}

	if auth.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(auth.AdminPasswordHash)); err != nil {
			return nil, configError("ADMIN_PASSWORD_HASH is not a bcrypt hash (generate one with `transcript_agent token hash-password`)")
		}
	}

	return &PasswordConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("PASSWORD_PEPPER"),
		AdminHash:  auth.AdminPasswordHash,
	}, nil
}

// HashPassword returns the value to store in ADMIN_PASSWORD_HASH for pw.
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyAdmin checks pw against the admin hash. It always fails when no hash is configured.
func (c *PasswordConfig) VerifyAdmin(pw string) bool {
	if c.AdminHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.AdminHash), []byte(pw+c.Pepper)) == nil
}
