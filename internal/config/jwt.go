package config

import (
	"fmt"
)

// JWTConfig holds configuration for admin token generation and validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// NewJWTConfig derives the token configuration from the auth settings.
// The secret comes from auth.jwtSecret or JWT_SECRET; expiration defaults to 24 hours.
func NewJWTConfig(auth AuthConfig) (*JWTConfig, error) {
	hours := auth.ExpirationHours
	if hours == 0 {
		hours = 24
	}

	config := &JWTConfig{
		Secret:          auth.JWTSecret,
		ExpirationHours: hours,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return configError("JWT_SECRET cannot be empty")
	}
	if len(c.Secret) < 16 {
		return configError("JWT_SECRET must be at least 16 characters, got: %d", len(c.Secret))
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
