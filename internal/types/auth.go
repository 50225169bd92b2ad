package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// TokenRequest exchanges the admin password for a bearer token.
type TokenRequest struct {
	Password string `json:"password" validate:"required"`
}

// Validate validates the TokenRequest using the validator.
func (r *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
