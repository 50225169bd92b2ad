package server

import (
	"net/http"

	"github.com/jonathan/transcript-archiver/internal/config"
	"github.com/jonathan/transcript-archiver/internal/types"
)

// AuthHandler exchanges the admin password for a bearer token.
type AuthHandler struct {
	passwords  *config.PasswordConfig
	jwtService *JWTService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(passwords *config.PasswordConfig, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{
		passwords:  passwords,
		jwtService: jwtService,
	}
}

// IssueToken verifies req against the admin hash and returns a signed token.
func (h *AuthHandler) IssueToken(req types.TokenRequest) (*types.TokenResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, extractValidationErrors(err)
	}
	if !h.passwords.VerifyAdmin(req.Password) {
		return nil, &ErrInvalidCredentials{}
	}

	token, expiresAt, err := h.jwtService.GenerateToken(AdminSubject)
	if err != nil {
		return nil, err
	}
	return &types.TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// handleToken handles POST /api/auth/token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.authHandler == nil {
		s.writeError(w, r, types.NewError(types.KindConfiguration, "authentication is disabled", nil))
		return
	}

	var req types.TokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.authHandler.IssueToken(req)
	if err != nil {
		if HTTPStatus(err) == http.StatusUnauthorized {
			s.logger.Warn("admin token denied", "remote", r.RemoteAddr)
		}
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("admin token issued", "remote", r.RemoteAddr, "expires_at", resp.ExpiresAt)
	s.jsonResponse(w, http.StatusOK, resp)
}
