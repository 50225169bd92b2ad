package server

import (
	"net/http"

	"github.com/jonathan/transcript-archiver/internal/types"
)

func (s *Server) keyStoreConfigured(w http.ResponseWriter, r *http.Request) bool {
	if s.keys == nil {
		s.writeError(w, r, types.NewError(types.KindConfiguration, "api key storage is not configured", nil))
		return false
	}
	return true
}

// handleSetAPIKey persists the YouTube API key for all later runs.
func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.keyStoreConfigured(w, r) {
		return
	}
	var req types.SetAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, r, extractValidationErrors(err))
		return
	}
	if err := s.keys.Save(req.APIKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("api key saved")
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "API key saved"})
}

// handleRemoveAPIKey deletes the persisted key. Environment keys are unaffected.
func (s *Server) handleRemoveAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.keyStoreConfigured(w, r) {
		return
	}
	if err := s.keys.Remove(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("api key removed")
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "API key removed"})
}

// handleCheckAPIKey reports whether a key is available and its source.
func (s *Server) handleCheckAPIKey(w http.ResponseWriter, _ *http.Request) {
	var status types.APIKeyStatus
	if s.keys != nil {
		key, source := s.keys.Resolve("")
		status = types.APIKeyStatus{HasKey: key != "", Source: source}
	}
	s.jsonResponse(w, http.StatusOK, status)
}
