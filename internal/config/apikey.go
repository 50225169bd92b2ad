package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sources reported by KeyStore.Resolve.
const (
	KeySourceRequest = "request"
	KeySourceFile    = "file"
	KeySourceEnv     = "env"
)

// KeyStore persists the YouTube Data API key in a local file and resolves
// the key to use for a run: explicit request key, then file, then env/config default.
type KeyStore struct {
	mu       sync.Mutex
	path     string
	fallback string
}

// NewKeyStore returns a store backed by path; fallback is the configured default key.
func NewKeyStore(path, fallback string) *KeyStore {
	return &KeyStore{path: path, fallback: strings.TrimSpace(fallback)}
}

// Save writes key to the key file with owner-only permissions.
func (s *KeyStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return configError("api key is empty")
	}
	if s.path == "" {
		return configError("api key file is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write api key: %w", err)
	}
	return nil
}

// Remove deletes the key file. Removing a missing file is not an error.
func (s *KeyStore) Remove() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove api key: %w", err)
	}
	return nil
}

// Load returns the key stored in the file, or "" when none is stored.
func (s *KeyStore) Load() (string, error) {
	if s.path == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Resolve picks the key for a run and reports where it came from.
// An empty key with an empty source means no key is configured anywhere.
func (s *KeyStore) Resolve(explicit string) (string, string) {
	if k := strings.TrimSpace(explicit); k != "" {
		return k, KeySourceRequest
	}
	if k, err := s.Load(); err == nil && k != "" {
		return k, KeySourceFile
	}
	if s.fallback != "" {
		return s.fallback, KeySourceEnv
	}
	return "", ""
}
