package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore_ResolveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "youtube.key")
	store := NewKeyStore(path, "env-key")

	key, source := store.Resolve("")
	assert.Equal(t, "env-key", key)
	assert.Equal(t, KeySourceEnv, source)

	require.NoError(t, store.Save("  file-key-123 "))
	key, source = store.Resolve("")
	assert.Equal(t, "file-key-123", key)
	assert.Equal(t, KeySourceFile, source)

	key, source = store.Resolve("request-key")
	assert.Equal(t, "request-key", key)
	assert.Equal(t, KeySourceRequest, source)

	require.NoError(t, store.Remove())
	key, source = store.Resolve("")
	assert.Equal(t, "env-key", key)
	assert.Equal(t, KeySourceEnv, source)
}

func TestKeyStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "youtube.key")
	store := NewKeyStore(path, "")
	require.NoError(t, store.Save("secret-key-value"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeyStore_Empty(t *testing.T) {
	store := NewKeyStore(filepath.Join(t.TempDir(), "none"), "")
	key, source := store.Resolve("")
	assert.Empty(t, key)
	assert.Empty(t, source)

	assert.Error(t, store.Save("   "))
	assert.NoError(t, store.Remove(), "removing a missing key is fine")
}
