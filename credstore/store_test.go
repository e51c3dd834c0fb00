package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/clusterforge/nodeident/interfaces"
	"github.com/clusterforge/nodeident/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveIssuesCredentials(t *testing.T) {
	dir := t.TempDir()
	backend := storage.NewMemoryBackend()
	store := New(backend, dir, testLogger())

	creds, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)
	assert.Len(t, creds.UserKey, 64)
	assert.Len(t, creds.UserSecret, 64)
	assert.NotEqual(t, creds.UserKey, creds.UserSecret)

	rec, ok := backend.Record("jobs_core")
	require.True(t, ok)
	assert.Equal(t, interfaces.ScopeWriteRoot, rec.Scope)
	assert.Equal(t, creds.UserKey, rec.UserKey)
	assert.Empty(t, rec.LastIP)
	assert.NotNil(t, rec.LastIP)

	// The stored secret is hashed, never plaintext.
	assert.NotEqual(t, creds.UserSecret, rec.HashedSecret)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.HashedSecret), []byte(creds.UserSecret)))

	// Refresh token is the user key plus a second random token.
	assert.Len(t, rec.RefreshToken, 128)
	assert.Equal(t, creds.UserKey, rec.RefreshToken[:64])
}

func TestResolveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	backend := storage.NewMemoryBackend()
	store := New(backend, dir, testLogger())

	first, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)
	second, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Supersedes())
}

func TestCacheHitSkipsBackend(t *testing.T) {
	dir := t.TempDir()
	cached := map[interfaces.NodeID]interfaces.Credentials{
		"jobs_core": {UserKey: "cached-key", UserSecret: "cached-secret"},
	}
	data, err := json.MarshalIndent(cached, "", "    ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, CacheFile), data, 0600))

	backend := storage.NewMemoryBackend()
	store := New(backend, dir, testLogger())

	creds, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)
	assert.Equal(t, "cached-key", creds.UserKey)
	assert.Equal(t, "cached-secret", creds.UserSecret)

	// The cache is authoritative once present: no store traffic at all.
	assert.Equal(t, 0, backend.Supersedes())
}

func TestCorruptCacheTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CacheFile), []byte("{not json"), 0600))

	backend := storage.NewMemoryBackend()
	store := New(backend, dir, testLogger())

	creds, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)
	assert.NotEmpty(t, creds.UserKey)
	assert.Equal(t, 1, backend.Supersedes())
}

func TestCacheLossLeavesSingleRecord(t *testing.T) {
	dir := t.TempDir()
	backend := storage.NewMemoryBackend()

	first, err := New(backend, dir, testLogger()).Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)

	// Simulate losing the local cache between runs; the re-issue must
	// supersede the stale remote record, not duplicate it.
	require.NoError(t, os.Remove(filepath.Join(dir, CacheFile)))

	second, err := New(backend, dir, testLogger()).Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)

	assert.NotEqual(t, first.UserKey, second.UserKey)
	assert.Equal(t, 1, backend.Len())
	rec, _ := backend.Record("jobs_core")
	assert.Equal(t, second.UserKey, rec.UserKey)
}

func TestCacheFileWrittenInFull(t *testing.T) {
	dir := t.TempDir()
	backend := storage.NewMemoryBackend()
	store := New(backend, dir, testLogger())

	_, err := store.Resolve(context.Background(), "jobs_core")
	require.NoError(t, err)
	_, err = store.Resolve(context.Background(), "market_core")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, CacheFile))
	require.NoError(t, err)

	var entries map[interfaces.NodeID]interfaces.Credentials
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, interfaces.NodeID("jobs_core"))
	assert.Contains(t, entries, interfaces.NodeID("market_core"))
}

type failingBackend struct{}

func (failingBackend) Supersede(context.Context, interfaces.CredentialRecord) error {
	return interfaces.ErrBackendUnavailable
}
func (failingBackend) Available(context.Context) bool { return false }
func (failingBackend) Name() string                   { return "failing" }
func (failingBackend) LocationURI() string            { return "fail://" }
func (failingBackend) Close(context.Context) error    { return nil }

func TestBackendFailureIsFatalAndLeavesNoCacheEntry(t *testing.T) {
	dir := t.TempDir()
	store := New(failingBackend{}, dir, testLogger())

	_, err := store.Resolve(context.Background(), "jobs_core")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrBackendUnavailable))

	// Issuance must not degrade to a cache-only credential.
	_, statErr := os.Stat(filepath.Join(dir, CacheFile))
	assert.True(t, os.IsNotExist(statErr))
}
