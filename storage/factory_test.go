package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/clusterforge/nodeident/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFactoryMemoryScheme(t *testing.T) {
	f := NewFactory(testLogger())

	backend, err := f.BackendFor(context.Background(), "mem://")
	require.NoError(t, err)
	assert.Equal(t, "memory", backend.Name())
	assert.True(t, backend.Available(context.Background()))
}

func TestFactoryUnsupportedScheme(t *testing.T) {
	f := NewFactory(testLogger())

	_, err := f.BackendFor(context.Background(), "redis://localhost:6379")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidLocationURI))
}

func TestFactoryInvalidVaultPath(t *testing.T) {
	f := NewFactory(testLogger())

	// A vault URI needs both a mount and a data path.
	_, err := f.BackendFor(context.Background(), "vault://vault.example.com:8200/secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, interfaces.ErrInvalidLocationURI))
}

func TestFactoryVaultBackend(t *testing.T) {
	f := NewFactory(testLogger())

	backend, err := f.BackendFor(context.Background(), "vault://vault.example.com:8200/secret/nodeident")
	require.NoError(t, err)
	assert.Equal(t, "vault-nodeident", backend.Name())
	assert.Equal(t, "vault://vault.example.com:8200/secret/nodeident", backend.LocationURI())
}

func TestMemorySupersedeReplaces(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	first := interfaces.CredentialRecord{
		UserID:  "jobs_core",
		UserKey: "key-1",
		Scope:   interfaces.ScopeWriteRoot,
		LastIP:  []string{},
	}
	require.NoError(t, b.Supersede(ctx, first))

	second := first
	second.UserKey = "key-2"
	require.NoError(t, b.Supersede(ctx, second))

	// Supersede must never accumulate duplicates for an id.
	assert.Equal(t, 1, b.Len())
	rec, ok := b.Record("jobs_core")
	require.True(t, ok)
	assert.Equal(t, "key-2", rec.UserKey)
	assert.Equal(t, 2, b.Supersedes())
}
