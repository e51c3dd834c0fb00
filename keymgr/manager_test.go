package keymgr

import (
	"crypto/x509"
	"encoding/pem"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/clusterforge/nodeident/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateAndPersist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	m := New(dir, testLogger())

	material, err := m.Material()
	require.NoError(t, err)
	require.NotEmpty(t, material.Public)
	require.NotEmpty(t, material.Private)

	// Both PEM files and the exclusion marker must exist on disk.
	pub, err := os.ReadFile(filepath.Join(dir, PublicKeyFile))
	require.NoError(t, err)
	assert.Equal(t, material.Public, pub)

	priv, err := os.ReadFile(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)
	assert.Equal(t, material.Private, priv)

	ignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(ignore))

	// Private key parses as PKCS1 RSA, public as PKIX.
	block, _ := pem.Decode(priv)
	require.NotNil(t, block)
	_, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)

	block, _ = pem.Decode(pub)
	require.NotNil(t, block)
	_, err = x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
}

func TestLoadExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	first, err := New(dir, testLogger()).Material()
	require.NoError(t, err)

	// A fresh manager over the same directory loads the same pair
	// instead of generating a new one.
	second, err := New(dir, testLogger()).Material()
	require.NoError(t, err)
	assert.Equal(t, first.Public, second.Public)
	assert.Equal(t, first.Private, second.Private)
}

func TestPartialPairTriggersRegeneration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	first, err := New(dir, testLogger()).Material()
	require.NoError(t, err)

	// Losing one half of the pair must regenerate both.
	require.NoError(t, os.Remove(filepath.Join(dir, PrivateKeyFile)))

	second, err := New(dir, testLogger()).Material()
	require.NoError(t, err)
	assert.NotEqual(t, first.Public, second.Public)

	_, err = os.Stat(filepath.Join(dir, PrivateKeyFile))
	require.NoError(t, err)
}

func TestConcurrentCallersObserveSameMaterial(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	m := New(dir, testLogger())

	const callers = 16
	results := make([]interfaces.KeypairMaterial, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			material, err := m.Material()
			assert.NoError(t, err)
			results[i] = material
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, results[0].Public, results[i].Public)
		assert.Equal(t, results[0].Private, results[i].Private)
	}
}
