// Package keymgr owns the cluster-wide asymmetric signing keypair.
//
// The pair is persisted as auth.private.pem / auth.public.pem in a
// well-known certificate directory and generated on first use if absent.
// All identity-aware node types share the single in-memory copy for the
// process lifetime.
package keymgr

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/clusterforge/nodeident/interfaces"
)

const (
	// PublicKeyFile is the public key file name within the certificate directory.
	PublicKeyFile = "auth.public.pem"
	// PrivateKeyFile is the private key file name within the certificate directory.
	PrivateKeyFile = "auth.private.pem"

	// gitignoreFile excludes the certificate directory from version control.
	gitignoreFile = ".gitignore"

	keyBits = 2048
)

// Manager ensures the cluster signing keypair exists, generating and
// persisting it on first use. Material blocks every caller until the pair
// is in memory, so no caller observes a half-initialized keypair.
type Manager struct {
	certDir string
	log     *slog.Logger

	once     sync.Once
	material interfaces.KeypairMaterial
	err      error
}

// New creates a key manager rooted at certDir. No filesystem access
// happens until the first Material call.
func New(certDir string, log *slog.Logger) *Manager {
	return &Manager{certDir: certDir, log: log}
}

// Material returns the cluster keypair, loading it from disk or
// generating and persisting a fresh pair on the first call. Concurrent
// callers block until the single load/generate attempt completes and all
// observe the same result. A persist failure is sticky: every caller gets
// the error, since a node cannot sign tokens without keys.
func (m *Manager) Material() (interfaces.KeypairMaterial, error) {
	m.once.Do(func() {
		m.material, m.err = m.ensure()
	})
	return m.material, m.err
}

// CertDir returns the directory holding the key files and the credential
// cache that lives alongside them.
func (m *Manager) CertDir() string {
	return m.certDir
}

func (m *Manager) ensure() (interfaces.KeypairMaterial, error) {
	pubPath := filepath.Join(m.certDir, PublicKeyFile)
	privPath := filepath.Join(m.certDir, PrivateKeyFile)

	// Read failures here mean "absent" and trigger generation; only
	// persisting can fail the process.
	pub, pubErr := os.ReadFile(pubPath)
	priv, privErr := os.ReadFile(privPath)
	if pubErr == nil && privErr == nil {
		m.log.Debug("Loaded existing cluster keypair", slog.String("dir", m.certDir))
		return interfaces.KeypairMaterial{Public: pub, Private: priv}, nil
	}

	m.log.Info("Generating cluster signing keypair", slog.String("dir", m.certDir))

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to generate keypair: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	// Directory creation is idempotent.
	if err := os.MkdirAll(m.certDir, 0755); err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	if err := os.WriteFile(privPath, privPEM, 0600); err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to persist private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0644); err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to persist public key: %w", err)
	}

	// Keep generated key material out of version control.
	ignorePath := filepath.Join(m.certDir, gitignoreFile)
	if err := os.WriteFile(ignorePath, []byte("*\n"), 0644); err != nil {
		return interfaces.KeypairMaterial{}, fmt.Errorf("failed to write exclusion marker: %w", err)
	}

	m.log.Info("Cluster signing keypair persisted",
		slog.String("public", pubPath),
		slog.String("private", privPath))

	return interfaces.KeypairMaterial{Public: pubPEM, Private: privPEM}, nil
}
