// Package credstore issues and caches per-node root-scoped credentials.
//
// Resolution is two-tiered: a local plaintext cache file answers repeat
// lookups across process restarts without touching the shared store, and
// the shared store (see the storage package) holds the authoritative,
// secret-hashed record created on first issuance.
package credstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/clusterforge/nodeident/interfaces"
	"github.com/clusterforge/nodeident/metrics"
)

// tokenBytes is the entropy of each issued token; 32 bytes hex-encode to
// a 64 character key or secret.
const tokenBytes = 32

// Store resolves node ids to credentials, creating them idempotently.
// Safe for concurrent use by multiple bootstrap calls; the cache
// read-modify-write is serialized internally.
type Store struct {
	backend interfaces.CredentialBackend
	cache   *cache
	log     *slog.Logger

	mu sync.Mutex
}

// New creates a credential store writing its cache file into certDir and
// issuing records through backend.
func New(backend interfaces.CredentialBackend, certDir string, log *slog.Logger) *Store {
	return &Store{
		backend: backend,
		cache:   &cache{path: filepath.Join(certDir, CacheFile), log: log},
		log:     log,
	}
}

// Resolve returns the credentials for id, issuing them on first use.
//
// A cache hit returns the cached pair with no side effects and no shared
// store traffic. A miss generates a fresh key/secret pair, supersedes any
// stale record for id in the shared store, and appends the plaintext pair
// to the cache file. A shared store failure is returned as-is: issuance
// must not degrade to a memory-only credential that disappears on
// restart.
func (s *Store) Resolve(ctx context.Context, id interfaces.NodeID) (interfaces.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache.load()
	if creds, ok := entries[id]; ok {
		s.log.Debug("Credential cache hit", slog.String("node", id.String()))
		metrics.CredentialCacheHits.Inc()
		return creds, nil
	}

	creds, record, err := s.issue(id)
	if err != nil {
		return interfaces.Credentials{}, err
	}

	if err := s.backend.Supersede(ctx, record); err != nil {
		return interfaces.Credentials{}, fmt.Errorf("failed to store credential record for %s: %w", id, err)
	}

	entries[id] = creds
	if err := s.cache.save(entries); err != nil {
		return interfaces.Credentials{}, err
	}

	s.log.Info("Issued root-scoped credentials",
		slog.String("node", id.String()),
		slog.String("backend", s.backend.Name()))
	metrics.CredentialsIssued.Inc()

	return creds, nil
}

// issue generates the plaintext pair and the hashed shared-store record.
func (s *Store) issue(id interfaces.NodeID) (interfaces.Credentials, interfaces.CredentialRecord, error) {
	userKey, err := randomToken()
	if err != nil {
		return interfaces.Credentials{}, interfaces.CredentialRecord{}, err
	}
	userSecret, err := randomToken()
	if err != nil {
		return interfaces.Credentials{}, interfaces.CredentialRecord{}, err
	}
	refreshSuffix, err := randomToken()
	if err != nil {
		return interfaces.Credentials{}, interfaces.CredentialRecord{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(userSecret), bcrypt.DefaultCost)
	if err != nil {
		return interfaces.Credentials{}, interfaces.CredentialRecord{}, fmt.Errorf("failed to hash credential secret: %w", err)
	}

	record := interfaces.CredentialRecord{
		UserID:       id.String(),
		UserKey:      userKey,
		HashedSecret: string(hashed),
		LastIP:       []string{},
		Scope:        interfaces.ScopeWriteRoot,
		RefreshToken: userKey + refreshSuffix,
	}

	return interfaces.Credentials{UserKey: userKey, UserSecret: userSecret}, record, nil
}

// randomToken returns a 256-bit cryptographically random hex token.
func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
