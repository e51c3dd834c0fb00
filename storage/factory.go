package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/clusterforge/nodeident/interfaces"
)

// defaultDatabase is used when a mongodb URI carries no database path.
const defaultDatabase = "cluster"

// Factory creates credential backends from location URIs.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a new factory instance that can create credential
// backends.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// BackendFor creates a credential backend from a location URI.
//
// Supported schemes:
//   - mongodb:// and mongodb+srv:// - MongoDB store of record
//   - vault:// - HashiCorp Vault KV v2
//   - mem:// - in-process memory, for tests and development
//
// Returns an error wrapping interfaces.ErrInvalidLocationURI if the URI
// is malformed or the scheme is unsupported.
func (f *Factory) BackendFor(ctx context.Context, locationURI string) (interfaces.CredentialBackend, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return f.createMongoBackend(ctx, u, locationURI)
	case "vault":
		return f.createVaultBackend(u)
	case "mem":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// createMongoBackend creates a MongoDB backend. The database name comes
// from the URI path, falling back to "cluster".
func (f *Factory) createMongoBackend(ctx context.Context, u *url.URL, locationURI string) (interfaces.CredentialBackend, error) {
	f.log.Debug("Creating mongo credential backend", slog.String("host", u.Host))

	database := strings.Trim(u.Path, "/")
	if database == "" {
		database = defaultDatabase
	}

	return NewMongoBackend(ctx, locationURI, database, f.log)
}

// createVaultBackend creates a Vault backend.
// URI format: vault://host:port/mount/data-path?scheme=http
// The scheme query parameter downgrades to plain HTTP for development
// servers; the default is HTTPS.
func (f *Factory) createVaultBackend(u *url.URL) (interfaces.CredentialBackend, error) {
	f.log.Debug("Creating vault credential backend", slog.String("host", u.Host))

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	scheme := "https"
	if u.Query().Get("scheme") == "http" {
		scheme = "http"
	}
	address := fmt.Sprintf("%s://%s", scheme, u.Host)

	return NewVaultBackend(address, parts[0], parts[1], f.log)
}
