package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/clusterforge/nodeident/interfaces"
)

// VaultBackend implements the credential store of record on HashiCorp
// Vault's KV v2 secrets engine. Each record is one secret under
// mountPath/data/dataPath/<user_id>. Authentication uses the standard
// Vault environment (VAULT_TOKEN and friends) via the API defaults.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault credential backend.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: path within the mount (e.g. "nodeident")
//   - log: structured logger for operational insights
func NewVaultBackend(address, mountPath, dataPath string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	mountPath = strings.TrimSuffix(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(address, "https://"), mountPath, dataPath),
	}, nil
}

// Supersede deletes any prior secret for the node id and writes the new
// record. KV v2 versions writes internally, so the delete removes the
// latest version first to keep version history from resurrecting a
// superseded credential as the visible value after a partial failure.
func (b *VaultBackend) Supersede(ctx context.Context, record interfaces.CredentialRecord) error {
	path := b.recordPath(record.UserID)

	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		return fmt.Errorf("failed to delete stale credential record: %w", err)
	}

	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"user_id":       record.UserID,
			"user_key":      record.UserKey,
			"hashed_secret": record.HashedSecret,
			"last_ip":       record.LastIP,
			"scope":         record.Scope,
			"refresh_token": record.RefreshToken,
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, payload); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Superseded credential record in Vault",
		slog.String("path", path),
		slog.String("user_id", record.UserID))
	return nil
}

// Available checks the Vault server reports an initialized, unsealed state.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Debug("Vault backend unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns a unique identifier for this backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s", b.dataPath)
}

// LocationURI returns the URI that identifies this backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

// Close releases the backend; the Vault client holds no persistent
// connection.
func (b *VaultBackend) Close(ctx context.Context) error {
	return nil
}

// recordPath builds the KV v2 data path for a node's record.
func (b *VaultBackend) recordPath(userID string) string {
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, userID)
}
