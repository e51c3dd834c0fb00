package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/clusterforge/nodeident/credstore"
	"github.com/clusterforge/nodeident/interfaces"
	"github.com/clusterforge/nodeident/keymgr"
	"github.com/clusterforge/nodeident/metrics"
	"github.com/clusterforge/nodeident/storage"
)

// Config holds the coordinator's static configuration.
type Config struct {
	// DatabaseOwnerID is the distinguished node that publishes the
	// shared credential database target for every other core node.
	DatabaseOwnerID interfaces.NodeID

	// Log is the structured logger for bootstrap operations.
	Log *slog.Logger
}

// Coordinator sequences key material and credential provisioning for
// every node the loader brings up. Verify must be called exactly once per
// node descriptor before that node starts serving.
type Coordinator struct {
	cfg     Config
	keys    *keymgr.Manager
	factory *storage.Factory
	log     *slog.Logger

	// dbTarget settles once with the shared database location URI, or
	// with an error if no loaded node can ever supply it.
	dbTarget *promise[string]

	storeOnce sync.Once
	store     *credstore.Store
	backend   interfaces.CredentialBackend
	storeErr  error

	mu       sync.Mutex
	inflight map[interfaces.NodeID]*resolution
}

// resolution tracks one node id's in-flight or completed credential
// lookup so concurrent Verify calls for the same id await the same
// result instead of racing.
type resolution struct {
	done  chan struct{}
	creds interfaces.Credentials
	err   error
}

// New creates a bootstrap coordinator.
func New(cfg Config, keys *keymgr.Manager, factory *storage.Factory) (*Coordinator, error) {
	if cfg.DatabaseOwnerID == "" {
		return nil, errors.New("database owner node id must be configured")
	}
	if cfg.Log == nil {
		return nil, errors.New("logger must be configured")
	}

	return &Coordinator{
		cfg:      cfg,
		keys:     keys,
		factory:  factory,
		log:      cfg.Log,
		dbTarget: newPromise[string](),
		inflight: map[interfaces.NodeID]*resolution{},
	}, nil
}

// AnnounceManifest tells the coordinator the full set of node ids the
// loader will bring up. If the database owner is not among them, the
// database target fails immediately so credential waiters get a clear
// error instead of hanging for a node that will never be loaded.
func (c *Coordinator) AnnounceManifest(ids []interfaces.NodeID) {
	for _, id := range ids {
		if id == c.cfg.DatabaseOwnerID {
			return
		}
	}
	c.log.Warn("Database owner absent from manifest",
		slog.String("owner", c.cfg.DatabaseOwnerID.String()))
	c.dbTarget.fail(fmt.Errorf("%w: owner %q is not in the manifest",
		interfaces.ErrNoDatabaseOwner, c.cfg.DatabaseOwnerID))
}

// Verify provisions one node descriptor: it blocks until the cluster
// keypair is available, injects key material for key-consuming node
// types, and resolves root-scoped credentials for core nodes that did
// not arrive with an operator-provided secret. All writes land in
// config.Local; config.Provided is never touched.
func (c *Coordinator) Verify(ctx context.Context, nodeType interfaces.NodeType, nodeID interfaces.NodeID, config *interfaces.NodeConfig) error {
	desc := interfaces.NodeDescriptor{Type: nodeType, ID: nodeID, Config: config}
	if err := desc.Validate(); err != nil {
		return err
	}

	material, err := c.keys.Material()
	if err != nil {
		metrics.BootstrapErrors.WithLabelValues(string(nodeType)).Inc()
		return fmt.Errorf("key material unavailable for %s: %w", nodeID, err)
	}

	if nodeType.ConsumesSigningKeys() {
		config.SetLocal(interfaces.ConfigKeyCertPublic, string(material.Public))
		config.SetLocal(interfaces.ConfigKeyCertPrivate, string(material.Private))
		c.log.Debug("Injected cluster keypair",
			slog.String("node", nodeID.String()),
			slog.String("type", string(nodeType)))
	}

	// The distinguished node publishes the shared database target for
	// everyone else, from its provided override or its local default.
	if nodeID == c.cfg.DatabaseOwnerID {
		if target := config.Get(interfaces.ConfigKeyMongoURL); target != "" {
			c.log.Info("Credential database target published",
				slog.String("owner", nodeID.String()))
			c.dbTarget.resolve(target)
		} else {
			c.dbTarget.fail(fmt.Errorf("%w: owner %q has no %s configured",
				interfaces.ErrNoDatabaseOwner, nodeID, interfaces.ConfigKeyMongoURL))
		}
	}

	if nodeType.ConsumesCredentials() && config.Provided[interfaces.ConfigKeyUserSecret] == "" {
		creds, err := c.resolveCredentials(ctx, nodeID, config)
		if err != nil {
			metrics.BootstrapErrors.WithLabelValues(string(nodeType)).Inc()
			return err
		}
		config.SetLocal(interfaces.ConfigKeyUserKey, creds.UserKey)
		config.SetLocal(interfaces.ConfigKeyUserSecret, creds.UserSecret)
	}

	metrics.NodesBootstrapped.WithLabelValues(string(nodeType)).Inc()
	return nil
}

// resolveCredentials finds the shared database target, lazily constructs
// the process-wide credential store against it, and single-flights the
// per-node resolution.
func (c *Coordinator) resolveCredentials(ctx context.Context, nodeID interfaces.NodeID, config *interfaces.NodeConfig) (interfaces.Credentials, error) {
	// A node carrying its own database target uses it directly instead
	// of waiting for the owner.
	target := config.Get(interfaces.ConfigKeyMongoURL)
	if target == "" {
		var err error
		target, err = c.dbTarget.wait(ctx)
		if err != nil {
			return interfaces.Credentials{}, fmt.Errorf("credential database target unavailable for %s: %w", nodeID, err)
		}
	}

	store, err := c.ensureStore(ctx, target)
	if err != nil {
		return interfaces.Credentials{}, err
	}

	c.mu.Lock()
	if r, ok := c.inflight[nodeID]; ok {
		c.mu.Unlock()
		select {
		case <-r.done:
			return r.creds, r.err
		case <-ctx.Done():
			return interfaces.Credentials{}, ctx.Err()
		}
	}
	r := &resolution{done: make(chan struct{})}
	c.inflight[nodeID] = r
	c.mu.Unlock()

	r.creds, r.err = store.Resolve(ctx, nodeID)
	close(r.done)
	return r.creds, r.err
}

// ensureStore constructs the shared credential store on first use. The
// first resolved target wins; all later credential resolutions share the
// same backend connection.
func (c *Coordinator) ensureStore(ctx context.Context, target string) (*credstore.Store, error) {
	c.storeOnce.Do(func() {
		backend, err := c.factory.BackendFor(ctx, target)
		if err != nil {
			c.storeErr = fmt.Errorf("failed to create credential backend: %w", err)
			return
		}
		c.backend = backend
		c.store = credstore.New(backend, c.keys.CertDir(), c.log)
		c.log.Info("Credential store ready", slog.String("backend", backend.Name()))
	})
	return c.store, c.storeErr
}

// Close releases the credential backend, if one was ever created.
func (c *Coordinator) Close(ctx context.Context) error {
	if c.backend != nil {
		return c.backend.Close(ctx)
	}
	return nil
}
