package interfaces

import (
	"errors"
	"fmt"
)

// NodeType identifies the role a node plays in the cluster.
type NodeType string

const (
	// NodeTypeAPI serves external HTTP traffic and signs authorization tokens.
	NodeTypeAPI NodeType = "api"
	// NodeTypeAuth verifies and issues authorization tokens.
	NodeTypeAuth NodeType = "auth"
	// NodeTypeCore runs internal cluster work under root-scoped credentials.
	NodeTypeCore NodeType = "core"
)

// ConsumesSigningKeys reports whether nodes of this type receive the
// cluster signing keypair during bootstrap.
func (t NodeType) ConsumesSigningKeys() bool {
	return t == NodeTypeAPI || t == NodeTypeAuth
}

// ConsumesCredentials reports whether nodes of this type receive
// root-scoped credentials during bootstrap.
func (t NodeType) ConsumesCredentials() bool {
	return t == NodeTypeCore
}

// Valid checks the type against the known node roles.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeAPI, NodeTypeAuth, NodeTypeCore:
		return true
	}
	return false
}

// NodeID uniquely identifies a node instance within the cluster, for
// example "auth_core" or "jobs_core".
type NodeID string

func (id NodeID) String() string { return string(id) }

// Well-known NodeConfig keys written or read by the bootstrap subsystem.
const (
	// ConfigKeyCertPublic holds the PEM-encoded cluster public key.
	ConfigKeyCertPublic = "certPublic"
	// ConfigKeyCertPrivate holds the PEM-encoded cluster private key.
	ConfigKeyCertPrivate = "certPrivate"
	// ConfigKeyUserKey holds the node's credential user key.
	ConfigKeyUserKey = "userKey"
	// ConfigKeyUserSecret holds the node's plaintext credential secret.
	ConfigKeyUserSecret = "userSecret"
	// ConfigKeyMongoURL holds the shared credential database target.
	ConfigKeyMongoURL = "mongoUrl"
)

// NodeConfig carries a node's configuration through bootstrap. Provided
// holds operator-supplied overrides and is never written by this
// subsystem; Local is the mutable target for injected key material and
// credentials.
type NodeConfig struct {
	Provided map[string]string
	Local    map[string]string
}

// NewNodeConfig returns a config with both maps allocated.
func NewNodeConfig() *NodeConfig {
	return &NodeConfig{
		Provided: map[string]string{},
		Local:    map[string]string{},
	}
}

// Get returns the value for key, preferring the operator-provided
// override over the local default.
func (c *NodeConfig) Get(key string) string {
	if v, ok := c.Provided[key]; ok && v != "" {
		return v
	}
	return c.Local[key]
}

// SetLocal writes a value into the mutable local section, allocating it
// if the descriptor arrived with a nil map.
func (c *NodeConfig) SetLocal(key, value string) {
	if c.Local == nil {
		c.Local = map[string]string{}
	}
	c.Local[key] = value
}

// NodeDescriptor is the loader-side description of a node to bootstrap.
type NodeDescriptor struct {
	Type   NodeType
	ID     NodeID
	Config *NodeConfig
}

// Validate checks the descriptor is complete enough to bootstrap.
func (d NodeDescriptor) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("unknown node type: %q", d.Type)
	}
	if d.ID == "" {
		return errors.New("node id must not be empty")
	}
	if d.Config == nil {
		return errors.New("node config must not be nil")
	}
	return nil
}

// KeypairMaterial is the cluster-wide asymmetric signing keypair, held as
// PEM-encoded bytes. Immutable once loaded for the process lifetime.
type KeypairMaterial struct {
	Public  []byte
	Private []byte
}

// Credentials is the plaintext key/secret pair handed to a node. The
// secret exists in plaintext only here and in the local cache file, never
// in the shared store.
type Credentials struct {
	UserKey    string `json:"userKey"`
	UserSecret string `json:"userSecret"`
}

// ScopeWriteRoot is the scope attached to every bootstrap-issued
// credential record.
const ScopeWriteRoot = "write_root"

// CredentialRecord is the authoritative, shared-store representation of a
// node's root-scoped identity. The stored secret is one-way hashed; the
// plaintext never leaves the issuing process.
type CredentialRecord struct {
	UserID       string   `bson:"_id" json:"userId"`
	UserKey      string   `bson:"user_key" json:"userKey"`
	HashedSecret string   `bson:"hashed_secret" json:"hashedSecret"`
	LastIP       []string `bson:"last_ip" json:"lastIp"`
	Scope        string   `bson:"scope" json:"scope"`
	RefreshToken string   `bson:"refresh_token" json:"refreshToken"`
}
