// Package interfaces defines the shared types and contracts of the node
// identity bootstrap subsystem.
//
// It contains the node vocabulary (NodeType, NodeID, NodeDescriptor,
// NodeConfig), the credential data model (Credentials, CredentialRecord,
// KeypairMaterial), and the CredentialBackend port implemented by the
// storage package. Keeping these in a leaf package lets keymgr, credstore,
// storage and bootstrap depend on the contracts without depending on each
// other.
package interfaces
