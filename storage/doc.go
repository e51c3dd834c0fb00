// Package storage provides the shared credential store backends.
//
// The store of record holds one CredentialRecord per node id and supports
// a single mutating operation, Supersede, which installs a record by
// blind delete-then-insert. Backends are selected by location URI:
//
//   - mongodb://host:27017/dbname - MongoDB, the usual store of record
//   - mongodb+srv://cluster.example.com/dbname - MongoDB via SRV discovery
//   - vault://vault.example.com:8200/secret/nodeident - HashiCorp Vault KV v2
//   - mem:// - process-local memory, for tests and development
//
// Use Factory to construct a backend from a URI.
package storage
