package storage

import (
	"context"
	"sync"

	"github.com/clusterforge/nodeident/interfaces"
)

// MemoryBackend is an in-process credential store for tests and local
// development. It mirrors the supersede semantics of the real backends:
// at most one record per user id, last write wins.
type MemoryBackend struct {
	mu         sync.Mutex
	records    map[string]interfaces.CredentialRecord
	supersedes int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: map[string]interfaces.CredentialRecord{}}
}

// Supersede replaces any existing record for the user id.
func (b *MemoryBackend) Supersede(ctx context.Context, record interfaces.CredentialRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, record.UserID)
	b.records[record.UserID] = record
	b.supersedes++
	return nil
}

// Available always reports true.
func (b *MemoryBackend) Available(ctx context.Context) bool { return true }

// Name returns a unique identifier for this backend.
func (b *MemoryBackend) Name() string { return "memory" }

// LocationURI returns the URI that identifies this backend.
func (b *MemoryBackend) LocationURI() string { return "mem://" }

// Close releases nothing.
func (b *MemoryBackend) Close(ctx context.Context) error { return nil }

// Record returns the stored record for a user id, if any.
func (b *MemoryBackend) Record(userID string) (interfaces.CredentialRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[userID]
	return rec, ok
}

// Len returns the number of stored records.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Supersedes returns how many Supersede calls the backend has served.
func (b *MemoryBackend) Supersedes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.supersedes
}
