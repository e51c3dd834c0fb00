package interfaces

import (
	"context"
	"errors"
)

// CredentialBackend is the shared store of record for credential records.
// Implementations live in the storage package and are selected by
// location URI.
type CredentialBackend interface {
	// Supersede installs record as the single active record for its
	// UserID by deleting any prior record and inserting the new one.
	// The two steps are not transactional: a crash between them loses
	// the record and the next bootstrap of the id re-issues it.
	Supersede(ctx context.Context, record CredentialRecord) error

	// Available checks if the backend is currently accessible.
	Available(ctx context.Context) bool

	// Name returns a unique identifier for this backend.
	Name() string

	// LocationURI returns the URI that identifies this backend.
	LocationURI() string

	// Close releases the backend's resources.
	Close(ctx context.Context) error
}

var (
	// ErrBackendUnavailable is returned when the shared credential store is not accessible.
	ErrBackendUnavailable = errors.New("credential backend unavailable")

	// ErrInvalidLocationURI is returned when a backend location URI is malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid backend location URI")

	// ErrNoDatabaseOwner is returned when credential resolution requires the shared
	// database target but no loaded node supplies it.
	ErrNoDatabaseOwner = errors.New("no node supplies the credential database target")
)
