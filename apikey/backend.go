package apikey

import "context"

// ListOptions controls pagination for Backend.List. A Limit of zero or less
// returns all records remaining after Offset.
type ListOptions struct {
	Limit  int
	Offset int
}

// Backend is the storage contract for key records. Every implementation
// represents absence with a false bool and a nil error; an error always
// means the storage medium itself failed. Only Create raises for a
// business-rule violation, returning ErrDuplicateKey on a hash or id
// collision.
type Backend interface {
	// Create persists a new record. The record's Hash and ID must not
	// already exist in the store.
	Create(ctx context.Context, key Key) (Key, error)

	// Get looks a record up by the hash of its raw key. This is the hot
	// authentication-path lookup.
	Get(ctx context.Context, hash string) (Key, bool, error)

	// GetByID looks a record up by its public id. Management-path lookup,
	// kept separate so backends can optimize the hash path independently.
	GetByID(ctx context.Context, id string) (Key, bool, error)

	// Update applies a partial patch and returns the updated record.
	Update(ctx context.Context, hash string, patch KeyPatch) (Key, bool, error)

	// Delete removes a record entirely. It reports whether a record was
	// removed; deleting an absent hash is not an error.
	Delete(ctx context.Context, hash string) (bool, error)

	// List returns records ordered newest-created-first.
	List(ctx context.Context, opts ListOptions) ([]Key, error)

	// Revoke marks a record inactive. It reports whether the record was
	// found; revoking an already-revoked record succeeds.
	Revoke(ctx context.Context, hash string) (bool, error)

	// TouchLastUsed stamps the record's last-used time. Absence is a
	// no-op so the caller's authentication path never fails on it.
	TouchLastUsed(ctx context.Context, hash string) error

	// Close releases any held connections. Safe to call more than once.
	Close() error
}
