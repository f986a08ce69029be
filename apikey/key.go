package apikey

import "time"

// State is the derived lifecycle state of a key.
type State string

// Lifecycle states. The state is computed on read, never stored.
const (
	// StateActive means the key is enabled and within its validity window.
	StateActive State = "active"
	// StateExpired means the key's expiry timestamp is in the past.
	StateExpired State = "expired"
	// StateRevoked means the key has been explicitly disabled.
	StateRevoked State = "revoked"
)

// Key is the stored metadata for an issued API key. The raw secret is never
// part of the record; only its hash is persisted. Key is a value type:
// updates produce a new value rather than mutating in place.
type Key struct {
	ID   string // Unique identifier (UUID), assigned at creation.
	Hash string // Hex SHA-256 digest of the raw key, unique per store.

	Name   string   // Display name for the key.
	Scopes []string // Granted permission scopes.

	IsActive bool // Whether the key is enabled; false after revoke.

	CreatedAt  time.Time  // Creation timestamp.
	ExpiresAt  *time.Time // Optional expiration timestamp.
	LastUsedAt *time.Time // Last successful authentication time.

	Metadata map[string]any // Open key/value metadata.
}

// State returns the derived lifecycle state. Revocation wins over expiry.
func (k Key) State() State {
	if !k.IsActive {
		return StateRevoked
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now()) {
		return StateExpired
	}
	return StateActive
}

// IsExpired reports whether the key's expiry timestamp has passed.
func (k Key) IsExpired() bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now())
}

// IsValid reports whether the key may be used for authentication.
func (k Key) IsValid() bool {
	return k.State() == StateActive
}

// Clone returns a deep copy so callers cannot alias stored slices or maps.
func (k Key) Clone() Key {
	out := k
	if k.Scopes != nil {
		out.Scopes = append([]string(nil), k.Scopes...)
	}
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		out.ExpiresAt = &t
	}
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		out.LastUsedAt = &t
	}
	if k.Metadata != nil {
		out.Metadata = make(map[string]any, len(k.Metadata))
		for mk, mv := range k.Metadata {
			out.Metadata[mk] = mv
		}
	}
	return out
}

// KeyPatch is a partial update for a stored key. Nil fields are left
// unchanged. Scopes use replace-whole-list semantics.
type KeyPatch struct {
	Name     *string        // New display name.
	Scopes   []string       // Replacement scope list; nil means unchanged.
	IsActive *bool          // New active flag.
	Metadata map[string]any // Replacement metadata map; nil means unchanged.

	// ExpiresAt is applied only when SetExpiresAt is true so the expiry
	// can be cleared by passing a nil value.
	ExpiresAt    *time.Time
	SetExpiresAt bool
}

// Apply returns a copy of k with the patch applied. ID, Hash and CreatedAt
// are never touched.
func (p KeyPatch) Apply(k Key) Key {
	out := k.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Scopes != nil {
		out.Scopes = append([]string(nil), p.Scopes...)
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]any, len(p.Metadata))
		for mk, mv := range p.Metadata {
			out.Metadata[mk] = mv
		}
	}
	if p.SetExpiresAt {
		if p.ExpiresAt != nil {
			t := *p.ExpiresAt
			out.ExpiresAt = &t
		} else {
			out.ExpiresAt = nil
		}
	}
	return out
}
