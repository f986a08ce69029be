package apikey

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryBackend stores key records in a mutex-guarded map. It is meant for
// development and testing; every operation takes the lock, trading
// throughput for obvious correctness.
type MemoryBackend struct {
	mu   sync.Mutex
	keys map[string]Key
}

// NewMemoryBackend constructs an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{keys: make(map[string]Key)}
}

// Create stores a new record, rejecting duplicate hashes and ids.
func (b *MemoryBackend) Create(_ context.Context, key Key) (Key, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.keys[key.Hash]; exists {
		return Key{}, fmt.Errorf("%w: hash already exists", ErrDuplicateKey)
	}
	for _, existing := range b.keys {
		if existing.ID == key.ID {
			return Key{}, fmt.Errorf("%w: id %s already exists", ErrDuplicateKey, key.ID)
		}
	}

	stored := key.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	b.keys[stored.Hash] = stored
	return stored.Clone(), nil
}

// Get returns the record for a hash, if present.
func (b *MemoryBackend) Get(_ context.Context, hash string) (Key, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, ok := b.keys[hash]
	if !ok {
		return Key{}, false, nil
	}
	return key.Clone(), true, nil
}

// GetByID returns the record for a public id, if present.
func (b *MemoryBackend) GetByID(_ context.Context, id string) (Key, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range b.keys {
		if key.ID == id {
			return key.Clone(), true, nil
		}
	}
	return Key{}, false, nil
}

// Update applies a patch to the record for a hash.
func (b *MemoryBackend) Update(_ context.Context, hash string, patch KeyPatch) (Key, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, ok := b.keys[hash]
	if !ok {
		return Key{}, false, nil
	}
	updated := patch.Apply(key)
	b.keys[hash] = updated
	return updated.Clone(), true, nil
}

// Delete removes the record for a hash.
func (b *MemoryBackend) Delete(_ context.Context, hash string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.keys[hash]; !ok {
		return false, nil
	}
	delete(b.keys, hash)
	return true, nil
}

// List returns records newest-created-first. It snapshots the map under the
// lock before slicing so concurrent writers cannot be observed mid-iteration.
func (b *MemoryBackend) List(_ context.Context, opts ListOptions) ([]Key, error) {
	b.mu.Lock()
	snapshot := make([]Key, 0, len(b.keys))
	for _, key := range b.keys {
		snapshot = append(snapshot, key.Clone())
	}
	b.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool {
		if !snapshot[i].CreatedAt.Equal(snapshot[j].CreatedAt) {
			return snapshot[i].CreatedAt.After(snapshot[j].CreatedAt)
		}
		return snapshot[i].ID > snapshot[j].ID
	})

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(snapshot) {
		return []Key{}, nil
	}
	snapshot = snapshot[offset:]
	if opts.Limit > 0 && opts.Limit < len(snapshot) {
		snapshot = snapshot[:opts.Limit]
	}
	return snapshot, nil
}

// Revoke marks the record for a hash inactive.
func (b *MemoryBackend) Revoke(_ context.Context, hash string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, ok := b.keys[hash]
	if !ok {
		return false, nil
	}
	key = key.Clone()
	key.IsActive = false
	b.keys[hash] = key
	return true, nil
}

// TouchLastUsed stamps the record's last-used time; absent hashes are a no-op.
func (b *MemoryBackend) TouchLastUsed(_ context.Context, hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, ok := b.keys[hash]
	if !ok {
		return nil
	}
	key = key.Clone()
	now := time.Now().UTC()
	key.LastUsedAt = &now
	b.keys[hash] = key
	return nil
}

// Close is a no-op; the backend holds no external resources.
func (b *MemoryBackend) Close() error { return nil }
