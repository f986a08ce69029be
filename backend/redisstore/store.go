// Package redisstore provides a key-value apikey.Backend on redis. It can
// run standalone, with entries lost on eviction or restart, or as a
// read-through/write-through cache in front of another backend.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

// DefaultKeyPrefix namespaces every redis key the store writes.
const DefaultKeyPrefix = "api_key:"

// Config holds construction-time options for a Store.
type Config struct {
	// Client is an existing redis client. The store treats it as shared
	// and never closes it.
	Client redis.UniversalClient
	// Addr is used to build a client when Client is nil (host:port). A
	// client the store built itself is closed by Close.
	Addr string
	// KeyPrefix overrides the default namespace prefix.
	KeyPrefix string
	// TTL expires entries after the given duration. Zero disables expiry.
	TTL time.Duration
	// Next is an optional authoritative backend. When set, reads fall
	// through to it on a cache miss and writes go to both.
	Next apikey.Backend
}

// Store keeps key records in redis. Each record lives under
// <prefix>hash:<hash>; a secondary index <prefix>id:<id> maps the public id
// to the hash, and <prefix>all_keys tracks every stored hash for listing.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	next       apikey.Backend
	ownsClient bool
}

var _ apikey.Backend = (*Store)(nil)

// New validates cfg and constructs a Store.
func New(cfg Config) (*Store, error) {
	client := cfg.Client
	ownsClient := false
	if client == nil {
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, errors.New("redisstore: config: client or addr is required")
		}
		client = redis.NewClient(&redis.Options{Addr: strings.TrimSpace(cfg.Addr)})
		ownsClient = true
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &Store{
		client:     client,
		prefix:     prefix,
		ttl:        cfg.TTL,
		next:       cfg.Next,
		ownsClient: ownsClient,
	}, nil
}

// hashKey returns the primary record key for a hash.
func (s *Store) hashKey(hash string) string { return s.prefix + "hash:" + hash }

// idKey returns the secondary index key for a public id.
func (s *Store) idKey(id string) string { return s.prefix + "id:" + id }

// allKeysKey returns the set tracking every stored hash.
func (s *Store) allKeysKey() string { return s.prefix + "all_keys" }

// Create stores a new record. Standalone, SETNX on the hash and id keys
// provides duplicate detection; with a wrapped backend the authoritative
// create runs first and the cache is populated afterwards.
func (s *Store) Create(ctx context.Context, key apikey.Key) (apikey.Key, error) {
	if key.CreatedAt.IsZero() {
		key = key.Clone()
		key.CreatedAt = time.Now().UTC()
	}

	if s.next != nil {
		stored, errNext := s.next.Create(ctx, key)
		if errNext != nil {
			return apikey.Key{}, errNext
		}
		if errCache := s.cacheSet(ctx, stored); errCache != nil {
			return apikey.Key{}, errCache
		}
		return stored, nil
	}

	payload, errMarshal := marshalKey(key)
	if errMarshal != nil {
		return apikey.Key{}, errMarshal
	}

	hashSet, errHashSet := s.client.SetNX(ctx, s.hashKey(key.Hash), payload, s.ttl).Result()
	if errHashSet != nil {
		return apikey.Key{}, fmt.Errorf("redisstore: create: %w", errHashSet)
	}
	if !hashSet {
		return apikey.Key{}, fmt.Errorf("%w: hash already exists", apikey.ErrDuplicateKey)
	}

	idSet, errIDSet := s.client.SetNX(ctx, s.idKey(key.ID), key.Hash, s.ttl).Result()
	if errIDSet != nil {
		_ = s.client.Del(ctx, s.hashKey(key.Hash)).Err()
		return apikey.Key{}, fmt.Errorf("redisstore: create: %w", errIDSet)
	}
	if !idSet {
		_ = s.client.Del(ctx, s.hashKey(key.Hash)).Err()
		return apikey.Key{}, fmt.Errorf("%w: id %s already exists", apikey.ErrDuplicateKey, key.ID)
	}

	if errTrack := s.client.SAdd(ctx, s.allKeysKey(), key.Hash).Err(); errTrack != nil {
		return apikey.Key{}, fmt.Errorf("redisstore: create: %w", errTrack)
	}
	return key, nil
}

// Get returns the record for a hash, falling through to the wrapped backend
// on a cache miss and repopulating the cache with the result.
func (s *Store) Get(ctx context.Context, hash string) (apikey.Key, bool, error) {
	data, errGet := s.client.Get(ctx, s.hashKey(hash)).Result()
	switch {
	case errGet == nil:
		key, errDecode := unmarshalKey(data)
		if errDecode != nil {
			return apikey.Key{}, false, errDecode
		}
		return key, true, nil
	case errors.Is(errGet, redis.Nil):
	default:
		return apikey.Key{}, false, fmt.Errorf("redisstore: get: %w", errGet)
	}

	if s.next == nil {
		return apikey.Key{}, false, nil
	}
	key, ok, errNext := s.next.Get(ctx, hash)
	if errNext != nil || !ok {
		return apikey.Key{}, ok, errNext
	}
	// Best effort; a failed cache fill must not fail the read.
	_ = s.cacheSet(ctx, key)
	return key, true, nil
}

// GetByID returns the record for a public id. With a wrapped backend the
// authoritative store answers directly; standalone, the secondary index
// resolves the hash first.
func (s *Store) GetByID(ctx context.Context, id string) (apikey.Key, bool, error) {
	if s.next != nil {
		return s.next.GetByID(ctx, id)
	}

	hash, errGet := s.client.Get(ctx, s.idKey(id)).Result()
	switch {
	case errGet == nil:
	case errors.Is(errGet, redis.Nil):
		return apikey.Key{}, false, nil
	default:
		return apikey.Key{}, false, fmt.Errorf("redisstore: get by id: %w", errGet)
	}
	return s.Get(ctx, hash)
}

// Update applies a patch, writing through to the wrapped backend when
// present and refreshing the cached copy.
func (s *Store) Update(ctx context.Context, hash string, patch apikey.KeyPatch) (apikey.Key, bool, error) {
	if s.next != nil {
		updated, ok, errNext := s.next.Update(ctx, hash, patch)
		if errNext != nil || !ok {
			return apikey.Key{}, ok, errNext
		}
		if errCache := s.cacheSet(ctx, updated); errCache != nil {
			return apikey.Key{}, false, errCache
		}
		return updated, true, nil
	}

	key, ok, errGet := s.Get(ctx, hash)
	if errGet != nil || !ok {
		return apikey.Key{}, ok, errGet
	}
	updated := patch.Apply(key)
	if errCache := s.cacheSet(ctx, updated); errCache != nil {
		return apikey.Key{}, false, errCache
	}
	return updated, true, nil
}

// Delete removes the record, its id index entry, and its tracking-set
// member; with a wrapped backend the authoritative delete decides the
// result.
func (s *Store) Delete(ctx context.Context, hash string) (bool, error) {
	key, cached, errGet := s.Get(ctx, hash)
	if errGet != nil {
		return false, errGet
	}

	if cached {
		if errDel := s.client.Del(ctx, s.hashKey(hash), s.idKey(key.ID)).Err(); errDel != nil {
			return false, fmt.Errorf("redisstore: delete: %w", errDel)
		}
		if errRem := s.client.SRem(ctx, s.allKeysKey(), hash).Err(); errRem != nil {
			return false, fmt.Errorf("redisstore: delete: %w", errRem)
		}
	}

	if s.next != nil {
		return s.next.Delete(ctx, hash)
	}
	return cached, nil
}

// List returns records newest-created-first. With a wrapped backend the
// authoritative store answers; standalone, the tracking set drives an MGET
// and stale members left by TTL expiry are pruned.
func (s *Store) List(ctx context.Context, opts apikey.ListOptions) ([]apikey.Key, error) {
	if s.next != nil {
		return s.next.List(ctx, opts)
	}

	members, errMembers := s.client.SMembers(ctx, s.allKeysKey()).Result()
	if errMembers != nil {
		return nil, fmt.Errorf("redisstore: list: %w", errMembers)
	}
	if len(members) == 0 {
		return []apikey.Key{}, nil
	}

	recordKeys := make([]string, len(members))
	for i, hash := range members {
		recordKeys[i] = s.hashKey(hash)
	}
	values, errValues := s.client.MGet(ctx, recordKeys...).Result()
	if errValues != nil {
		return nil, fmt.Errorf("redisstore: list: %w", errValues)
	}

	results := make([]apikey.Key, 0, len(values))
	var stale []any
	for i, raw := range values {
		if raw == nil {
			stale = append(stale, members[i])
			continue
		}
		data, ok := raw.(string)
		if !ok {
			continue
		}
		key, errDecode := unmarshalKey(data)
		if errDecode != nil {
			return nil, errDecode
		}
		results = append(results, key)
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, s.allKeysKey(), stale...).Err()
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []apikey.Key{}, nil
	}
	results = results[offset:]
	if opts.Limit > 0 && opts.Limit < len(results) {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Revoke marks the record inactive, writing through to the wrapped backend.
func (s *Store) Revoke(ctx context.Context, hash string) (bool, error) {
	if s.next != nil {
		ok, errNext := s.next.Revoke(ctx, hash)
		if errNext != nil || !ok {
			return ok, errNext
		}
		if errRefresh := s.refreshCachedFlag(ctx, hash, func(key *apikey.Key) {
			key.IsActive = false
		}); errRefresh != nil {
			return false, errRefresh
		}
		return true, nil
	}

	inactive := false
	_, ok, errUpdate := s.Update(ctx, hash, apikey.KeyPatch{IsActive: &inactive})
	return ok, errUpdate
}

// TouchLastUsed stamps the record's last-used time; absence is a no-op.
func (s *Store) TouchLastUsed(ctx context.Context, hash string) error {
	now := time.Now().UTC()

	if s.next != nil {
		if errNext := s.next.TouchLastUsed(ctx, hash); errNext != nil {
			return errNext
		}
		return s.refreshCachedFlag(ctx, hash, func(key *apikey.Key) {
			key.LastUsedAt = &now
		})
	}

	key, ok, errGet := s.Get(ctx, hash)
	if errGet != nil || !ok {
		return errGet
	}
	key.LastUsedAt = &now
	return s.cacheSet(ctx, key)
}

// Close releases the client only when the store built it itself. A wrapped
// backend is shared and is never closed from here.
func (s *Store) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// cacheSet writes a record and its id index, re-applying the TTL. SET
// replaces any previous TTL, so it must be set again on every write.
func (s *Store) cacheSet(ctx context.Context, key apikey.Key) error {
	payload, errMarshal := marshalKey(key)
	if errMarshal != nil {
		return errMarshal
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.hashKey(key.Hash), payload, s.ttl)
	pipe.Set(ctx, s.idKey(key.ID), key.Hash, s.ttl)
	pipe.SAdd(ctx, s.allKeysKey(), key.Hash)
	if _, errExec := pipe.Exec(ctx); errExec != nil {
		return fmt.Errorf("redisstore: cache set: %w", errExec)
	}
	return nil
}

// refreshCachedFlag mutates the cached copy of a record when one exists.
func (s *Store) refreshCachedFlag(ctx context.Context, hash string, mutate func(*apikey.Key)) error {
	data, errGet := s.client.Get(ctx, s.hashKey(hash)).Result()
	if errors.Is(errGet, redis.Nil) {
		return nil
	}
	if errGet != nil {
		return fmt.Errorf("redisstore: refresh: %w", errGet)
	}
	key, errDecode := unmarshalKey(data)
	if errDecode != nil {
		return errDecode
	}
	mutate(&key)
	return s.cacheSet(ctx, key)
}
