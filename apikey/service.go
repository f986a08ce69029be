package apikey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Config holds construction-time options for a Service.
type Config struct {
	// Backend stores the key records. Required.
	Backend Backend
	// Prefix is prepended to generated raw keys. Defaults to
	// DefaultKeyPrefix when empty.
	Prefix string
	// Hierarchy optionally declares implied scopes. Validated up front;
	// a cyclic hierarchy fails construction.
	Hierarchy Hierarchy
}

// IssueParams are the caller-supplied fields for a new key.
type IssueParams struct {
	Name      string
	Scopes    []string
	ExpiresAt *time.Time
	Metadata  map[string]any
}

// Service ties the key codec, a storage backend, and the scope checker into
// the operations an integration layer consumes. It performs no logging and
// no retries of its own; faults surface synchronously to the caller.
type Service struct {
	backend Backend
	checker *Checker
	prefix  string
}

// New validates cfg and constructs a Service. Misconfiguration, such as a
// missing backend or a cyclic hierarchy, fails here rather than at request
// time.
func New(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, errors.New("apikey: config: backend is required")
	}
	checker, err := NewChecker(cfg.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("apikey: config: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Service{
		backend: cfg.Backend,
		checker: checker,
		prefix:  prefix,
	}, nil
}

// Prefix returns the configured raw-key prefix.
func (s *Service) Prefix() string { return s.prefix }

// Checker returns the scope checker bound to the configured hierarchy.
func (s *Service) Checker() *Checker { return s.checker }

// Issue generates a new key, persists its record, and returns the raw key.
// The raw key is returned exactly once and cannot be recovered afterwards.
func (s *Service) Issue(ctx context.Context, params IssueParams) (string, Key, error) {
	raw, hash, err := Generate(s.prefix)
	if err != nil {
		return "", Key{}, err
	}

	key := Key{
		ID:        uuid.NewString(),
		Hash:      hash,
		Name:      params.Name,
		Scopes:    params.Scopes,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: params.ExpiresAt,
		Metadata:  params.Metadata,
	}
	stored, err := s.backend.Create(ctx, key)
	if err != nil {
		return "", Key{}, err
	}
	return raw, stored, nil
}

// Authenticate resolves a presented raw key to its record and checks the
// derived lifecycle state. It reports the specific lifecycle failure so the
// integration layer can answer precisely: ErrKeyNotFound, ErrKeyRevoked, or
// ErrKeyExpired.
func (s *Service) Authenticate(ctx context.Context, raw string) (Key, error) {
	if _, err := DisplayID(raw, s.prefix); err != nil {
		return Key{}, err
	}

	hash := HashKey(raw)
	key, ok, err := s.backend.Get(ctx, hash)
	if err != nil {
		return Key{}, fmt.Errorf("apikey: authenticate: %w", err)
	}
	if !ok {
		return Key{}, ErrKeyNotFound
	}

	switch key.State() {
	case StateRevoked:
		return Key{}, ErrKeyRevoked
	case StateExpired:
		return Key{}, ErrKeyExpired
	}

	// Best effort; a failed touch must not fail the authentication.
	_ = s.backend.TouchLastUsed(ctx, hash)

	return key, nil
}

// Authorize checks that key's scopes, after hierarchy expansion, satisfy
// required under the given requirement.
func (s *Service) Authorize(key Key, required []string, requirement Requirement) error {
	if s.checker.HasScopes(key.Scopes, required, requirement) {
		return nil
	}
	missing := s.checker.Missing(key.Scopes, required)
	return fmt.Errorf("%w: missing %v", ErrInsufficientScope, missing)
}

// Get returns the record for a hash.
func (s *Service) Get(ctx context.Context, hash string) (Key, bool, error) {
	return s.backend.Get(ctx, hash)
}

// GetByID returns the record for a public id.
func (s *Service) GetByID(ctx context.Context, id string) (Key, bool, error) {
	return s.backend.GetByID(ctx, id)
}

// List returns stored records newest-created-first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Key, error) {
	return s.backend.List(ctx, opts)
}

// Update applies a partial patch to the record for a hash.
func (s *Service) Update(ctx context.Context, hash string, patch KeyPatch) (Key, bool, error) {
	return s.backend.Update(ctx, hash, patch)
}

// Revoke marks the record for a hash inactive.
func (s *Service) Revoke(ctx context.Context, hash string) (bool, error) {
	return s.backend.Revoke(ctx, hash)
}

// Delete removes the record for a hash.
func (s *Service) Delete(ctx context.Context, hash string) (bool, error) {
	return s.backend.Delete(ctx, hash)
}

// Close releases the backend's resources.
func (s *Service) Close() error {
	return s.backend.Close()
}
