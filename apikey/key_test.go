package apikey

import (
	"testing"
	"time"
)

func TestKeyStateDerivation(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	active := Key{IsActive: true, ExpiresAt: &future}
	if active.State() != StateActive || !active.IsValid() {
		t.Fatalf("expected active, got %s", active.State())
	}

	expired := Key{IsActive: true, ExpiresAt: &past}
	if expired.State() != StateExpired || expired.IsValid() {
		t.Fatalf("expected expired, got %s", expired.State())
	}

	// Revocation takes precedence over expiry.
	revoked := Key{IsActive: false, ExpiresAt: &past}
	if revoked.State() != StateRevoked {
		t.Fatalf("expected revoked, got %s", revoked.State())
	}

	noExpiry := Key{IsActive: true}
	if noExpiry.State() != StateActive {
		t.Fatalf("keys without expiry should stay active")
	}
}

func TestKeyCloneIsolation(t *testing.T) {
	exp := time.Now().UTC()
	original := Key{
		Scopes:    []string{"a"},
		ExpiresAt: &exp,
		Metadata:  map[string]any{"env": "test"},
	}

	clone := original.Clone()
	clone.Scopes[0] = "b"
	clone.Metadata["env"] = "prod"
	*clone.ExpiresAt = exp.Add(time.Hour)

	if original.Scopes[0] != "a" {
		t.Fatalf("clone aliased scopes")
	}
	if original.Metadata["env"] != "test" {
		t.Fatalf("clone aliased metadata")
	}
	if !original.ExpiresAt.Equal(exp) {
		t.Fatalf("clone aliased expiry")
	}
}

func TestKeyPatchApply(t *testing.T) {
	created := time.Now().UTC().Add(-time.Hour)
	key := Key{
		ID:        "id-1",
		Hash:      "hash-1",
		Name:      "old",
		Scopes:    []string{"a"},
		IsActive:  true,
		CreatedAt: created,
		Metadata:  map[string]any{"k": "v"},
	}

	name := "new"
	inactive := false
	exp := time.Now().UTC().Add(time.Hour)
	patched := KeyPatch{
		Name:         &name,
		Scopes:       []string{"b", "c"},
		IsActive:     &inactive,
		ExpiresAt:    &exp,
		SetExpiresAt: true,
		Metadata:     map[string]any{"k2": "v2"},
	}.Apply(key)

	if patched.Name != "new" || patched.IsActive || patched.ExpiresAt == nil {
		t.Fatalf("patch not applied: %+v", patched)
	}
	if len(patched.Scopes) != 2 || patched.Scopes[0] != "b" {
		t.Fatalf("scopes not replaced: %v", patched.Scopes)
	}
	if _, stale := patched.Metadata["k"]; stale {
		t.Fatalf("metadata should be replaced wholesale")
	}
	if patched.ID != "id-1" || patched.Hash != "hash-1" || !patched.CreatedAt.Equal(created) {
		t.Fatalf("immutable fields changed: %+v", patched)
	}

	// Unset fields leave the record untouched.
	same := KeyPatch{}.Apply(key)
	if same.Name != "old" || !same.IsActive || len(same.Scopes) != 1 {
		t.Fatalf("empty patch mutated record: %+v", same)
	}

	// SetExpiresAt with a nil value clears the expiry.
	cleared := KeyPatch{SetExpiresAt: true}.Apply(patched)
	if cleared.ExpiresAt != nil {
		t.Fatalf("expiry not cleared")
	}
}
