package redisstore

import (
	"strings"
	"testing"
	"time"

	"github.com/JacobCoffee/go-api-auth/apikey"
)

func TestNewRequiresClientOrAddr(t *testing.T) {
	if _, errNew := New(Config{}); errNew == nil {
		t.Fatalf("expected error for missing client and addr")
	}
}

func TestNewDefaultsPrefix(t *testing.T) {
	store, errNew := New(Config{Addr: "localhost:6379"})
	if errNew != nil {
		t.Fatalf("new store: %v", errNew)
	}
	defer store.Close()

	if !strings.HasPrefix(store.hashKey("abc"), DefaultKeyPrefix+"hash:") {
		t.Fatalf("unexpected hash key: %q", store.hashKey("abc"))
	}
}

func TestKeyNamespacing(t *testing.T) {
	store, errNew := New(Config{Addr: "localhost:6379", KeyPrefix: "myapp:keys:"})
	if errNew != nil {
		t.Fatalf("new store: %v", errNew)
	}
	defer store.Close()

	if got := store.hashKey("h1"); got != "myapp:keys:hash:h1" {
		t.Fatalf("unexpected hash key: %q", got)
	}
	if got := store.idKey("id1"); got != "myapp:keys:id:id1" {
		t.Fatalf("unexpected id key: %q", got)
	}
	if got := store.allKeysKey(); got != "myapp:keys:all_keys" {
		t.Fatalf("unexpected tracking key: %q", got)
	}
}

func TestStoredKeyRoundTrip(t *testing.T) {
	exp := time.Date(2027, 1, 2, 3, 4, 5, 0, time.UTC)
	key := apikey.Key{
		ID:        "id-001",
		Hash:      apikey.HashKey("raw-001"),
		Name:      "CI key",
		Scopes:    []string{"ci:read"},
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt: &exp,
		Metadata:  map[string]any{"env": "test"},
	}

	payload, errMarshal := marshalKey(key)
	if errMarshal != nil {
		t.Fatalf("marshal: %v", errMarshal)
	}
	decoded, errUnmarshal := unmarshalKey(payload)
	if errUnmarshal != nil {
		t.Fatalf("unmarshal: %v", errUnmarshal)
	}

	if decoded.ID != key.ID || decoded.Hash != key.Hash || decoded.Name != key.Name {
		t.Fatalf("identity fields lost: %+v", decoded)
	}
	if !decoded.CreatedAt.Equal(key.CreatedAt) {
		t.Fatalf("created at lost precision: %v", decoded.CreatedAt)
	}
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry did not round-trip: %v", decoded.ExpiresAt)
	}
	if decoded.LastUsedAt != nil {
		t.Fatalf("unset optional should stay nil")
	}
	if decoded.Metadata["env"] != "test" {
		t.Fatalf("metadata did not round-trip: %+v", decoded.Metadata)
	}
	if decoded.State() != apikey.StateActive {
		t.Fatalf("decoded record should still be active")
	}
}

func TestUnmarshalKeyRejectsGarbage(t *testing.T) {
	if _, errUnmarshal := unmarshalKey("{not json"); errUnmarshal == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
