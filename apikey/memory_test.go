package apikey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newMemoryTestKey(i int) Key {
	return Key{
		ID:        fmt.Sprintf("id-%03d", i),
		Hash:      HashKey(fmt.Sprintf("raw-%03d", i)),
		Name:      fmt.Sprintf("key %d", i),
		Scopes:    []string{"ci:read"},
		IsActive:  true,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
	}
}

func TestMemoryBackendCreateAndGet(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	key := newMemoryTestKey(1)
	stored, errCreate := b.Create(ctx, key)
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if stored.ID != key.ID {
		t.Fatalf("unexpected stored id %q", stored.ID)
	}

	got, ok, errGet := b.Get(ctx, key.Hash)
	if errGet != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, errGet)
	}
	if got.Name != key.Name {
		t.Fatalf("unexpected name %q", got.Name)
	}

	byID, ok, errByID := b.GetByID(ctx, key.ID)
	if errByID != nil || !ok {
		t.Fatalf("get by id: ok=%v err=%v", ok, errByID)
	}
	if byID.Hash != key.Hash {
		t.Fatalf("unexpected hash %q", byID.Hash)
	}
}

func TestMemoryBackendRejectsDuplicates(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	key := newMemoryTestKey(1)
	if _, errCreate := b.Create(ctx, key); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	if _, errDup := b.Create(ctx, key); !errors.Is(errDup, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for duplicate hash, got %v", errDup)
	}

	sameID := newMemoryTestKey(2)
	sameID.ID = key.ID
	if _, errDup := b.Create(ctx, sameID); !errors.Is(errDup, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey for duplicate id, got %v", errDup)
	}
}

func TestMemoryBackendConcurrentCreateSameHash(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	key := newMemoryTestKey(1)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			k := key
			k.ID = fmt.Sprintf("id-concurrent-%d", n)
			_, errCreate := b.Create(ctx, k)
			results <- errCreate
		}(i)
	}
	wg.Wait()
	close(results)

	successes, duplicates := 0, 0
	for errCreate := range results {
		switch {
		case errCreate == nil:
			successes++
		case errors.Is(errCreate, ErrDuplicateKey):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", errCreate)
		}
	}
	if successes != 1 || duplicates != attempts-1 {
		t.Fatalf("expected exactly one success, got %d successes %d duplicates", successes, duplicates)
	}

	rows, errList := b.List(ctx, ListOptions{})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(rows))
	}
}

func TestMemoryBackendListOrderingAndPagination(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, errCreate := b.Create(ctx, newMemoryTestKey(i)); errCreate != nil {
			t.Fatalf("create %d: %v", i, errCreate)
		}
	}

	all, errList := b.List(ctx, ListOptions{})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("list not newest-first at %d", i)
		}
	}

	page, errPage := b.List(ctx, ListOptions{Limit: 2, Offset: 1})
	if errPage != nil {
		t.Fatalf("list page: %v", errPage)
	}
	if len(page) != 2 || page[0].ID != all[1].ID {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, errEmpty := b.List(ctx, ListOptions{Offset: 99})
	if errEmpty != nil || len(empty) != 0 {
		t.Fatalf("offset past end should yield empty list, got %v %v", empty, errEmpty)
	}
}

func TestMemoryBackendListNegativeOffsetIsZero(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	if _, errCreate := b.Create(ctx, newMemoryTestKey(1)); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	rows, errList := b.List(ctx, ListOptions{Offset: -1})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rows))
	}
}

func TestMemoryBackendUpdate(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	key := newMemoryTestKey(1)
	if _, errCreate := b.Create(ctx, key); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	name := "renamed"
	updated, ok, errUpdate := b.Update(ctx, key.Hash, KeyPatch{Name: &name, Scopes: []string{"x", "y"}})
	if errUpdate != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, errUpdate)
	}
	if updated.Name != "renamed" || len(updated.Scopes) != 2 {
		t.Fatalf("patch not applied: %+v", updated)
	}

	_, ok, errMissing := b.Update(ctx, "no-such-hash", KeyPatch{Name: &name})
	if errMissing != nil || ok {
		t.Fatalf("update of absent hash should be ok=false err=nil, got ok=%v err=%v", ok, errMissing)
	}
}

func TestMemoryBackendRevokeIdempotent(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	key := newMemoryTestKey(1)
	if _, errCreate := b.Create(ctx, key); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	for i := 0; i < 2; i++ {
		ok, errRevoke := b.Revoke(ctx, key.Hash)
		if errRevoke != nil || !ok {
			t.Fatalf("revoke %d: ok=%v err=%v", i, ok, errRevoke)
		}
	}

	got, _, _ := b.Get(ctx, key.Hash)
	if got.State() != StateRevoked {
		t.Fatalf("expected revoked state, got %s", got.State())
	}

	ok, errAbsent := b.Revoke(ctx, "no-such-hash")
	if errAbsent != nil || ok {
		t.Fatalf("revoke of absent hash should be false without error")
	}
}

func TestMemoryBackendDeleteAndTouch(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()
	key := newMemoryTestKey(1)
	if _, errCreate := b.Create(ctx, key); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}

	if errTouch := b.TouchLastUsed(ctx, key.Hash); errTouch != nil {
		t.Fatalf("touch: %v", errTouch)
	}
	got, _, _ := b.Get(ctx, key.Hash)
	if got.LastUsedAt == nil {
		t.Fatalf("last used not stamped")
	}

	if errTouch := b.TouchLastUsed(ctx, "no-such-hash"); errTouch != nil {
		t.Fatalf("touch of absent hash must be a no-op, got %v", errTouch)
	}

	removed, errDelete := b.Delete(ctx, key.Hash)
	if errDelete != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, errDelete)
	}
	if _, ok, _ := b.Get(ctx, key.Hash); ok {
		t.Fatalf("record still present after delete")
	}
	if _, ok, _ := b.GetByID(ctx, key.ID); ok {
		t.Fatalf("record still resolvable by id after delete")
	}

	removed, errDelete = b.Delete(ctx, key.Hash)
	if errDelete != nil || removed {
		t.Fatalf("second delete should be false without error")
	}
}

func TestMemoryBackendCloseIsRepeatable(t *testing.T) {
	b := NewMemoryBackend()
	if errClose := b.Close(); errClose != nil {
		t.Fatalf("close: %v", errClose)
	}
	if errClose := b.Close(); errClose != nil {
		t.Fatalf("second close: %v", errClose)
	}
}
