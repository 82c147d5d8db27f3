package cached

import (
	"context"
	"testing"
	"time"

	"github.com/defarm/traceability-core/infrastructure/cache"
	"github.com/defarm/traceability-core/internal/storage"
	"github.com/defarm/traceability-core/internal/storage/memory"
)

type countingStore struct {
	storage.Store
	getItemCalls    int
	getCanonicalCalls int
	getCircuitCalls int
}

func (c *countingStore) GetItemByGID(ctx context.Context, gid string) (storage.Item, bool, error) {
	c.getItemCalls++
	return c.Store.GetItemByGID(ctx, gid)
}

func (c *countingStore) GetGIDByCanonical(ctx context.Context, namespace, registry, value string) (string, bool, error) {
	c.getCanonicalCalls++
	return c.Store.GetGIDByCanonical(ctx, namespace, registry, value)
}

func (c *countingStore) GetCircuit(ctx context.Context, id string) (storage.Circuit, bool, error) {
	c.getCircuitCalls++
	return c.Store.GetCircuit(ctx, id)
}

func newTestStore() (*Store, *countingStore) {
	backing := &countingStore{Store: memory.New()}
	c := cache.NewMemoryCache(time.Minute)
	return New(backing, c, time.Minute), backing
}

func TestGetItemByGIDPopulatesCacheAndSkipsBackingOnRepeat(t *testing.T) {
	store, backing := newTestStore()
	ctx := context.Background()

	created, err := store.CreateItem(ctx, storage.Item{GID: "gid-1"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	_ = created
	backingCallsBeforeGet := backing.getItemCalls

	if _, found, err := store.GetItemByGID(ctx, "gid-1"); err != nil || !found {
		t.Fatalf("get item: found=%v err=%v", found, err)
	}
	if backing.getItemCalls != backingCallsBeforeGet {
		t.Fatalf("expected cache hit to avoid a backing read, got %d backing calls", backing.getItemCalls)
	}

	if _, found, err := store.GetItemByGID(ctx, "gid-1"); err != nil || !found {
		t.Fatalf("second get item: found=%v err=%v", found, err)
	}
	if backing.getItemCalls != backingCallsBeforeGet {
		t.Fatalf("expected second get to also hit the cache, got %d backing calls", backing.getItemCalls)
	}
}

func TestGetItemByGIDReadThroughOnCacheMiss(t *testing.T) {
	store, backing := newTestStore()
	ctx := context.Background()

	if _, err := store.Store.CreateItem(ctx, storage.Item{GID: "gid-1"}); err != nil {
		t.Fatalf("seed item directly in the backing store: %v", err)
	}

	item, found, err := store.GetItemByGID(ctx, "gid-1")
	if err != nil || !found {
		t.Fatalf("get item: found=%v err=%v", found, err)
	}
	if item.GID != "gid-1" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if backing.getItemCalls != 1 {
		t.Fatalf("expected exactly one backing read for the cache miss, got %d", backing.getItemCalls)
	}

	if _, _, err := store.GetItemByGID(ctx, "gid-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if backing.getItemCalls != 1 {
		t.Fatalf("expected the second get to be served from the now-populated cache, got %d backing calls", backing.getItemCalls)
	}
}

func TestBindCanonicalPopulatesCacheForSubsequentLookup(t *testing.T) {
	store, backing := newTestStore()
	ctx := context.Background()

	if err := store.BindCanonical(ctx, "farm-a", "eu-livestock", "EU1", "gid-1"); err != nil {
		t.Fatalf("bind canonical: %v", err)
	}

	gid, found, err := store.GetGIDByCanonical(ctx, "farm-a", "eu-livestock", "EU1")
	if err != nil || !found || gid != "gid-1" {
		t.Fatalf("unexpected lookup: gid=%s found=%v err=%v", gid, found, err)
	}
	if backing.getCanonicalCalls != 0 {
		t.Fatalf("expected the bind to have already populated the cache, got %d backing reads", backing.getCanonicalCalls)
	}
}

func TestUpdateCircuitInvalidatesRatherThanRepopulates(t *testing.T) {
	store, backing := newTestStore()
	ctx := context.Background()

	created, err := store.CreateCircuit(ctx, storage.Circuit{Name: "dairy-coop", OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("create circuit: %v", err)
	}

	if _, found, err := store.GetCircuit(ctx, created.ID); err != nil || !found {
		t.Fatalf("get circuit: found=%v err=%v", found, err)
	}
	callsAfterFirstGet := backing.getCircuitCalls

	created.Name = "dairy-coop-renamed"
	if _, err := store.UpdateCircuit(ctx, created); err != nil {
		t.Fatalf("update circuit: %v", err)
	}

	updated, found, err := store.GetCircuit(ctx, created.ID)
	if err != nil || !found {
		t.Fatalf("get circuit after update: found=%v err=%v", found, err)
	}
	if updated.Name != "dairy-coop-renamed" {
		t.Fatalf("expected the renamed circuit, got %q", updated.Name)
	}
	if backing.getCircuitCalls != callsAfterFirstGet+1 {
		t.Fatalf("expected the post-update read to fall through to the backing store, got %d calls (was %d)", backing.getCircuitCalls, callsAfterFirstGet)
	}
}

func TestCloseClosesBothCacheAndBackingStore(t *testing.T) {
	store, _ := newTestStore()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
