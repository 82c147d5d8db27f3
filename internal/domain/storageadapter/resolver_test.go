package storageadapter

import (
	"context"
	"testing"

	"github.com/defarm/traceability-core/internal/storage"
	"github.com/defarm/traceability-core/internal/storage/memory"
)

func TestResolverBuildsAndCachesLocalOnlyAdapter(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	saved, err := store.SaveAdapterConfig(ctx, storage.AdapterConfig{ConfigID: "cfg-local", Kind: string(KindLocalOnly)})
	if err != nil {
		t.Fatalf("save config: %v", err)
	}

	resolver := NewResolver(store, nil)
	first, err := resolver.Resolve(ctx, saved.ConfigID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := first.(*LocalOnlyAdapter); !ok {
		t.Fatalf("expected *LocalOnlyAdapter, got %T", first)
	}

	second, err := resolver.Resolve(ctx, saved.ConfigID)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first != second {
		t.Fatal("expected the resolver to cache and reuse the same adapter instance")
	}
}

func TestResolverRejectsUnknownConfig(t *testing.T) {
	store := memory.New()
	resolver := NewResolver(store, nil)
	_, err := resolver.Resolve(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unknown adapter config")
	}
}

func TestResolverRejectsBlockchainOffchainWithoutChainEndpoints(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	saved, err := store.SaveAdapterConfig(ctx, storage.AdapterConfig{
		Kind:            string(KindBlockchainOffchain),
		Network:         "testnet",
		ContractAddress: "CONTRACT123",
		Endpoint:        "http://example.invalid",
	})
	if err != nil {
		t.Fatalf("save config: %v", err)
	}

	resolver := NewResolver(store, nil)
	if _, err := resolver.Resolve(ctx, saved.ConfigID); err == nil {
		t.Fatal("expected an error when no chain endpoints are configured for the network")
	}
}
