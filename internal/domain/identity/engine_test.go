package identity

import (
	"context"
	"testing"

	"github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage/memory"
)

func TestResolveCreatesNewItemWhenNoMatch(t *testing.T) {
	store := memory.New()
	e := New(store)

	result, err := e.Resolve(context.Background(), Bundle{
		Identifiers: []Identifier{
			{Namespace: "farm-a", Key: "ear_tag", Value: "EU123", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Payload:   map[string]interface{}{"breed": "holstein"},
		CircuitID: "circuit-1",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Status != StatusNewItemCreated {
		t.Fatalf("expected StatusNewItemCreated, got %s", result.Status)
	}
	if result.GID == "" {
		t.Fatal("expected a minted GID")
	}
}

func TestResolveEnrichesExistingItemOnCanonicalMatch(t *testing.T) {
	store := memory.New()
	e := New(store)
	ctx := context.Background()

	bundle := Bundle{
		Identifiers: []Identifier{
			{Namespace: "farm-a", Key: "ear_tag", Value: "EU123", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Payload:   map[string]interface{}{"breed": "holstein"},
		CircuitID: "circuit-1",
	}
	first, err := e.Resolve(ctx, bundle)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	bundle.Payload = map[string]interface{}{"weight_kg": 620}
	second, err := e.Resolve(ctx, bundle)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	if second.Status != StatusExistingItemEnriched {
		t.Fatalf("expected StatusExistingItemEnriched, got %s", second.Status)
	}
	if second.GID != first.GID {
		t.Fatalf("expected same GID, got %s vs %s", second.GID, first.GID)
	}
	if len(second.EnrichedKeys) != 1 || second.EnrichedKeys[0] != "weight_kg" {
		t.Fatalf("expected weight_kg enriched, got %v", second.EnrichedKeys)
	}
}

func TestResolveReportsEnrichmentConflictOnOverlappingKey(t *testing.T) {
	store := memory.New()
	e := New(store)
	ctx := context.Background()

	bundle := Bundle{
		Identifiers: []Identifier{
			{Namespace: "farm-a", Key: "ear_tag", Value: "EU123", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Payload:   map[string]interface{}{"breed": "holstein"},
		CircuitID: "circuit-1",
	}
	if _, err := e.Resolve(ctx, bundle); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	bundle.Payload = map[string]interface{}{"breed": "jersey"}
	second, err := e.Resolve(ctx, bundle)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if len(second.EnrichmentConflicts) != 1 || second.EnrichmentConflicts[0] != "breed" {
		t.Fatalf("expected breed conflict, got %v", second.EnrichmentConflicts)
	}
}

func TestResolveRejectsDisallowedNamespace(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, err := e.Resolve(context.Background(), Bundle{
		Identifiers: []Identifier{
			{Namespace: "unknown-ns", Key: "ear_tag", Value: "EU123", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Alias: AliasConfig{AllowedNamespaces: []string{"farm-a"}},
	})
	if !errors.Is(err, errors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveRejectsMissingRequiredIdentifier(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, err := e.Resolve(context.Background(), Bundle{
		Identifiers: []Identifier{
			{Namespace: "farm-a", Key: "ear_tag", Value: "EU123", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Alias: AliasConfig{RequiredContextual: []string{"location"}},
	})
	if !errors.Is(err, errors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveMatchesByFingerprintWhenNoCanonicalIdentifier(t *testing.T) {
	store := memory.New()
	e := New(store)
	ctx := context.Background()

	bundle := Bundle{
		Identifiers: []Identifier{
			{Namespace: "farm-a", Key: "color", Value: "brown", Kind: KindContextual},
			{Namespace: "farm-a", Key: "age_months", Value: "14", Kind: KindContextual},
		},
		Alias:     AliasConfig{UseFingerprint: true},
		CircuitID: "circuit-1",
	}
	first, err := e.Resolve(ctx, bundle)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	second, err := e.Resolve(ctx, bundle)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.GID != first.GID {
		t.Fatalf("expected fingerprint match to reuse GID, got %s vs %s", second.GID, first.GID)
	}
	if second.Status != StatusExistingItemEnriched {
		t.Fatalf("expected StatusExistingItemEnriched, got %s", second.Status)
	}
}

func TestResolveAutoAppliesDefaultNamespace(t *testing.T) {
	store := memory.New()
	e := New(store)

	result, err := e.Resolve(context.Background(), Bundle{
		Identifiers: []Identifier{
			{Key: "ear_tag", Value: "EU999", Kind: KindCanonical, Registry: "eu-livestock"},
		},
		Alias: AliasConfig{AutoApplyNamespace: true, DefaultNamespace: "farm-a"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Status != StatusNewItemCreated {
		t.Fatalf("expected StatusNewItemCreated, got %s", result.Status)
	}

	gid, found, err := store.GetGIDByCanonical(context.Background(), "farm-a", "eu-livestock", "EU999")
	if err != nil {
		t.Fatalf("get gid: %v", err)
	}
	if !found || gid != result.GID {
		t.Fatalf("expected canonical binding under applied default namespace")
	}
}
