package storageadapter

import (
	"context"
	"testing"
)

func TestLocalOnlyAdapterStoreThenRetrieveRoundTrips(t *testing.T) {
	a := NewLocalOnlyAdapter()
	ctx := context.Background()

	entity := Entity{GID: "gid-1", Payload: map[string]interface{}{"breed": "holstein"}}
	loc, err := a.StoreItem(ctx, entity)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if loc.PrimaryLocation != "local://gid-1" {
		t.Fatalf("unexpected location: %s", loc.PrimaryLocation)
	}
	if loc.AnchorTxHash != "" {
		t.Fatal("local-only adapter should never anchor")
	}

	got, err := a.RetrieveItem(ctx, loc)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.GID != entity.GID || got.Payload["breed"] != "holstein" {
		t.Fatalf("unexpected retrieved entity: %+v", got)
	}
}

func TestLocalOnlyAdapterRetrieveUnknownLocationFails(t *testing.T) {
	a := NewLocalOnlyAdapter()
	_, err := a.RetrieveItem(context.Background(), StorageLocation{PrimaryLocation: "local://missing"})
	if err == nil {
		t.Fatal("expected error retrieving an unknown location")
	}
}
