package storageadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/defarm/traceability-core/infrastructure/chain"
)

func TestBlockchainOffchainAdapterAnchorsOnFirstStoreAndSkipsOnRepeat(t *testing.T) {
	offchainStore := make(map[string][]byte)
	invokeCount := 0

	offchain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"content_id": "content-cid-1"})
			return
		}
		w.Write(offchainStore["content-cid-1"])
	}))
	defer offchain.Close()

	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invokeCount++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]string{"hash": "tx-hash-1"},
		})
	}))
	defer rpc.Close()

	pool, err := chain.NewRPCPool(&chain.RPCPoolConfig{
		Endpoints:           []string{rpc.URL},
		MaxConsecutiveFails: 3,
	})
	if err != nil {
		t.Fatalf("new rpc pool: %v", err)
	}

	adapter, err := NewBlockchainOffchainAdapter(Config{
		ConfigID:        "cfg-1",
		Endpoint:        offchain.URL,
		ContractAddress: "CONTRACT123",
	}, nil, pool)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	ctx := context.Background()
	first, err := adapter.StoreItem(ctx, Entity{GID: "gid-1", Payload: map[string]interface{}{"breed": "holstein"}})
	if err != nil {
		t.Fatalf("first store: %v", err)
	}
	if first.AnchorTxHash != "tx-hash-1" {
		t.Fatalf("expected anchor tx hash, got %q", first.AnchorTxHash)
	}
	if invokeCount != 1 {
		t.Fatalf("expected 1 anchor call, got %d", invokeCount)
	}

	second, err := adapter.StoreItem(ctx, Entity{GID: "gid-1", Payload: map[string]interface{}{"breed": "holstein"}})
	if err != nil {
		t.Fatalf("second store: %v", err)
	}
	if second.AnchorTxHash != "tx-hash-1" {
		t.Fatalf("expected same anchor tx hash reused, got %q", second.AnchorTxHash)
	}
	if invokeCount != 1 {
		t.Fatalf("expected anchor call count to stay at 1 for an unchanged content id, got %d", invokeCount)
	}
}

func TestNewBlockchainOffchainAdapterRequiresContractAddress(t *testing.T) {
	_, err := NewBlockchainOffchainAdapter(Config{ConfigID: "cfg-1", Endpoint: "http://example.invalid"}, nil, nil)
	if err == nil {
		t.Fatal("expected an error when contract address is missing")
	}
}
