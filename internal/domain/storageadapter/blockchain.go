package storageadapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/defarm/traceability-core/infrastructure/chain"
)

// emitUpdateEventMethod is the IPCM contract entrypoint the original Stellar
// implementation anchors through; see original_source/src/stellar_client.rs.
const emitUpdateEventMethod = "emit_update_event"

// BlockchainOffchainAdapter writes the artifact off-chain first, then
// anchors a (gid -> content_id) event on the ledger. Per spec.md §4.5 the
// anchor call must be idempotent: repeating StoreItem for a GID whose
// content_id hasn't changed must not submit a second transaction, so the
// adapter remembers the last content_id it anchored per GID.
type BlockchainOffchainAdapter struct {
	offchain *OffchainOnlyAdapter
	client   *chain.Client
	pool     *chain.RPCPool
	contract string

	mu       sync.Mutex
	anchored map[string]anchorRecord
}

type anchorRecord struct {
	contentID string
	txHash    string
}

// NewBlockchainOffchainAdapter builds a combined adapter. pool may be nil,
// in which case client is used directly with no failover.
func NewBlockchainOffchainAdapter(cfg Config, client *chain.Client, pool *chain.RPCPool) (*BlockchainOffchainAdapter, error) {
	offchain, err := NewOffchainOnlyAdapter(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("blockchain+offchain adapter requires a contract address")
	}
	return &BlockchainOffchainAdapter{
		offchain: offchain,
		client:   client,
		pool:     pool,
		contract: cfg.ContractAddress,
		anchored: make(map[string]anchorRecord),
	}, nil
}

func (a *BlockchainOffchainAdapter) StoreItem(ctx context.Context, entity Entity) (StorageLocation, error) {
	loc, err := a.offchain.StoreItem(ctx, entity)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("offchain write: %w", err)
	}

	a.mu.Lock()
	prev, seen := a.anchored[entity.GID]
	a.mu.Unlock()
	if seen && prev.contentID == loc.PrimaryLocation {
		loc.AnchorTxHash = prev.txHash
		loc.ContractAddress = a.contract
		return loc, nil
	}

	txHash, err := a.anchor(ctx, entity.GID, loc.PrimaryLocation)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("anchor: %w", err)
	}

	a.mu.Lock()
	a.anchored[entity.GID] = anchorRecord{contentID: loc.PrimaryLocation, txHash: txHash}
	a.mu.Unlock()

	loc.AnchorTxHash = txHash
	loc.ContractAddress = a.contract
	return loc, nil
}

func (a *BlockchainOffchainAdapter) anchor(ctx context.Context, gid, contentID string) (string, error) {
	args := []interface{}{gid, contentID}

	if a.pool != nil {
		var txHash string
		err := a.pool.ExecuteWithFailover(ctx, 3, func(c *chain.Client) error {
			hash, err := c.InvokeHostFunction(ctx, a.contract, emitUpdateEventMethod, args)
			if err != nil {
				return err
			}
			txHash = hash
			return nil
		})
		return txHash, err
	}

	return a.client.InvokeHostFunction(ctx, a.contract, emitUpdateEventMethod, args)
}

func (a *BlockchainOffchainAdapter) RetrieveItem(ctx context.Context, location StorageLocation) (Entity, error) {
	return a.offchain.RetrieveItem(ctx, location)
}
