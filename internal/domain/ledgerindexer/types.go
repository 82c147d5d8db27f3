// Package ledgerindexer implements the Ledger Indexer named in spec.md §4.6:
// a background poller per network that reads anchor events off the public
// ledger via Soroban-style JSON-RPC and ingests them into the timeline
// store, idempotent on (gid, tx_hash).
package ledgerindexer

import "time"

// defaultInitialLedgerLookback mirrors the original implementation's
// bootstrap window (original_source/src/blockchain_event_listener.rs).
const defaultInitialLedgerLookback = int64(5_000)

// NetworkConfig describes one network this indexer polls.
type NetworkConfig struct {
	Network         string
	ContractAddress string
	PollInterval    time.Duration
	BatchSize       int64
	RPCURLs         []string
}

// Config is the indexer's full configuration: one NetworkConfig per chain
// it watches.
type Config struct {
	Networks []NetworkConfig
}

func (c NetworkConfig) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 10 * time.Second
	}
	return c.PollInterval
}

func (c NetworkConfig) batchSize() int64 {
	if c.BatchSize <= 0 {
		return 100
	}
	return c.BatchSize
}
