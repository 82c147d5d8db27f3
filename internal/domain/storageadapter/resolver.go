package storageadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/defarm/traceability-core/infrastructure/chain"
	"github.com/defarm/traceability-core/internal/domain/circuits"
	"github.com/defarm/traceability-core/internal/storage"
)

// ChainEndpoints maps a network name (e.g. "testnet", "mainnet") to the
// RPC pool configured for it. The resolver shares one pool per network
// across every Blockchain+Offchain adapter instance it builds.
type ChainEndpoints map[string]*chain.RPCPool

// Resolver implements circuits.AdapterResolver against an AdapterConfigStore,
// constructing and caching the concrete adapter kind named by each config.
type Resolver struct {
	configs   storage.AdapterConfigStore
	endpoints ChainEndpoints

	mu       sync.Mutex
	instances map[string]circuits.Adapter
}

// NewResolver builds a Resolver. endpoints may be nil if no network in use
// configures a Blockchain+Offchain adapter.
func NewResolver(configs storage.AdapterConfigStore, endpoints ChainEndpoints) *Resolver {
	return &Resolver{
		configs:   configs,
		endpoints: endpoints,
		instances: make(map[string]circuits.Adapter),
	}
}

func (r *Resolver) Resolve(ctx context.Context, configID string) (circuits.Adapter, error) {
	r.mu.Lock()
	if a, ok := r.instances[configID]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()

	rec, found, err := r.configs.GetAdapterConfig(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("load adapter config %s: %w", configID, err)
	}
	if !found {
		return nil, fmt.Errorf("adapter config %s not found", configID)
	}

	adapter, err := r.build(rec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.instances[configID] = adapter
	r.mu.Unlock()
	return adapter, nil
}

func (r *Resolver) build(rec storage.AdapterConfig) (circuits.Adapter, error) {
	cfg := Config{
		ConfigID:        rec.ConfigID,
		Kind:            Kind(rec.Kind),
		Endpoint:        rec.Endpoint,
		Auth:            AuthMode(rec.Auth),
		AuthSecret:      rec.AuthSecretRef,
		Timeout:         time.Duration(rec.TimeoutSecs) * time.Second,
		RetryCount:      rec.RetryCount,
		MaxConcurrent:   rec.MaxConcurrent,
		ContractAddress: rec.ContractAddress,
		Network:         rec.Network,
	}

	switch cfg.Kind {
	case KindLocalOnly:
		return NewLocalOnlyAdapter(), nil
	case KindOffchainOnly:
		return NewOffchainOnlyAdapter(cfg)
	case KindBlockchainOffchain:
		pool := r.endpoints[rec.Network]
		if pool == nil {
			return nil, fmt.Errorf("no chain endpoints configured for network %q", rec.Network)
		}
		return NewBlockchainOffchainAdapter(cfg, nil, pool)
	default:
		return nil, fmt.Errorf("unknown adapter kind %q", rec.Kind)
	}
}

var _ circuits.AdapterResolver = (*Resolver)(nil)
