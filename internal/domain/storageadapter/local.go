package storageadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// LocalOnlyAdapter keeps artifacts in process memory. It never produces an
// on-chain anchor; PrimaryLocation is a synthetic in-process address.
// Intended for tests and single-process deployments.
type LocalOnlyAdapter struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewLocalOnlyAdapter returns an empty LocalOnlyAdapter.
func NewLocalOnlyAdapter() *LocalOnlyAdapter {
	return &LocalOnlyAdapter{items: make(map[string][]byte)}
}

func (a *LocalOnlyAdapter) StoreItem(_ context.Context, entity Entity) (StorageLocation, error) {
	blob, err := json.Marshal(entity)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("marshal entity: %w", err)
	}

	location := "local://" + entity.GID

	a.mu.Lock()
	a.items[location] = blob
	a.mu.Unlock()

	return StorageLocation{PrimaryLocation: location}, nil
}

func (a *LocalOnlyAdapter) RetrieveItem(_ context.Context, location StorageLocation) (Entity, error) {
	a.mu.RLock()
	blob, ok := a.items[location.PrimaryLocation]
	a.mu.RUnlock()
	if !ok {
		return Entity{}, fmt.Errorf("no item at %s", location.PrimaryLocation)
	}

	var entity Entity
	if err := json.Unmarshal(blob, &entity); err != nil {
		return Entity{}, fmt.Errorf("unmarshal entity: %w", err)
	}
	return entity, nil
}

var _ interface {
	StoreItem(context.Context, Entity) (StorageLocation, error)
	RetrieveItem(context.Context, StorageLocation) (Entity, error)
} = (*LocalOnlyAdapter)(nil)
