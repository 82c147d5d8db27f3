package circuits

import "context"

// Entity is the minimal view of an Identity Engine entity the circuit
// engine passes to a Storage Adapter — circuits never imports the identity
// package directly, keeping the dependency graph a tree per spec.md §9.
type Entity struct {
	GID         string
	Identifiers []map[string]string
	Payload     map[string]interface{}
}

// Adapter is the contract every Storage-Adapter kind implements: async
// store/retrieve, per spec.md §4.5. The circuit engine calls only this
// interface; internal/domain/storageadapter supplies the concrete kinds.
type Adapter interface {
	StoreItem(ctx context.Context, entity Entity) (StorageLocation, error)
	RetrieveItem(ctx context.Context, location StorageLocation) (Entity, error)
}

// AdapterResolver looks up the configured Adapter for a circuit, by its
// AdapterRef.ConfigID.
type AdapterResolver interface {
	Resolve(ctx context.Context, configID string) (Adapter, error)
}
