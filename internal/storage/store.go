// Package storage defines the single storage contract every domain engine
// depends on. Concrete backends (in-process map, Postgres, Postgres fronted
// by Redis) all satisfy the same Store interface; engines never see which
// one is wired in.
package storage

import (
	"context"
	"time"
)

// ItemStore persists Entities (spec.md calls these Items) and the secondary
// lookups the Identity Engine needs: by canonical tuple, by fingerprint,
// and by GID.
type ItemStore interface {
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	GetItemByGID(ctx context.Context, gid string) (Item, bool, error)
	GetGIDByCanonical(ctx context.Context, namespace, registry, value string) (string, bool, error)
	GetGIDByFingerprint(ctx context.Context, fingerprint, circuitID string) (string, bool, error)
	BindCanonical(ctx context.Context, namespace, registry, value, gid string) error
	BindFingerprint(ctx context.Context, fingerprint, circuitID, gid string) error

	// GetGIDByLocalID and BindLocalID back the circuit engine's LID->GID
	// map (spec.md §4.4 step 6): a submitter's local_id resolves to the
	// GID a completed push minted or enriched.
	GetGIDByLocalID(ctx context.Context, localID string) (string, bool, error)
	BindLocalID(ctx context.Context, localID, gid string) error
}

// EventStore persists the append-only event log.
type EventStore interface {
	CreateEvent(ctx context.Context, ev Event) (Event, error)
	UpdateEvent(ctx context.Context, ev Event) (Event, error)
	GetEventByContentHash(ctx context.Context, contentHash string) (Event, bool, error)
	GetEventByLocalID(ctx context.Context, localID string) (Event, bool, error)
	ListEventsByGID(ctx context.Context, gid string, since, until time.Time, eventType string) ([]Event, error)
}

// CircuitStore persists circuits, membership, and join requests.
type CircuitStore interface {
	CreateCircuit(ctx context.Context, c Circuit) (Circuit, error)
	UpdateCircuit(ctx context.Context, c Circuit) (Circuit, error)
	GetCircuit(ctx context.Context, id string) (Circuit, bool, error)
}

// CircuitOperationStore persists push/pull operation records.
type CircuitOperationStore interface {
	CreateOperation(ctx context.Context, op CircuitOperation) (CircuitOperation, error)
	UpdateOperation(ctx context.Context, op CircuitOperation) (CircuitOperation, error)
	GetOperation(ctx context.Context, id string) (CircuitOperation, bool, error)
	ListPendingOperations(ctx context.Context, circuitID string) ([]CircuitOperation, error)
}

// ActivityStore persists best-effort user activity records.
type ActivityStore interface {
	RecordActivity(ctx context.Context, a UserActivity) error
	ListActivitiesByUser(ctx context.Context, userID string, limit int) ([]UserActivity, error)
}

// AuditStore persists security-relevant audit events and derived incidents.
type AuditStore interface {
	RecordAuditEvent(ctx context.Context, e AuditEvent) (AuditEvent, error)
	QueryAuditEvents(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	RecordIncident(ctx context.Context, i SecurityIncident) (SecurityIncident, error)
}

// TimelineStore persists the per-GID, ledger-ordered content-id timeline.
type TimelineStore interface {
	AddCIDToTimeline(ctx context.Context, entry TimelineEntry) (TimelineEntry, error)
	ListTimeline(ctx context.Context, gid string) ([]TimelineEntry, error)
	GetTimelineEntry(ctx context.Context, gid string, sequence int64) (TimelineEntry, bool, error)
}

// IndexingProgressStore persists per-network indexer progress.
type IndexingProgressStore interface {
	GetIndexingProgress(ctx context.Context, network string) (IndexingProgress, bool, error)
	SaveIndexingProgress(ctx context.Context, p IndexingProgress) (IndexingProgress, error)
	ListIndexingProgress(ctx context.Context) ([]IndexingProgress, error)
}

// AdapterConfigStore persists storage-adapter configuration.
type AdapterConfigStore interface {
	GetAdapterConfig(ctx context.Context, id string) (AdapterConfig, bool, error)
	GetDefaultAdapterConfig(ctx context.Context, circuitID string) (AdapterConfig, bool, error)
	SaveAdapterConfig(ctx context.Context, cfg AdapterConfig) (AdapterConfig, error)
}

// StorageRecordStore persists the storage-history log per GID (which
// adapter holds the primary artifact and where).
type StorageRecordStore interface {
	AddStorageRecord(ctx context.Context, r StorageRecord) (StorageRecord, error)
	ListStorageHistory(ctx context.Context, gid string) ([]StorageRecord, error)
}

// Store is the single contract every engine depends on. Nothing in
// internal/domain imports a concrete backend package directly.
type Store interface {
	ItemStore
	EventStore
	CircuitStore
	CircuitOperationStore
	ActivityStore
	AuditStore
	TimelineStore
	IndexingProgressStore
	AdapterConfigStore
	StorageRecordStore

	// Close releases backend resources (DB pool, cache client). Safe to
	// call once at process shutdown.
	Close() error
}
