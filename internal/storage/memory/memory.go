// Package memory is an in-process, mutex-guarded implementation of
// storage.Store. It is intended for tests and local development — spec.md
// §9 treats the durable backend as required in production and the
// in-memory path as test-only.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

// Memory is a thread-safe in-memory storage.Store. Every map is guarded by
// one RWMutex; no lock is ever held across a suspension point, since
// nothing here does I/O.
type Memory struct {
	mu sync.RWMutex

	items             map[string]storage.Item
	canonicalIndex    map[string]string // namespace|registry|value -> gid
	fingerprintIndex  map[string]string // fingerprint|circuitID -> gid
	lidIndex          map[string]string // local_id -> gid

	events           map[string]storage.Event // eventID -> event
	eventsByHash     map[string]string         // contentHash -> eventID
	eventsByLocalID  map[string]string         // localEventID -> eventID

	circuits map[string]storage.Circuit

	operations map[string]storage.CircuitOperation

	activities []storage.UserActivity

	auditEvents []storage.AuditEvent
	incidents   []storage.SecurityIncident

	timeline    map[string][]storage.TimelineEntry // gid -> entries in sequence order
	timelineTx  map[string]int64                   // gid|txHash -> sequence, for idempotency

	progress map[string]storage.IndexingProgress

	adapterConfigs map[string]storage.AdapterConfig

	storageHistory map[string][]storage.StorageRecord
}

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{
		items:            make(map[string]storage.Item),
		canonicalIndex:   make(map[string]string),
		fingerprintIndex: make(map[string]string),
		lidIndex:         make(map[string]string),
		events:           make(map[string]storage.Event),
		eventsByHash:     make(map[string]string),
		eventsByLocalID:  make(map[string]string),
		circuits:         make(map[string]storage.Circuit),
		operations:       make(map[string]storage.CircuitOperation),
		timeline:         make(map[string][]storage.TimelineEntry),
		timelineTx:       make(map[string]int64),
		progress:         make(map[string]storage.IndexingProgress),
		adapterConfigs:   make(map[string]storage.AdapterConfig),
		storageHistory:   make(map[string][]storage.StorageRecord),
	}
}

func (m *Memory) Close() error { return nil }

// --- ItemStore ---------------------------------------------------------

func canonicalKey(namespace, registry, value string) string {
	return namespace + "|" + registry + "|" + value
}

func fingerprintKey(fingerprint, circuitID string) string {
	return fingerprint + "|" + circuitID
}

func (m *Memory) CreateItem(_ context.Context, item storage.Item) (storage.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.GID == "" {
		item.GID = uuid.NewString()
	}
	if _, exists := m.items[item.GID]; exists {
		return storage.Item{}, errors.Conflict("item already exists: " + item.GID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Enrichment = copyAnyMap(item.Enrichment)
	item.Identifiers = cloneIdentifiers(item.Identifiers)

	m.items[item.GID] = item
	return cloneItem(item), nil
}

func (m *Memory) UpdateItem(_ context.Context, item storage.Item) (storage.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.items[item.GID]
	if !ok {
		return storage.Item{}, errors.NotFound("item", item.GID)
	}

	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Enrichment = copyAnyMap(item.Enrichment)
	item.Identifiers = cloneIdentifiers(item.Identifiers)

	m.items[item.GID] = item
	return cloneItem(item), nil
}

func (m *Memory) GetItemByGID(_ context.Context, gid string) (storage.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[gid]
	if !ok {
		return storage.Item{}, false, nil
	}
	return cloneItem(item), true, nil
}

func (m *Memory) GetGIDByCanonical(_ context.Context, namespace, registry, value string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gid, ok := m.canonicalIndex[canonicalKey(namespace, registry, value)]
	return gid, ok, nil
}

func (m *Memory) GetGIDByFingerprint(_ context.Context, fingerprint, circuitID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gid, ok := m.fingerprintIndex[fingerprintKey(fingerprint, circuitID)]
	return gid, ok, nil
}

func (m *Memory) BindCanonical(_ context.Context, namespace, registry, value, gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := canonicalKey(namespace, registry, value)
	if existing, ok := m.canonicalIndex[key]; ok && existing != gid {
		return errors.ConflictingGIDs([]string{existing, gid})
	}
	m.canonicalIndex[key] = gid
	return nil
}

func (m *Memory) BindFingerprint(_ context.Context, fingerprint, circuitID, gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fingerprintIndex[fingerprintKey(fingerprint, circuitID)] = gid
	return nil
}

func (m *Memory) GetGIDByLocalID(_ context.Context, localID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gid, ok := m.lidIndex[localID]
	return gid, ok, nil
}

func (m *Memory) BindLocalID(_ context.Context, localID, gid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lidIndex[localID] = gid
	return nil
}

// --- EventStore ----------------------------------------------------------

func (m *Memory) CreateEvent(_ context.Context, ev storage.Event) (storage.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	ev.Metadata = copyAnyMap(ev.Metadata)

	m.events[ev.EventID] = ev
	if ev.ContentHash != "" {
		m.eventsByHash[ev.ContentHash] = ev.EventID
	}
	if ev.LocalEventID != "" {
		m.eventsByLocalID[ev.LocalEventID] = ev.EventID
	}
	return cloneEvent(ev), nil
}

func (m *Memory) UpdateEvent(_ context.Context, ev storage.Event) (storage.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[ev.EventID]; !ok {
		return storage.Event{}, errors.NotFound("event", ev.EventID)
	}
	ev.Metadata = copyAnyMap(ev.Metadata)

	m.events[ev.EventID] = ev
	if ev.ContentHash != "" {
		m.eventsByHash[ev.ContentHash] = ev.EventID
	}
	if ev.LocalEventID != "" {
		m.eventsByLocalID[ev.LocalEventID] = ev.EventID
	}
	return cloneEvent(ev), nil
}

func (m *Memory) GetEventByContentHash(_ context.Context, contentHash string) (storage.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.eventsByHash[contentHash]
	if !ok {
		return storage.Event{}, false, nil
	}
	return cloneEvent(m.events[id]), true, nil
}

func (m *Memory) GetEventByLocalID(_ context.Context, localID string) (storage.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.eventsByLocalID[localID]
	if !ok {
		return storage.Event{}, false, nil
	}
	return cloneEvent(m.events[id]), true, nil
}

func (m *Memory) ListEventsByGID(_ context.Context, gid string, since, until time.Time, eventType string) ([]storage.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]storage.Event, 0)
	for _, ev := range m.events {
		if ev.GID != gid {
			continue
		}
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && ev.Timestamp.After(until) {
			continue
		}
		if eventType != "" && ev.Type != eventType {
			continue
		}
		result = append(result, cloneEvent(ev))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

// --- CircuitStore --------------------------------------------------------

func (m *Memory) CreateCircuit(_ context.Context, c storage.Circuit) (storage.Circuit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := m.circuits[c.ID]; exists {
		return storage.Circuit{}, errors.Conflict("circuit already exists: " + c.ID)
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	m.circuits[c.ID] = c
	return cloneCircuit(c), nil
}

func (m *Memory) UpdateCircuit(_ context.Context, c storage.Circuit) (storage.Circuit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.circuits[c.ID]
	if !ok {
		return storage.Circuit{}, errors.NotFound("circuit", c.ID)
	}
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	m.circuits[c.ID] = c
	return cloneCircuit(c), nil
}

func (m *Memory) GetCircuit(_ context.Context, id string) (storage.Circuit, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.circuits[id]
	if !ok {
		return storage.Circuit{}, false, nil
	}
	return cloneCircuit(c), true, nil
}

// --- CircuitOperationStore -----------------------------------------------

func (m *Memory) CreateOperation(_ context.Context, op storage.CircuitOperation) (storage.CircuitOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now
	op.Payload = copyAnyMap(op.Payload)
	op.Identifiers = cloneIdentifiers(op.Identifiers)

	m.operations[op.ID] = op
	return cloneOperation(op), nil
}

func (m *Memory) UpdateOperation(_ context.Context, op storage.CircuitOperation) (storage.CircuitOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	original, ok := m.operations[op.ID]
	if !ok {
		return storage.CircuitOperation{}, errors.NotFound("circuit_operation", op.ID)
	}
	op.CreatedAt = original.CreatedAt
	op.UpdatedAt = time.Now().UTC()
	op.Payload = copyAnyMap(op.Payload)
	op.Identifiers = cloneIdentifiers(op.Identifiers)

	m.operations[op.ID] = op
	return cloneOperation(op), nil
}

func (m *Memory) GetOperation(_ context.Context, id string) (storage.CircuitOperation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, ok := m.operations[id]
	if !ok {
		return storage.CircuitOperation{}, false, nil
	}
	return cloneOperation(op), true, nil
}

func (m *Memory) ListPendingOperations(_ context.Context, circuitID string) ([]storage.CircuitOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]storage.CircuitOperation, 0)
	for _, op := range m.operations {
		if op.CircuitID == circuitID && op.State == "Pending" {
			result = append(result, cloneOperation(op))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// --- ActivityStore ---------------------------------------------------------

func (m *Memory) RecordActivity(_ context.Context, a storage.UserActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Details = copyAnyMap(a.Details)
	m.activities = append(m.activities, a)
	return nil
}

func (m *Memory) ListActivitiesByUser(_ context.Context, userID string, limit int) ([]storage.UserActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]storage.UserActivity, 0)
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].UserID == userID {
			result = append(result, m.activities[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// --- AuditStore -------------------------------------------------------------

func (m *Memory) RecordAuditEvent(_ context.Context, e storage.AuditEvent) (storage.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Details = copyAnyMap(e.Details)
	m.auditEvents = append(m.auditEvents, e)
	return e, nil
}

func (m *Memory) QueryAuditEvents(_ context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]storage.AuditEvent, 0)
	for _, e := range m.auditEvents {
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.Severity != "" && e.Severity != q.Severity {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) RecordIncident(_ context.Context, i storage.SecurityIncident) (storage.SecurityIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	m.incidents = append(m.incidents, i)
	return i, nil
}

// --- TimelineStore -----------------------------------------------------

func timelineTxKey(gid, txHash string) string { return gid + "|" + txHash }

func (m *Memory) AddCIDToTimeline(_ context.Context, entry storage.TimelineEntry) (storage.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txKey := timelineTxKey(entry.GID, entry.AnchorTxHash)
	if seq, ok := m.timelineTx[txKey]; ok {
		for _, e := range m.timeline[entry.GID] {
			if e.Sequence == seq {
				return e, nil
			}
		}
	}

	entries := m.timeline[entry.GID]
	entry.Sequence = int64(len(entries)) + 1
	entry.CreatedAt = time.Now().UTC()
	entries = append(entries, entry)
	m.timeline[entry.GID] = entries
	m.timelineTx[txKey] = entry.Sequence

	return entry, nil
}

func (m *Memory) ListTimeline(_ context.Context, gid string) ([]storage.TimelineEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.timeline[gid]
	result := make([]storage.TimelineEntry, len(entries))
	copy(result, entries)
	return result, nil
}

func (m *Memory) GetTimelineEntry(_ context.Context, gid string, sequence int64) (storage.TimelineEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.timeline[gid] {
		if e.Sequence == sequence {
			return e, true, nil
		}
	}
	return storage.TimelineEntry{}, false, nil
}

// --- IndexingProgressStore -----------------------------------------------

func (m *Memory) GetIndexingProgress(_ context.Context, network string) (storage.IndexingProgress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.progress[network]
	return p, ok, nil
}

func (m *Memory) SaveIndexingProgress(_ context.Context, p storage.IndexingProgress) (storage.IndexingProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress[p.Network] = p
	return p, nil
}

func (m *Memory) ListIndexingProgress(_ context.Context) ([]storage.IndexingProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]storage.IndexingProgress, 0, len(m.progress))
	for _, p := range m.progress {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Network < result[j].Network })
	return result, nil
}

// --- AdapterConfigStore ----------------------------------------------------

func (m *Memory) GetAdapterConfig(_ context.Context, id string) (storage.AdapterConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.adapterConfigs[id]
	return c, ok, nil
}

func (m *Memory) GetDefaultAdapterConfig(_ context.Context, circuitID string) (storage.AdapterConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.adapterConfigs {
		if c.IsDefault && c.IsActive {
			return c, true, nil
		}
	}
	return storage.AdapterConfig{}, false, nil
}

func (m *Memory) SaveAdapterConfig(_ context.Context, cfg storage.AdapterConfig) (storage.AdapterConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.ConfigID == "" {
		cfg.ConfigID = uuid.NewString()
	}
	m.adapterConfigs[cfg.ConfigID] = cfg
	return cfg, nil
}

// --- StorageRecordStore ------------------------------------------------

func (m *Memory) AddStorageRecord(_ context.Context, r storage.StorageRecord) (storage.StorageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.StoredAt = time.Now().UTC()
	history := m.storageHistory[r.GID]
	for i := range history {
		history[i].IsActive = false
	}
	r.IsActive = true
	history = append(history, r)
	m.storageHistory[r.GID] = history
	return r, nil
}

func (m *Memory) ListStorageHistory(_ context.Context, gid string) ([]storage.StorageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.storageHistory[gid]
	result := make([]storage.StorageRecord, len(history))
	copy(result, history)
	return result, nil
}

// --- clone helpers -----------------------------------------------------

func copyAnyMap(src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneIdentifiers(src []storage.Identifier) []storage.Identifier {
	if len(src) == 0 {
		return nil
	}
	dst := make([]storage.Identifier, len(src))
	copy(dst, src)
	return dst
}

func cloneItem(item storage.Item) storage.Item {
	item.Enrichment = copyAnyMap(item.Enrichment)
	item.Identifiers = cloneIdentifiers(item.Identifiers)
	return item
}

func cloneEvent(ev storage.Event) storage.Event {
	ev.Metadata = copyAnyMap(ev.Metadata)
	return ev
}

func cloneCircuit(c storage.Circuit) storage.Circuit {
	c.Members = append([]storage.Member(nil), c.Members...)
	c.JoinRequests = append([]storage.JoinRequest(nil), c.JoinRequests...)
	c.Permissions.AllowedNamespaces = append([]string(nil), c.Permissions.AllowedNamespaces...)
	return c
}

func cloneOperation(op storage.CircuitOperation) storage.CircuitOperation {
	op.Payload = copyAnyMap(op.Payload)
	op.Identifiers = cloneIdentifiers(op.Identifiers)
	return op
}

var _ storage.Store = (*Memory)(nil)
