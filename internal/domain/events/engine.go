package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	coreCrypto "github.com/defarm/traceability-core/infrastructure/crypto"
	"github.com/defarm/traceability-core/internal/domain/safejson"
	"github.com/defarm/traceability-core/internal/storage"
)

// Engine implements the append-only, content-hash-addressed event log.
type Engine struct {
	store      storage.Store
	log        *logrus.Entry
	dataKeyEnv string
}

// New builds an Engine. dataKeyEnv names the environment variable holding
// the server's data key, read lazily so tests that never write a Private
// event never need one configured.
func New(store storage.Store, dataKeyEnv string) *Engine {
	if dataKeyEnv == "" {
		dataKeyEnv = "CORE_SECRET_KEY"
	}
	return &Engine{store: store, log: logrus.WithField("component", "events-engine"), dataKeyEnv: dataKeyEnv}
}

// ContentHash computes H(gid, type, source, canonicalize(metadata)) per
// spec.md §4.3's invariant.
func ContentHash(gid string, eventType Type, source string, metadata map[string]interface{}) (string, error) {
	canonicalMeta, err := safejson.Canonicalize(metadata)
	if err != nil {
		return "", fmt.Errorf("canonicalize metadata: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(gid))
	h.Write([]byte{0})
	h.Write([]byte(eventType))
	h.Write([]byte{0})
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write(canonicalMeta)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Create writes an event for an already-resolved GID, deduplicating on
// content hash and encrypting Private metadata at rest.
func (e *Engine) Create(ctx context.Context, b Bundle) (Event, error) {
	return e.write(ctx, b.GID, "", b)
}

// CreateLocal writes an event under the sentinel GID `LOCAL-EVENT-{id}`
// for a submission that has not yet been resolved to a GID.
func (e *Engine) CreateLocal(ctx context.Context, b Bundle) (Event, error) {
	localID := uuid.NewString()
	sentinelGID := localGIDPrefix + localID
	ev, err := e.write(ctx, sentinelGID, localID, b)
	if err != nil {
		return Event{}, err
	}
	ev.LocalEventID = localID
	return ev, nil
}

func (e *Engine) write(ctx context.Context, gid, localID string, b Bundle) (Event, error) {
	contentHash, err := ContentHash(gid, b.Type, b.Source, b.Metadata)
	if err != nil {
		return Event{}, err
	}

	if existing, found, err := e.store.GetEventByContentHash(ctx, contentHash); err != nil {
		return Event{}, err
	} else if found {
		ev := fromStorage(existing)
		ev.WasDeduplicated = true
		return ev, nil
	}

	rec := storage.Event{
		GID:          gid,
		LocalEventID: localID,
		Type:         string(b.Type),
		Source:       b.Source,
		Visibility:   string(b.Visibility),
		Metadata:     b.Metadata,
		ContentHash:  contentHash,
		Timestamp:    time.Now().UTC(),
	}

	if b.Visibility == VisibilityPrivate {
		blob, err := e.encryptMetadata(gid, b.Metadata)
		if err != nil {
			return Event{}, err
		}
		rec.EncryptedBlob = blob
		rec.Encrypted = true
		rec.Metadata = nil
	}

	created, err := e.store.CreateEvent(ctx, rec)
	if err != nil {
		return Event{}, err
	}
	// The caller always sees plaintext metadata regardless of at-rest
	// encryption; only the storage layer holds the encrypted blob.
	created.Metadata = b.Metadata
	return fromStorage(created), nil
}

// PromoteLocal rewrites a local event's sentinel GID to a real GID,
// recomputing the content hash. A collision with an already-promoted
// event triggers auto-merge: the local event's metadata keys are merged
// into the existing event (new keys only) and the existing event is
// returned. The local record is not deleted: it stays in the store
// unchanged, under its sentinel GID and local event ID.
func (e *Engine) PromoteLocal(ctx context.Context, localID, gid string) (Event, error) {
	localRec, found, err := e.store.GetEventByLocalID(ctx, localID)
	if err != nil {
		return Event{}, err
	}
	if !found {
		return Event{}, fmt.Errorf("local event %s not found", localID)
	}

	metadata := localRec.Metadata
	if localRec.Encrypted {
		plain, err := e.decryptMetadata(localRec.GID, localRec.EncryptedBlob)
		if err != nil {
			return Event{}, err
		}
		metadata = plain
	}

	newHash, err := ContentHash(gid, Type(localRec.Type), localRec.Source, metadata)
	if err != nil {
		return Event{}, err
	}

	existing, found, err := e.store.GetEventByContentHash(ctx, newHash)
	if err != nil {
		return Event{}, err
	}
	if found && existing.EventID != localRec.EventID {
		mergedKeys := mergeNewKeys(existing, metadata)
		if len(mergedKeys) > 0 {
			if _, err := e.store.UpdateEvent(ctx, existing); err != nil {
				return Event{}, err
			}
		}
		result := fromStorage(existing)
		result.MergedKeys = mergedKeys
		return result, nil
	}

	localRec.GID = gid
	localRec.ContentHash = newHash
	localRec.LocalEventID = ""
	updated, err := e.store.UpdateEvent(ctx, localRec)
	if err != nil {
		return Event{}, err
	}
	updated.Metadata = metadata
	return fromStorage(updated), nil
}

func mergeNewKeys(existing storage.Event, incoming map[string]interface{}) []string {
	if existing.Metadata == nil {
		existing.Metadata = make(map[string]interface{})
	}
	var added []string
	for k, v := range incoming {
		if _, exists := existing.Metadata[k]; !exists {
			existing.Metadata[k] = v
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return added
}

func (e *Engine) dataKey(subject string) ([]byte, error) {
	raw := os.Getenv(e.dataKeyEnv)
	if raw == "" {
		return nil, fmt.Errorf("%s is required to encrypt private event metadata", e.dataKeyEnv)
	}
	return coreCrypto.DeriveKey([]byte(raw), []byte(subject), "event-metadata")
}

func (e *Engine) encryptMetadata(gid string, metadata map[string]interface{}) ([]byte, error) {
	plain, err := safejson.Canonicalize(metadata)
	if err != nil {
		return nil, err
	}
	key, err := e.dataKey(gid)
	if err != nil {
		return nil, err
	}
	return coreCrypto.Encrypt(key, plain)
}

func (e *Engine) decryptMetadata(gid string, blob []byte) (map[string]interface{}, error) {
	key, err := e.dataKey(gid)
	if err != nil {
		return nil, err
	}
	plain, err := coreCrypto.Decrypt(key, blob)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(plain, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func fromStorage(ev storage.Event) Event {
	return Event{
		EventID:      ev.EventID,
		GID:          ev.GID,
		LocalEventID: ev.LocalEventID,
		Type:         Type(ev.Type),
		Source:       ev.Source,
		Visibility:   Visibility(ev.Visibility),
		Metadata:     ev.Metadata,
		ContentHash:  ev.ContentHash,
		Encrypted:    ev.Encrypted,
		Timestamp:    ev.Timestamp,
	}
}
