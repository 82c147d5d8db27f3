// Package cached decorates any storage.Store with a write-through cache
// front for the read-heavy lookups: item-by-GID, canonical/fingerprint
// index resolution, and circuit reads. Writes always hit the backing store
// first and only populate the cache once the authoritative write succeeds.
package cached

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/defarm/traceability-core/infrastructure/cache"
	"github.com/defarm/traceability-core/internal/storage"
)

// Store wraps a storage.Store with a cache.Cache front.
type Store struct {
	storage.Store
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Entry
}

// New wraps backing with a cache front. ttl of zero uses the cache's own
// default.
func New(backing storage.Store, c cache.Cache, ttl time.Duration) *Store {
	return &Store{Store: backing, cache: c, ttl: ttl, log: logrus.WithField("component", "cached-store")}
}

func itemKey(gid string) string               { return "item:" + gid }
func canonicalKey(ns, reg, val string) string  { return fmt.Sprintf("canonical:%s:%s:%s", ns, reg, val) }
func fingerprintKey(fp, circuit string) string { return "fingerprint:" + fp + ":" + circuit }
func circuitKey(id string) string              { return "circuit:" + id }

func (s *Store) GetItemByGID(ctx context.Context, gid string) (storage.Item, bool, error) {
	key := itemKey(gid)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var item storage.Item
		if err := json.Unmarshal(raw, &item); err == nil {
			return item, true, nil
		}
	}

	item, found, err := s.Store.GetItemByGID(ctx, gid)
	if err != nil || !found {
		return item, found, err
	}

	s.populate(ctx, key, item)
	return item, true, nil
}

func (s *Store) CreateItem(ctx context.Context, item storage.Item) (storage.Item, error) {
	created, err := s.Store.CreateItem(ctx, item)
	if err != nil {
		return storage.Item{}, err
	}
	s.populate(ctx, itemKey(created.GID), created)
	return created, nil
}

func (s *Store) UpdateItem(ctx context.Context, item storage.Item) (storage.Item, error) {
	updated, err := s.Store.UpdateItem(ctx, item)
	if err != nil {
		return storage.Item{}, err
	}
	s.populate(ctx, itemKey(updated.GID), updated)
	return updated, nil
}

func (s *Store) GetGIDByCanonical(ctx context.Context, namespace, registry, value string) (string, bool, error) {
	key := canonicalKey(namespace, registry, value)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		return string(raw), true, nil
	}

	gid, found, err := s.Store.GetGIDByCanonical(ctx, namespace, registry, value)
	if err != nil || !found {
		return gid, found, err
	}
	if err := s.cache.Set(ctx, key, []byte(gid), s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set canonical index")
	}
	return gid, true, nil
}

func (s *Store) BindCanonical(ctx context.Context, namespace, registry, value, gid string) error {
	if err := s.Store.BindCanonical(ctx, namespace, registry, value, gid); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, canonicalKey(namespace, registry, value), []byte(gid), s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set canonical index")
	}
	return nil
}

func (s *Store) GetGIDByFingerprint(ctx context.Context, fingerprint, circuitID string) (string, bool, error) {
	key := fingerprintKey(fingerprint, circuitID)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		return string(raw), true, nil
	}

	gid, found, err := s.Store.GetGIDByFingerprint(ctx, fingerprint, circuitID)
	if err != nil || !found {
		return gid, found, err
	}
	if err := s.cache.Set(ctx, key, []byte(gid), s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set fingerprint index")
	}
	return gid, true, nil
}

func (s *Store) BindFingerprint(ctx context.Context, fingerprint, circuitID, gid string) error {
	if err := s.Store.BindFingerprint(ctx, fingerprint, circuitID, gid); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, fingerprintKey(fingerprint, circuitID), []byte(gid), s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set fingerprint index")
	}
	return nil
}

func (s *Store) GetCircuit(ctx context.Context, id string) (storage.Circuit, bool, error) {
	key := circuitKey(id)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var c storage.Circuit
		if err := json.Unmarshal(raw, &c); err == nil {
			return c, true, nil
		}
	}

	c, found, err := s.Store.GetCircuit(ctx, id)
	if err != nil || !found {
		return c, found, err
	}
	s.populateCircuit(ctx, key, c)
	return c, true, nil
}

func (s *Store) CreateCircuit(ctx context.Context, c storage.Circuit) (storage.Circuit, error) {
	created, err := s.Store.CreateCircuit(ctx, c)
	if err != nil {
		return storage.Circuit{}, err
	}
	s.populateCircuit(ctx, circuitKey(created.ID), created)
	return created, nil
}

func (s *Store) UpdateCircuit(ctx context.Context, c storage.Circuit) (storage.Circuit, error) {
	updated, err := s.Store.UpdateCircuit(ctx, c)
	if err != nil {
		return storage.Circuit{}, err
	}
	// Invalidate rather than repopulate: a stale read between invalidation
	// and the next GetCircuit falls through to the backing store, which is
	// always correct; repopulating here risks racing a concurrent update.
	if err := s.cache.Invalidate(ctx, circuitKey(updated.ID)); err != nil {
		s.log.WithError(err).Warn("invalidate circuit cache")
	}
	return updated, nil
}

func (s *Store) populate(ctx context.Context, key string, item storage.Item) {
	raw, err := json.Marshal(item)
	if err != nil {
		s.log.WithError(err).Warn("marshal item for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set item")
	}
}

func (s *Store) populateCircuit(ctx context.Context, key string, c storage.Circuit) {
	raw, err := json.Marshal(c)
	if err != nil {
		s.log.WithError(err).Warn("marshal circuit for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.WithError(err).Warn("cache set circuit")
	}
}

func (s *Store) Close() error {
	cacheErr := s.cache.Close()
	storeErr := s.Store.Close()
	if storeErr != nil {
		return storeErr
	}
	return cacheErr
}

var _ storage.Store = (*Store)(nil)
