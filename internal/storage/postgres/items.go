package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) CreateItem(ctx context.Context, item storage.Item) (storage.Item, error) {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	identifiersJSON, err := json.Marshal(item.Identifiers)
	if err != nil {
		return storage.Item{}, coreerrors.Internal("marshal identifiers", err)
	}
	enrichmentJSON, err := json.Marshal(item.Enrichment)
	if err != nil {
		return storage.Item{}, coreerrors.Internal("marshal enrichment", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (gid, identifiers, enrichment, status, confidence, fingerprint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.GID, identifiersJSON, enrichmentJSON, item.Status, item.Confidence, item.Fingerprint, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return storage.Item{}, wrapQueryErr("create item", err)
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item storage.Item) (storage.Item, error) {
	item.UpdatedAt = time.Now().UTC()

	identifiersJSON, err := json.Marshal(item.Identifiers)
	if err != nil {
		return storage.Item{}, coreerrors.Internal("marshal identifiers", err)
	}
	enrichmentJSON, err := json.Marshal(item.Enrichment)
	if err != nil {
		return storage.Item{}, coreerrors.Internal("marshal enrichment", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET identifiers = $2, enrichment = $3, status = $4, confidence = $5, fingerprint = $6, updated_at = $7
		WHERE gid = $1
	`, item.GID, identifiersJSON, enrichmentJSON, item.Status, item.Confidence, item.Fingerprint, item.UpdatedAt)
	if err != nil {
		return storage.Item{}, wrapQueryErr("update item", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.Item{}, coreerrors.NotFound("item", item.GID)
	}
	return item, nil
}

func (s *Store) GetItemByGID(ctx context.Context, gid string) (storage.Item, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT gid, identifiers, enrichment, status, confidence, fingerprint, created_at, updated_at
		FROM items WHERE gid = $1
	`, gid)

	var item storage.Item
	var identifiersJSON, enrichmentJSON []byte
	err := row.Scan(&item.GID, &identifiersJSON, &enrichmentJSON, &item.Status, &item.Confidence, &item.Fingerprint, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return storage.Item{}, false, nil
	}
	if err != nil {
		return storage.Item{}, false, wrapQueryErr("get item", err)
	}
	if err := json.Unmarshal(identifiersJSON, &item.Identifiers); err != nil {
		return storage.Item{}, false, coreerrors.Corrupt("item.identifiers", err)
	}
	if err := json.Unmarshal(enrichmentJSON, &item.Enrichment); err != nil {
		return storage.Item{}, false, coreerrors.Corrupt("item.enrichment", err)
	}
	return item, true, nil
}

func (s *Store) GetGIDByCanonical(ctx context.Context, namespace, registry, value string) (string, bool, error) {
	var gid string
	err := s.db.QueryRowContext(ctx, `
		SELECT gid FROM canonical_index WHERE namespace = $1 AND registry = $2 AND value = $3
	`, namespace, registry, value).Scan(&gid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapQueryErr("lookup canonical", err)
	}
	return gid, true, nil
}

func (s *Store) GetGIDByFingerprint(ctx context.Context, fingerprint, circuitID string) (string, bool, error) {
	var gid string
	err := s.db.QueryRowContext(ctx, `
		SELECT gid FROM fingerprint_index WHERE fingerprint = $1 AND circuit_id = $2
	`, fingerprint, circuitID).Scan(&gid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapQueryErr("lookup fingerprint", err)
	}
	return gid, true, nil
}

func (s *Store) BindCanonical(ctx context.Context, namespace, registry, value, gid string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canonical_index (namespace, registry, value, gid)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, registry, value) DO UPDATE SET gid = EXCLUDED.gid
	`, namespace, registry, value, gid)
	return wrapQueryErr("bind canonical", err)
}

func (s *Store) BindFingerprint(ctx context.Context, fingerprint, circuitID, gid string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprint_index (fingerprint, circuit_id, gid)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint, circuit_id) DO UPDATE SET gid = EXCLUDED.gid
	`, fingerprint, circuitID, gid)
	return wrapQueryErr("bind fingerprint", err)
}

func (s *Store) GetGIDByLocalID(ctx context.Context, localID string) (string, bool, error) {
	var gid string
	err := s.db.QueryRowContext(ctx, `
		SELECT gid FROM lid_index WHERE local_id = $1
	`, localID).Scan(&gid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapQueryErr("lookup local id", err)
	}
	return gid, true, nil
}

func (s *Store) BindLocalID(ctx context.Context, localID, gid string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lid_index (local_id, gid)
		VALUES ($1, $2)
		ON CONFLICT (local_id) DO UPDATE SET gid = EXCLUDED.gid
	`, localID, gid)
	return wrapQueryErr("bind local id", err)
}
