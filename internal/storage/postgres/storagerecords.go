package postgres

import (
	"context"
	"time"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) AddStorageRecord(ctx context.Context, r storage.StorageRecord) (storage.StorageRecord, error) {
	if r.StoredAt.IsZero() {
		r.StoredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_records (gid, adapter_kind, storage_location, stored_at, triggered_by, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.GID, r.AdapterKind, r.StorageLocation, r.StoredAt, r.TriggeredBy, r.IsActive)
	if err != nil {
		return storage.StorageRecord{}, wrapQueryErr("add storage record", err)
	}
	return r, nil
}

func (s *Store) ListStorageHistory(ctx context.Context, gid string) ([]storage.StorageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gid, adapter_kind, storage_location, stored_at, triggered_by, is_active
		FROM storage_records WHERE gid = $1 ORDER BY stored_at DESC
	`, gid)
	if err != nil {
		return nil, wrapQueryErr("list storage history", err)
	}
	defer rows.Close()

	var out []storage.StorageRecord
	for rows.Next() {
		var r storage.StorageRecord
		if err := rows.Scan(&r.GID, &r.AdapterKind, &r.StorageLocation, &r.StoredAt, &r.TriggeredBy, &r.IsActive); err != nil {
			return nil, coreerrors.Corrupt("storage_record", err)
		}
		out = append(out, r)
	}
	return out, wrapQueryErr("list storage history", rows.Err())
}
