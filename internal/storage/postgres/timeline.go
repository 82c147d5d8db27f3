package postgres

import (
	"context"
	"database/sql"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

// AddCIDToTimeline is idempotent on (gid, anchor_tx_hash): a unique
// constraint on that pair makes a re-delivered ledger event a no-op rather
// than a duplicate row, per spec.md §4.6.
func (s *Store) AddCIDToTimeline(ctx context.Context, entry storage.TimelineEntry) (storage.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO item_cid_timeline (gid, content_id, anchor_tx_hash, ledger_timestamp, network, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (gid, anchor_tx_hash) DO UPDATE SET gid = EXCLUDED.gid
		RETURNING sequence, created_at
	`, entry.GID, entry.ContentID, entry.AnchorTxHash, entry.LedgerTimestamp, entry.Network)

	if err := row.Scan(&entry.Sequence, &entry.CreatedAt); err != nil {
		return storage.TimelineEntry{}, wrapQueryErr("add timeline entry", err)
	}
	return entry, nil
}

func (s *Store) ListTimeline(ctx context.Context, gid string) ([]storage.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gid, sequence, content_id, anchor_tx_hash, ledger_timestamp, network, created_at
		FROM item_cid_timeline WHERE gid = $1 ORDER BY sequence ASC
	`, gid)
	if err != nil {
		return nil, wrapQueryErr("list timeline", err)
	}
	defer rows.Close()

	var out []storage.TimelineEntry
	for rows.Next() {
		var e storage.TimelineEntry
		if err := rows.Scan(&e.GID, &e.Sequence, &e.ContentID, &e.AnchorTxHash, &e.LedgerTimestamp, &e.Network, &e.CreatedAt); err != nil {
			return nil, coreerrors.Corrupt("timeline_entry", err)
		}
		out = append(out, e)
	}
	return out, wrapQueryErr("list timeline", rows.Err())
}

func (s *Store) GetTimelineEntry(ctx context.Context, gid string, sequence int64) (storage.TimelineEntry, bool, error) {
	var e storage.TimelineEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT gid, sequence, content_id, anchor_tx_hash, ledger_timestamp, network, created_at
		FROM item_cid_timeline WHERE gid = $1 AND sequence = $2
	`, gid, sequence).Scan(&e.GID, &e.Sequence, &e.ContentID, &e.AnchorTxHash, &e.LedgerTimestamp, &e.Network, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return storage.TimelineEntry{}, false, nil
	}
	if err != nil {
		return storage.TimelineEntry{}, false, wrapQueryErr("get timeline entry", err)
	}
	return e, true, nil
}
