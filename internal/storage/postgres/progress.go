package postgres

import (
	"context"
	"database/sql"
	"time"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) GetIndexingProgress(ctx context.Context, network string) (storage.IndexingProgress, bool, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx, progressSelect+` WHERE network = $1`, network))
	if err == sql.ErrNoRows {
		return storage.IndexingProgress{}, false, nil
	}
	if err != nil {
		return storage.IndexingProgress{}, false, wrapQueryErr("get indexing progress", err)
	}
	return p, true, nil
}

func (s *Store) SaveIndexingProgress(ctx context.Context, p storage.IndexingProgress) (storage.IndexingProgress, error) {
	if p.LastIndexedAt.IsZero() {
		p.LastIndexedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO indexing_progress (network, last_indexed_ledger, last_confirmed_ledger, last_indexed_at, status, total_events_indexed, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (network) DO UPDATE SET
			last_indexed_ledger = EXCLUDED.last_indexed_ledger,
			last_confirmed_ledger = EXCLUDED.last_confirmed_ledger,
			last_indexed_at = EXCLUDED.last_indexed_at,
			status = EXCLUDED.status,
			total_events_indexed = EXCLUDED.total_events_indexed,
			error_message = EXCLUDED.error_message
	`, p.Network, p.LastIndexedLedger, p.LastConfirmedLedger, p.LastIndexedAt, p.Status, p.TotalEventsIndexed, nullIfEmpty(p.ErrorMessage))
	if err != nil {
		return storage.IndexingProgress{}, wrapQueryErr("save indexing progress", err)
	}
	return p, nil
}

func (s *Store) ListIndexingProgress(ctx context.Context) ([]storage.IndexingProgress, error) {
	rows, err := s.db.QueryContext(ctx, progressSelect+` ORDER BY network ASC`)
	if err != nil {
		return nil, wrapQueryErr("list indexing progress", err)
	}
	defer rows.Close()

	var out []storage.IndexingProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, coreerrors.Corrupt("indexing_progress", err)
		}
		out = append(out, p)
	}
	return out, wrapQueryErr("list indexing progress", rows.Err())
}

const progressSelect = `
	SELECT network, last_indexed_ledger, last_confirmed_ledger, last_indexed_at, status, total_events_indexed, COALESCE(error_message, '')
	FROM indexing_progress
`

func scanProgress(row rowScanner) (storage.IndexingProgress, error) {
	var p storage.IndexingProgress
	err := row.Scan(&p.Network, &p.LastIndexedLedger, &p.LastConfirmedLedger, &p.LastIndexedAt, &p.Status, &p.TotalEventsIndexed, &p.ErrorMessage)
	return p, err
}
