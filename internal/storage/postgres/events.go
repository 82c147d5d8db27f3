package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) CreateEvent(ctx context.Context, ev storage.Event) (storage.Event, error) {
	if ev.EventID == "" {
		ev.EventID = newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return storage.Event{}, coreerrors.Internal("marshal event metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, gid, local_event_id, type, source, visibility, metadata, encrypted_blob, encrypted, content_hash, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ev.EventID, ev.GID, nullIfEmpty(ev.LocalEventID), ev.Type, ev.Source, ev.Visibility, metadataJSON, ev.EncryptedBlob, ev.Encrypted, ev.ContentHash, ev.Timestamp)
	if err != nil {
		return storage.Event{}, wrapQueryErr("create event", err)
	}
	return ev, nil
}

func (s *Store) UpdateEvent(ctx context.Context, ev storage.Event) (storage.Event, error) {
	metadataJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return storage.Event{}, coreerrors.Internal("marshal event metadata", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET gid = $2, local_event_id = $3, metadata = $4, encrypted_blob = $5, encrypted = $6, content_hash = $7
		WHERE event_id = $1
	`, ev.EventID, ev.GID, nullIfEmpty(ev.LocalEventID), metadataJSON, ev.EncryptedBlob, ev.Encrypted, ev.ContentHash)
	if err != nil {
		return storage.Event{}, wrapQueryErr("update event", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.Event{}, coreerrors.NotFound("event", ev.EventID)
	}
	return ev, nil
}

func (s *Store) GetEventByContentHash(ctx context.Context, contentHash string) (storage.Event, bool, error) {
	return s.scanEventRow(s.db.QueryRowContext(ctx, eventSelect+` WHERE content_hash = $1`, contentHash))
}

func (s *Store) GetEventByLocalID(ctx context.Context, localID string) (storage.Event, bool, error) {
	return s.scanEventRow(s.db.QueryRowContext(ctx, eventSelect+` WHERE local_event_id = $1`, localID))
}

func (s *Store) ListEventsByGID(ctx context.Context, gid string, since, until time.Time, eventType string) ([]storage.Event, error) {
	query := eventSelect + ` WHERE gid = $1`
	args := []interface{}{gid}

	if !since.IsZero() {
		args = append(args, since)
		query += " AND timestamp >= $" + itoa(len(args))
	}
	if !until.IsZero() {
		args = append(args, until)
		query += " AND timestamp <= $" + itoa(len(args))
	}
	if eventType != "" {
		args = append(args, eventType)
		query += " AND type = $" + itoa(len(args))
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr("list events", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, coreerrors.Corrupt("event", err)
		}
		events = append(events, ev)
	}
	return events, wrapQueryErr("list events", rows.Err())
}

const eventSelect = `
	SELECT event_id, gid, COALESCE(local_event_id, ''), type, source, visibility, metadata, encrypted_blob, encrypted, content_hash, timestamp
	FROM events
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (storage.Event, error) {
	var ev storage.Event
	var metadataJSON []byte
	if err := row.Scan(&ev.EventID, &ev.GID, &ev.LocalEventID, &ev.Type, &ev.Source, &ev.Visibility, &metadataJSON, &ev.EncryptedBlob, &ev.Encrypted, &ev.ContentHash, &ev.Timestamp); err != nil {
		return storage.Event{}, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
			return storage.Event{}, err
		}
	}
	return ev, nil
}

func (s *Store) scanEventRow(row *sql.Row) (storage.Event, bool, error) {
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return storage.Event{}, false, nil
	}
	if err != nil {
		return storage.Event{}, false, wrapQueryErr("get event", err)
	}
	return ev, true, nil
}
