package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) RecordActivity(ctx context.Context, a storage.UserActivity) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	detailsJSON, err := json.Marshal(a.Details)
	if err != nil {
		return coreerrors.Internal("marshal activity details", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_activities (id, user_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, a.ID, a.UserID, a.Action, detailsJSON, a.Timestamp)
	return wrapQueryErr("record activity", err)
}

func (s *Store) ListActivitiesByUser(ctx context.Context, userID string, limit int) ([]storage.UserActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, timestamp FROM user_activities
		WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, wrapQueryErr("list activities", err)
	}
	defer rows.Close()

	var out []storage.UserActivity
	for rows.Next() {
		var a storage.UserActivity
		var detailsJSON []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &detailsJSON, &a.Timestamp); err != nil {
			return nil, coreerrors.Corrupt("user_activity", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
				return nil, coreerrors.Corrupt("user_activity.details", err)
			}
		}
		out = append(out, a)
	}
	return out, wrapQueryErr("list activities", rows.Err())
}

func (s *Store) RecordAuditEvent(ctx context.Context, e storage.AuditEvent) (storage.AuditEvent, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return storage.AuditEvent{}, coreerrors.Internal("marshal audit details", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, user_id, action, resource, severity, outcome, compliance, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.Action, e.Resource, e.Severity, e.Outcome, pq.Array(e.Compliance), detailsJSON, e.Timestamp)
	if err != nil {
		return storage.AuditEvent{}, wrapQueryErr("record audit event", err)
	}
	return e, nil
}

func (s *Store) QueryAuditEvents(ctx context.Context, q storage.AuditQuery) ([]storage.AuditEvent, error) {
	query := `SELECT id, user_id, action, resource, severity, outcome, compliance, details, timestamp FROM audit_events WHERE 1=1`
	var args []interface{}

	if q.UserID != "" {
		args = append(args, q.UserID)
		query += " AND user_id = $" + itoa(len(args))
	}
	if q.Action != "" {
		args = append(args, q.Action)
		query += " AND action = $" + itoa(len(args))
	}
	if q.Severity != "" {
		args = append(args, q.Severity)
		query += " AND severity = $" + itoa(len(args))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		query += " AND timestamp >= $" + itoa(len(args))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		query += " AND timestamp <= $" + itoa(len(args))
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr("query audit events", err)
	}
	defer rows.Close()

	var out []storage.AuditEvent
	for rows.Next() {
		var e storage.AuditEvent
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Resource, &e.Severity, &e.Outcome, pq.Array(&e.Compliance), &detailsJSON, &e.Timestamp); err != nil {
			return nil, coreerrors.Corrupt("audit_event", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, coreerrors.Corrupt("audit_event.details", err)
			}
		}
		out = append(out, e)
	}
	return out, wrapQueryErr("query audit events", rows.Err())
}

func (s *Store) RecordIncident(ctx context.Context, i storage.SecurityIncident) (storage.SecurityIncident, error) {
	if i.ID == "" {
		i.ID = newID()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_incidents (id, category, originating_event_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, i.ID, i.Category, nullIfEmpty(i.OriginatingEventID), i.CreatedAt)
	if err != nil {
		return storage.SecurityIncident{}, wrapQueryErr("record incident", err)
	}
	return i, nil
}
