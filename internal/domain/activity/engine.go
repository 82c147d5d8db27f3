package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/defarm/traceability-core/internal/storage"
)

// Engine records user activity and audit events, escalating a subset of
// audit events into SecurityIncidents.
type Engine struct {
	store storage.Store
	log   *logrus.Entry
}

// New builds an Engine.
func New(store storage.Store) *Engine {
	return &Engine{store: store, log: logrus.WithField("component", "activity-engine")}
}

// RecordActivity logs a best-effort, low-severity user action. A storage
// failure here is logged but never propagated: activity logging must never
// block the operation it describes.
func (e *Engine) RecordActivity(ctx context.Context, userID, action string, details map[string]interface{}) {
	rec := storage.UserActivity{
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.RecordActivity(ctx, rec); err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "action": action}).Warn("record activity")
	}
}

// LogEvent records a security-relevant audit event and, when the event is
// Critical severity or a Failure/Blocked outcome, auto-creates a
// SecurityIncident for it. Returns the persisted event and, if one was
// created, the incident.
func (e *Engine) LogEvent(ctx context.Context, rec AuditRecord) (AuditRecord, *Incident, error) {
	rec.Timestamp = time.Now().UTC()

	stored, err := e.store.RecordAuditEvent(ctx, toStorageAuditEvent(rec))
	if err != nil {
		return AuditRecord{}, nil, fmt.Errorf("record audit event: %w", err)
	}
	persisted := fromStorageAuditEvent(stored)

	if rec.Severity != SeverityCritical && rec.Outcome != OutcomeFailure && rec.Outcome != OutcomeBlocked {
		return persisted, nil, nil
	}

	category := determineIncidentCategory(rec.Action)
	incident := Incident{
		Category:            category,
		Title:                fmt.Sprintf("Security Event: %s on %s", rec.Action, rec.Resource),
		Description:          fmt.Sprintf("Automatic incident created for %s security event. User: %s, Resource: %s, Outcome: %s", rec.Severity, rec.UserID, rec.Resource, rec.Outcome),
		OriginatingUserID:     rec.UserID,
		OriginatingEventID:    stored.ID,
		CreatedAt:             time.Now().UTC(),
	}

	savedIncident, err := e.store.RecordIncident(ctx, storage.SecurityIncident{
		Category:           string(incident.Category),
		OriginatingEventID: incident.OriginatingEventID,
		CreatedAt:          incident.CreatedAt,
	})
	if err != nil {
		return persisted, nil, fmt.Errorf("record incident: %w", err)
	}
	incident.ID = savedIncident.ID

	return persisted, &incident, nil
}

// QueryEvents filters audit events by the supplied criteria.
func (e *Engine) QueryEvents(ctx context.Context, userID, action string, since, until time.Time) ([]AuditRecord, error) {
	raw, err := e.store.QueryAuditEvents(ctx, storage.AuditQuery{
		UserID: userID,
		Action: action,
		Since:  since,
		Until:  until,
	})
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	out := make([]AuditRecord, len(raw))
	for i, r := range raw {
		out[i] = fromStorageAuditEvent(r)
	}
	return out, nil
}

// ListActivities returns the most recent activity records for a user.
func (e *Engine) ListActivities(ctx context.Context, userID string, limit int) ([]ActivityRecord, error) {
	raw, err := e.store.ListActivitiesByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]ActivityRecord, len(raw))
	for i, r := range raw {
		out[i] = ActivityRecord{UserID: r.UserID, Action: r.Action, Details: r.Details, Timestamp: r.Timestamp}
	}
	return out, nil
}

// determineIncidentCategory classifies an audit action into an incident
// category by keyword, matching the original implementation's heuristic.
// The keyword table is an approximation, not a contract: it is plain
// substring matching, not a classifier.
func determineIncidentCategory(action string) IncidentCategory {
	lower := strings.ToLower(action)
	switch {
	case strings.Contains(lower, "breach") || strings.Contains(lower, "leak") || strings.Contains(lower, "exposure"):
		return CategoryDataBreach
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "intrusion"):
		return CategoryUnauthorizedAccess
	case strings.Contains(lower, "malware") || strings.Contains(lower, "compromise"):
		return CategorySystemCompromise
	case strings.Contains(lower, "policy") || strings.Contains(lower, "violation"):
		return CategoryPolicyViolation
	case strings.Contains(lower, "dos") || strings.Contains(lower, "denial"):
		return CategoryDenialOfService
	default:
		return CategoryUnauthorizedAccess
	}
}

func toStorageAuditEvent(r AuditRecord) storage.AuditEvent {
	return storage.AuditEvent{
		UserID:     r.UserID,
		Action:     r.Action,
		Resource:   r.Resource,
		Severity:   string(r.Severity),
		Outcome:    string(r.Outcome),
		Compliance: r.Compliance,
		Details:    r.Details,
		Timestamp:  r.Timestamp,
	}
}

func fromStorageAuditEvent(e storage.AuditEvent) AuditRecord {
	return AuditRecord{
		UserID:     e.UserID,
		Action:     e.Action,
		Resource:   e.Resource,
		Severity:   Severity(e.Severity),
		Outcome:    Outcome(e.Outcome),
		Compliance: e.Compliance,
		Details:    e.Details,
		Timestamp:  e.Timestamp,
	}
}
