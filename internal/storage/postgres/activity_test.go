package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/defarm/traceability-core/internal/storage"
)

func TestRecordActivityInsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO user_activities").
		WithArgs(sqlmock.AnyArg(), "user-1", "ItemViewed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordActivity(context.Background(), storage.UserActivity{
		UserID: "user-1",
		Action: "ItemViewed",
	})
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListActivitiesByUserDefaultsLimitWhenNonPositive(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "details", "timestamp"}).
		AddRow("act-1", "user-1", "ItemViewed", []byte(`{"gid":"gid-1"}`), time.Unix(0, 0))
	mock.ExpectQuery("SELECT id, user_id, action, details, timestamp FROM user_activities").
		WithArgs("user-1", 50).
		WillReturnRows(rows)

	activities, err := store.ListActivitiesByUser(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(activities))
	}
	if activities[0].Details["gid"] != "gid-1" {
		t.Fatalf("unexpected details: %+v", activities[0].Details)
	}
}

func TestListActivitiesByUserHonorsGivenLimit(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "details", "timestamp"})
	mock.ExpectQuery("SELECT id, user_id, action, details, timestamp FROM user_activities").
		WithArgs("user-1", 5).
		WillReturnRows(rows)

	if _, err := store.ListActivitiesByUser(context.Background(), "user-1", 5); err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordAuditEventInsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "user-1", "CircuitJoined", "circuit-1", "info", "success", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e, err := store.RecordAuditEvent(context.Background(), storage.AuditEvent{
		UserID:   "user-1",
		Action:   "CircuitJoined",
		Resource: "circuit-1",
		Severity: "info",
		Outcome:  "success",
	})
	if err != nil {
		t.Fatalf("record audit event: %v", err)
	}
	if e.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryAuditEventsAppliesFilters(t *testing.T) {
	store, mock := newTestStore(t)

	since := time.Unix(1000, 0)
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "severity", "outcome", "compliance", "details", "timestamp"}).
		AddRow("audit-1", "user-1", "CircuitJoined", "circuit-1", "info", "success", "{}", []byte(`{}`), time.Unix(1500, 0))
	mock.ExpectQuery("SELECT id, user_id, action, resource, severity, outcome, compliance, details, timestamp FROM audit_events WHERE 1=1").
		WithArgs("user-1", since).
		WillReturnRows(rows)

	events, err := store.QueryAuditEvents(context.Background(), storage.AuditQuery{UserID: "user-1", Since: since})
	if err != nil {
		t.Fatalf("query audit events: %v", err)
	}
	if len(events) != 1 || events[0].ID != "audit-1" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecordIncidentInsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO security_incidents").
		WithArgs(sqlmock.AnyArg(), "RepeatedDuplicateSubmission", "audit-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	i, err := store.RecordIncident(context.Background(), storage.SecurityIncident{
		Category:           "RepeatedDuplicateSubmission",
		OriginatingEventID: "audit-1",
	})
	if err != nil {
		t.Fatalf("record incident: %v", err)
	}
	if i.ID == "" {
		t.Fatal("expected a generated ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

