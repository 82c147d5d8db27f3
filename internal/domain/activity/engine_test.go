package activity

import (
	"context"
	"testing"
	"time"

	"github.com/defarm/traceability-core/internal/storage/memory"
)

func TestRecordActivityIsListedForTheUser(t *testing.T) {
	store := memory.New()
	e := New(store)

	e.RecordActivity(context.Background(), "user-1", "viewed_item", map[string]interface{}{"gid": "gid-1"})

	activities, err := e.ListActivities(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 || activities[0].Action != "viewed_item" {
		t.Fatalf("unexpected activities: %+v", activities)
	}
}

func TestLogEventLowSeveritySuccessDoesNotEscalate(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, incident, err := e.LogEvent(context.Background(), AuditRecord{
		UserID:   "user-1",
		Action:   "login",
		Resource: "session",
		Severity: SeverityLow,
		Outcome:  OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}
	if incident != nil {
		t.Fatalf("expected no incident, got %+v", incident)
	}
}

func TestLogEventCriticalSeverityEscalatesToIncident(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, incident, err := e.LogEvent(context.Background(), AuditRecord{
		UserID:   "user-1",
		Action:   "data breach detected",
		Resource: "item-export",
		Severity: SeverityCritical,
		Outcome:  OutcomeSuccess,
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}
	if incident == nil {
		t.Fatal("expected an incident to be created for a critical event")
	}
	if incident.Category != CategoryDataBreach {
		t.Fatalf("expected data_breach category, got %s", incident.Category)
	}
}

func TestLogEventFailureOutcomeEscalatesEvenAtLowSeverity(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, incident, err := e.LogEvent(context.Background(), AuditRecord{
		UserID:   "user-1",
		Action:   "unauthorized access attempt",
		Resource: "circuit-config",
		Severity: SeverityLow,
		Outcome:  OutcomeFailure,
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}
	if incident == nil {
		t.Fatal("expected a failure outcome to escalate regardless of severity")
	}
	if incident.Category != CategoryUnauthorizedAccess {
		t.Fatalf("expected unauthorized_access category, got %s", incident.Category)
	}
}

func TestDetermineIncidentCategoryDefaultsToUnauthorizedAccess(t *testing.T) {
	store := memory.New()
	e := New(store)

	_, incident, err := e.LogEvent(context.Background(), AuditRecord{
		UserID:   "user-1",
		Action:   "unexpected failure",
		Resource: "unknown",
		Severity: SeverityCritical,
		Outcome:  OutcomeBlocked,
	})
	if err != nil {
		t.Fatalf("log event: %v", err)
	}
	if incident.Category != CategoryUnauthorizedAccess {
		t.Fatalf("expected default category, got %s", incident.Category)
	}
}

func TestQueryEventsFiltersByUser(t *testing.T) {
	store := memory.New()
	e := New(store)
	ctx := context.Background()

	if _, _, err := e.LogEvent(ctx, AuditRecord{UserID: "user-1", Action: "login", Severity: SeverityLow, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("log event 1: %v", err)
	}
	if _, _, err := e.LogEvent(ctx, AuditRecord{UserID: "user-2", Action: "login", Severity: SeverityLow, Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("log event 2: %v", err)
	}

	results, err := e.QueryEvents(ctx, "user-1", "", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	if len(results) != 1 || results[0].UserID != "user-1" {
		t.Fatalf("expected only user-1's event, got %+v", results)
	}
}
