package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func TestCreateCircuitInsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO circuits").
		WithArgs("circuit-1", "Farm A", "owner-1", "Active", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, err := store.CreateCircuit(context.Background(), storage.Circuit{
		ID:      "circuit-1",
		Name:    "Farm A",
		OwnerID: "owner-1",
		Status:  "Active",
	})
	if err != nil {
		t.Fatalf("create circuit: %v", err)
	}
	if c.ID != "circuit-1" {
		t.Fatalf("expected the given ID to be kept, got %s", c.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateCircuitGeneratesIDWhenEmpty(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO circuits").
		WithArgs(sqlmock.AnyArg(), "Farm B", "owner-2", "Active", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	c, err := store.CreateCircuit(context.Background(), storage.Circuit{
		Name:    "Farm B",
		OwnerID: "owner-2",
		Status:  "Active",
	})
	if err != nil {
		t.Fatalf("create circuit: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected an ID to be generated")
	}
}

func TestUpdateCircuitReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("UPDATE circuits").
		WithArgs("circuit-missing", "", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateCircuit(context.Background(), storage.Circuit{ID: "circuit-missing"})
	if !errors.Is(err, errors.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetCircuitReturnsNotFoundFalseWithoutError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id, name, owner_id, status, blob, created_at, updated_at FROM circuits").
		WithArgs("circuit-missing").
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.GetCircuit(context.Background(), "circuit-missing")
	if err != nil {
		t.Fatalf("expected no error for a missing row, got %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestGetCircuitUnmarshalsBlobIntoSubStructures(t *testing.T) {
	store, mock := newTestStore(t)

	blob := `{
		"Members":[{"UserID":"user-1","Role":"Admin"}],
		"CustomRoles":{"vet":["write:health"]},
		"Permissions":{"RequirePushApproval":true,"PublicVisibility":false},
		"Alias":{"DefaultNamespace":"farm-a","UseFingerprint":true},
		"Adapter":{"ConfigID":"adapter-1","Sponsored":true},
		"JoinRequests":[{"ID":"jr-1","UserID":"user-2","Status":"Pending"}]
	}`
	rows := sqlmock.NewRows([]string{"id", "name", "owner_id", "status", "blob", "created_at", "updated_at"}).
		AddRow("circuit-1", "Farm A", "owner-1", "Active", []byte(blob), time.Unix(0, 0), time.Unix(0, 0))
	mock.ExpectQuery("SELECT id, name, owner_id, status, blob, created_at, updated_at FROM circuits").
		WithArgs("circuit-1").
		WillReturnRows(rows)

	c, found, err := store.GetCircuit(context.Background(), "circuit-1")
	if err != nil {
		t.Fatalf("get circuit: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if len(c.Members) != 1 || c.Members[0].UserID != "user-1" {
		t.Fatalf("unexpected members: %+v", c.Members)
	}
	if c.CustomRoles["vet"][0] != "write:health" {
		t.Fatalf("unexpected custom roles: %+v", c.CustomRoles)
	}
	if !c.Permissions.RequirePushApproval {
		t.Fatal("expected RequirePushApproval to be true")
	}
	if c.Alias.DefaultNamespace != "farm-a" || !c.Alias.UseFingerprint {
		t.Fatalf("unexpected alias config: %+v", c.Alias)
	}
	if c.Adapter.ConfigID != "adapter-1" || !c.Adapter.Sponsored {
		t.Fatalf("unexpected adapter ref: %+v", c.Adapter)
	}
	if len(c.JoinRequests) != 1 || c.JoinRequests[0].UserID != "user-2" {
		t.Fatalf("unexpected join requests: %+v", c.JoinRequests)
	}
}

func TestCreateOperationInsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO circuit_operations").
		WithArgs("op-1", "circuit-1", "Push", "Pending", "actor-1", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	op, err := store.CreateOperation(context.Background(), storage.CircuitOperation{
		ID:        "op-1",
		CircuitID: "circuit-1",
		Kind:      "Push",
		State:     "Pending",
		ActorID:   "actor-1",
	})
	if err != nil {
		t.Fatalf("create operation: %v", err)
	}
	if op.ID != "op-1" {
		t.Fatalf("expected op-1, got %s", op.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateOperationReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("UPDATE circuit_operations").
		WithArgs("op-missing", "Approved", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateOperation(context.Background(), storage.CircuitOperation{ID: "op-missing", State: "Approved"})
	if !errors.Is(err, errors.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetOperationReturnsNotFoundFalseWithoutError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT id, circuit_id, kind, state, actor_id").
		WithArgs("op-missing").
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.GetOperation(context.Background(), "op-missing")
	if err != nil {
		t.Fatalf("expected no error for a missing row, got %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestGetOperationScansPayloadAndIdentifiers(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "circuit_id", "kind", "state", "actor_id", "local_id", "gid", "payload", "identifiers", "created_at", "updated_at",
	}).AddRow("op-1", "circuit-1", "Push", "Pending", "actor-1", "local-1", "gid-1",
		[]byte(`{"note":"harvest batch"}`), []byte(`[{"Namespace":"farm-a","Key":"ear_tag","Value":"EU1"}]`),
		time.Unix(0, 0), time.Unix(0, 0))
	mock.ExpectQuery("SELECT id, circuit_id, kind, state, actor_id").
		WithArgs("op-1").
		WillReturnRows(rows)

	op, found, err := store.GetOperation(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("get operation: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if op.Payload["note"] != "harvest batch" {
		t.Fatalf("unexpected payload: %+v", op.Payload)
	}
	if len(op.Identifiers) != 1 || op.Identifiers[0].Value != "EU1" {
		t.Fatalf("unexpected identifiers: %+v", op.Identifiers)
	}
}

func TestListPendingOperationsReturnsOnlyScannedRows(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "circuit_id", "kind", "state", "actor_id", "local_id", "gid", "payload", "identifiers", "created_at", "updated_at",
	}).
		AddRow("op-1", "circuit-1", "Push", "Pending", "actor-1", "", "", []byte(`{}`), []byte(`[]`), time.Unix(0, 0), time.Unix(0, 0)).
		AddRow("op-2", "circuit-1", "Pull", "Pending", "actor-2", "", "", []byte(`{}`), []byte(`[]`), time.Unix(0, 0), time.Unix(0, 0))
	mock.ExpectQuery("SELECT id, circuit_id, kind, state, actor_id").
		WithArgs("circuit-1").
		WillReturnRows(rows)

	ops, err := store.ListPendingOperations(context.Background(), "circuit-1")
	if err != nil {
		t.Fatalf("list pending operations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != "op-1" || ops[1].ID != "op-2" {
		t.Fatalf("unexpected operations: %+v", ops)
	}
}
