package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/defarm/traceability-core/internal/storage"
)

func TestGetIndexingProgressReturnsNotFoundFalseWithoutError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT network, last_indexed_ledger, last_confirmed_ledger, last_indexed_at, status, total_events_indexed").
		WithArgs("testnet").
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.GetIndexingProgress(context.Background(), "testnet")
	if err != nil {
		t.Fatalf("expected no error for a missing row, got %v", err)
	}
	if found {
		t.Fatal("expected found=false")
	}
}

func TestGetIndexingProgressScansRow(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"network", "last_indexed_ledger", "last_confirmed_ledger", "last_indexed_at", "status", "total_events_indexed", "error_message",
	}).AddRow("testnet", int64(100), int64(95), time.Unix(100, 0), "active", int64(42), "")
	mock.ExpectQuery("SELECT network, last_indexed_ledger, last_confirmed_ledger, last_indexed_at, status, total_events_indexed").
		WithArgs("testnet").
		WillReturnRows(rows)

	p, found, err := store.GetIndexingProgress(context.Background(), "testnet")
	if err != nil {
		t.Fatalf("get indexing progress: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if p.LastIndexedLedger != 100 || p.Status != "active" || p.TotalEventsIndexed != 42 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}

func TestSaveIndexingProgressUpsertsRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO indexing_progress").
		WithArgs("testnet", int64(100), int64(95), sqlmock.AnyArg(), "active", int64(42), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p, err := store.SaveIndexingProgress(context.Background(), storage.IndexingProgress{
		Network:             "testnet",
		LastIndexedLedger:   100,
		LastConfirmedLedger: 95,
		Status:              "active",
		TotalEventsIndexed:  42,
	})
	if err != nil {
		t.Fatalf("save indexing progress: %v", err)
	}
	if p.LastIndexedAt.IsZero() {
		t.Fatal("expected a generated timestamp when none was given")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIndexingProgressPassesThroughErrorMessage(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO indexing_progress").
		WithArgs("testnet", int64(100), int64(95), sqlmock.AnyArg(), "degraded", int64(42), "rpc timeout").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := store.SaveIndexingProgress(context.Background(), storage.IndexingProgress{
		Network:             "testnet",
		LastIndexedLedger:   100,
		LastConfirmedLedger: 95,
		Status:              "degraded",
		TotalEventsIndexed:  42,
		ErrorMessage:        "rpc timeout",
	})
	if err != nil {
		t.Fatalf("save indexing progress: %v", err)
	}
}

func TestListIndexingProgressReturnsAllNetworks(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"network", "last_indexed_ledger", "last_confirmed_ledger", "last_indexed_at", "status", "total_events_indexed", "error_message",
	}).
		AddRow("mainnet", int64(200), int64(198), time.Unix(200, 0), "active", int64(10), "").
		AddRow("testnet", int64(100), int64(95), time.Unix(100, 0), "active", int64(42), "")
	mock.ExpectQuery("SELECT network, last_indexed_ledger, last_confirmed_ledger, last_indexed_at, status, total_events_indexed").
		WillReturnRows(rows)

	list, err := store.ListIndexingProgress(context.Background())
	if err != nil {
		t.Fatalf("list indexing progress: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(list))
	}
}
