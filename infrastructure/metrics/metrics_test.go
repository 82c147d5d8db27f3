package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistryRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("test-service", "v1.0.0", reg)

	if m == nil {
		t.Fatal("expected a non-nil metrics instance")
	}
	if m.LedgerEventsIndexedTotal == nil || m.LedgerSyncErrorsTotal == nil || m.LedgerLagLedgers == nil {
		t.Fatal("expected ledger collectors to be initialized")
	}
	if m.StorageWritesTotal == nil || m.StorageWriteSeconds == nil {
		t.Fatal("expected storage collectors to be initialized")
	}
	if m.IdentityResolutionsTotal == nil {
		t.Fatal("expected the identity collector to be initialized")
	}

	if got := testutil.ToFloat64(m.ServiceInfo.WithLabelValues("test-service", "v1.0.0")); got != 1 {
		t.Fatalf("expected service_info to be set to 1, got %v", got)
	}
}

func TestNewWithRegistrySkipsRegistrationWhenNil(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", nil)
	if m == nil {
		t.Fatal("expected a non-nil metrics instance even without a registerer")
	}
}

func TestRecordLedgerIndexedIgnoresNonPositiveCounts(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", prometheus.NewRegistry())

	m.RecordLedgerIndexed("testnet", 0)
	if got := testutil.ToFloat64(m.LedgerEventsIndexedTotal.WithLabelValues("testnet")); got != 0 {
		t.Fatalf("expected no increment for a zero count, got %v", got)
	}

	m.RecordLedgerIndexed("testnet", 3)
	if got := testutil.ToFloat64(m.LedgerEventsIndexedTotal.WithLabelValues("testnet")); got != 3 {
		t.Fatalf("expected the counter to be incremented by 3, got %v", got)
	}
}

func TestRecordLedgerSyncError(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", prometheus.NewRegistry())

	m.RecordLedgerSyncError("testnet", "rpc")
	m.RecordLedgerSyncError("testnet", "rpc")
	if got := testutil.ToFloat64(m.LedgerSyncErrorsTotal.WithLabelValues("testnet", "rpc")); got != 2 {
		t.Fatalf("expected 2 recorded errors, got %v", got)
	}
}

func TestSetLedgerLag(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", prometheus.NewRegistry())

	m.SetLedgerLag("testnet", 42)
	if got := testutil.ToFloat64(m.LedgerLagLedgers.WithLabelValues("testnet")); got != 42 {
		t.Fatalf("expected lag 42, got %v", got)
	}
}

func TestRecordStorageWrite(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", prometheus.NewRegistry())

	m.RecordStorageWrite("LocalOnly", "success", 250*time.Millisecond)
	if got := testutil.ToFloat64(m.StorageWritesTotal.WithLabelValues("LocalOnly", "success")); got != 1 {
		t.Fatalf("expected 1 recorded write, got %v", got)
	}
}

func TestRecordIdentityResolution(t *testing.T) {
	m := NewWithRegistry("test-service", "v1.0.0", prometheus.NewRegistry())

	m.RecordIdentityResolution("matched")
	m.RecordIdentityResolution("matched")
	m.RecordIdentityResolution("new")
	if got := testutil.ToFloat64(m.IdentityResolutionsTotal.WithLabelValues("matched")); got != 2 {
		t.Fatalf("expected 2 matched outcomes, got %v", got)
	}
	if got := testutil.ToFloat64(m.IdentityResolutionsTotal.WithLabelValues("new")); got != 1 {
		t.Fatalf("expected 1 new outcome, got %v", got)
	}
}
