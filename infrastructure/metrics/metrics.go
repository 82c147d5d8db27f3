// Package metrics provides Prometheus metrics collection for the
// traceability platform's background services (ledger indexer, storage
// adapters) and identity resolution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors shared across the platform's
// binaries.
type Metrics struct {
	LedgerEventsIndexedTotal *prometheus.CounterVec
	LedgerSyncErrorsTotal    *prometheus.CounterVec
	LedgerLagLedgers         *prometheus.GaugeVec

	StorageWritesTotal  *prometheus.CounterVec
	StorageWriteSeconds *prometheus.HistogramVec

	IdentityResolutionsTotal *prometheus.CounterVec

	ServiceInfo *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName, version string) *Metrics {
	return NewWithRegistry(serviceName, version, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// A nil registerer skips registration, useful in tests that construct
// collectors without a global registry.
func NewWithRegistry(serviceName, version string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		LedgerEventsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_events_indexed_total",
				Help: "Total number of ledger anchor events ingested into the timeline.",
			},
			[]string{"network"},
		),
		LedgerSyncErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_sync_errors_total",
				Help: "Total number of ledger sync poll failures.",
			},
			[]string{"network", "reason"},
		),
		LedgerLagLedgers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_lag_ledgers",
				Help: "Ledgers between the indexer's last confirmed position and the chain tip.",
			},
			[]string{"network"},
		),
		StorageWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_adapter_writes_total",
				Help: "Total number of item writes through a storage adapter.",
			},
			[]string{"kind", "status"},
		),
		StorageWriteSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_adapter_write_seconds",
				Help:    "Storage adapter write latency in seconds.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		IdentityResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_resolutions_total",
				Help: "Total number of identity resolution outcomes.",
			},
			[]string{"outcome"},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service build information.",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.LedgerEventsIndexedTotal,
			m.LedgerSyncErrorsTotal,
			m.LedgerLagLedgers,
			m.StorageWritesTotal,
			m.StorageWriteSeconds,
			m.IdentityResolutionsTotal,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, version).Set(1)
	return m
}

// RecordLedgerIndexed records count newly ingested anchor events for network.
func (m *Metrics) RecordLedgerIndexed(network string, count int) {
	if count <= 0 {
		return
	}
	m.LedgerEventsIndexedTotal.WithLabelValues(network).Add(float64(count))
}

// RecordLedgerSyncError records a poll failure for network, bucketed by a
// short reason keyword (e.g. "rpc", "parse").
func (m *Metrics) RecordLedgerSyncError(network, reason string) {
	m.LedgerSyncErrorsTotal.WithLabelValues(network, reason).Inc()
}

// SetLedgerLag records the gap between the indexer's confirmed ledger and
// the chain tip.
func (m *Metrics) SetLedgerLag(network string, lag int64) {
	m.LedgerLagLedgers.WithLabelValues(network).Set(float64(lag))
}

// RecordStorageWrite records a storage adapter write outcome and latency.
func (m *Metrics) RecordStorageWrite(kind, status string, duration time.Duration) {
	m.StorageWritesTotal.WithLabelValues(kind, status).Inc()
	m.StorageWriteSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordIdentityResolution records a resolution outcome (e.g. "matched",
// "ambiguous", "new").
func (m *Metrics) RecordIdentityResolution(outcome string) {
	m.IdentityResolutionsTotal.WithLabelValues(outcome).Inc()
}
