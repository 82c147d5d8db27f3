package ledgerindexer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/defarm/traceability-core/infrastructure/chain"
	"github.com/defarm/traceability-core/infrastructure/metrics"
	"github.com/defarm/traceability-core/internal/storage"
)

// Syncer polls every configured network's ledger for anchor events and
// ingests them into the timeline store. One RPCPool per network backs its
// failover; the polling loop itself follows the teacher's
// services/indexer/syncer.go shape.
type Syncer struct {
	cfg     Config
	store   storage.Store
	pools   map[string]*chain.RPCPool
	log     *logrus.Entry
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// WithMetrics attaches a Metrics recorder. Optional; a nil recorder on an
// unconfigured Syncer is a no-op.
func (s *Syncer) WithMetrics(m *metrics.Metrics) *Syncer {
	s.metrics = m
	return s
}

// NewSyncer builds a Syncer, constructing one RPCPool per configured network.
func NewSyncer(cfg Config, store storage.Store) (*Syncer, error) {
	pools := make(map[string]*chain.RPCPool, len(cfg.Networks))
	for _, nc := range cfg.Networks {
		if len(nc.RPCURLs) == 0 {
			return nil, fmt.Errorf("network %s: at least one RPC URL required", nc.Network)
		}
		pool, err := chain.NewRPCPool(&chain.RPCPoolConfig{
			Endpoints:           nc.RPCURLs,
			HealthCheckInterval: 30 * time.Second,
			HealthCheckTimeout:  5 * time.Second,
			MaxConsecutiveFails: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("network %s: build rpc pool: %w", nc.Network, err)
		}
		pools[nc.Network] = pool
	}

	return &Syncer{
		cfg:    cfg,
		store:  store,
		pools:  pools,
		log:    logrus.WithField("component", "ledger-indexer"),
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the polling loop for every configured network.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("ledger indexer already running")
	}
	s.running = true
	s.mu.Unlock()

	for _, pool := range s.pools {
		pool.Start(ctx)
	}

	for _, nc := range s.cfg.Networks {
		go s.networkLoop(ctx, nc)
	}
	s.log.Info("starting ledger indexer")
	return nil
}

// Stop halts every network's polling loop. Safe to call more than once.
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopCh)
		s.running = false
		for _, pool := range s.pools {
			pool.Stop()
		}
	}
}

func (s *Syncer) networkLoop(ctx context.Context, nc NetworkConfig) {
	ticker := time.NewTicker(nc.pollInterval())
	defer ticker.Stop()

	s.pollOnce(ctx, nc)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pollOnce(ctx, nc)
		}
	}
}

func (s *Syncer) pollOnce(ctx context.Context, nc NetworkConfig) {
	log := s.log.WithField("network", nc.Network)
	pool := s.pools[nc.Network]

	progress, found, err := s.store.GetIndexingProgress(ctx, nc.Network)
	if err != nil {
		log.WithError(err).Error("load indexing progress")
		return
	}
	if !found {
		progress = storage.IndexingProgress{Network: nc.Network, Status: "active"}
	}

	startLedger := progress.LastIndexedLedger + 1
	if progress.LastIndexedLedger <= 0 {
		bootstrap, err := s.suggestStartLedger(ctx, pool, nc)
		if err != nil {
			log.WithError(err).Error("bootstrap start ledger")
			return
		}
		log.WithField("ledger", bootstrap).Info("no prior progress, bootstrapping")
		startLedger = bootstrap
	}
	endLedger := startLedger + nc.batchSize()

	result, err := s.getEvents(ctx, pool, nc, startLedger)
	if err != nil && isStartLedgerTooOld(err) {
		log.WithError(err).Warn("indexing window too old, rewinding")
		startLedger, err = s.suggestStartLedger(ctx, pool, nc)
		if err != nil {
			log.WithError(err).Error("rewind start ledger")
			return
		}
		endLedger = startLedger + nc.batchSize()
		result, err = s.getEvents(ctx, pool, nc, startLedger)
	}
	if err != nil {
		log.WithError(err).Error("get events")
		s.recordError(ctx, nc.Network, progress, err)
		if s.metrics != nil {
			s.metrics.RecordLedgerSyncError(nc.Network, "rpc")
		}
		return
	}

	events, parseErrs := parseEvents(result.Events)
	for _, perr := range parseErrs {
		log.WithError(perr).Warn("skipping unparseable event")
		if s.metrics != nil {
			s.metrics.RecordLedgerSyncError(nc.Network, "parse")
		}
	}

	indexed := int64(0)
	for _, ev := range events {
		if err := s.ingest(ctx, nc.Network, ev); err != nil {
			log.WithError(err).WithField("gid", ev.GID).Warn("ingest event")
			continue
		}
		indexed++
	}

	newProgress := storage.IndexingProgress{
		Network:             nc.Network,
		LastIndexedLedger:   endLedger - 1,
		LastConfirmedLedger: result.LatestLedger,
		LastIndexedAt:       time.Now().UTC(),
		Status:              "active",
		TotalEventsIndexed:  progress.TotalEventsIndexed + indexed,
	}
	if _, err := s.store.SaveIndexingProgress(ctx, newProgress); err != nil {
		log.WithError(err).Error("save indexing progress")
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerIndexed(nc.Network, int(indexed))
		if result.LatestLedger > 0 {
			s.metrics.SetLedgerLag(nc.Network, result.LatestLedger-newProgress.LastConfirmedLedger)
		}
	}
}

func (s *Syncer) recordError(ctx context.Context, network string, progress storage.IndexingProgress, cause error) {
	progress.Network = network
	progress.Status = "degraded"
	progress.ErrorMessage = cause.Error()
	if _, err := s.store.SaveIndexingProgress(ctx, progress); err != nil {
		s.log.WithError(err).WithField("network", network).Error("persist error state")
	}
}

func (s *Syncer) getEvents(ctx context.Context, pool *chain.RPCPool, nc NetworkConfig, startLedger int64) (*chain.GetEventsResult, error) {
	var result *chain.GetEventsResult
	err := pool.ExecuteWithFailover(ctx, 3, func(c *chain.Client) error {
		r, err := c.GetEvents(ctx, nc.ContractAddress, startLedger)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// suggestStartLedger mirrors the original implementation's bootstrap
// heuristic: start DEFAULT_INITIAL_LEDGER_LOOKBACK ledgers before the chain
// tip, clamped to the oldest ledger the endpoint still retains.
func (s *Syncer) suggestStartLedger(ctx context.Context, pool *chain.RPCPool, nc NetworkConfig) (int64, error) {
	var latest *chain.GetLatestLedgerResult
	err := pool.ExecuteWithFailover(ctx, 3, func(c *chain.Client) error {
		r, err := c.GetLatestLedger(ctx)
		if err != nil {
			return err
		}
		latest = r
		return nil
	})
	if err != nil {
		return 0, err
	}

	lookback := defaultInitialLedgerLookback
	if nc.batchSize() > lookback {
		lookback = nc.batchSize()
	}

	start := latest.Sequence - lookback
	if latest.OldestLedger > 0 && start < latest.OldestLedger {
		start = latest.OldestLedger
	}
	if start < 1 {
		start = 1
	}
	return start, nil
}

func (s *Syncer) ingest(ctx context.Context, network string, ev anchorEvent) error {
	_, err := s.store.AddCIDToTimeline(ctx, storage.TimelineEntry{
		GID:             ev.GID,
		ContentID:       ev.ContentID,
		AnchorTxHash:    ev.TxHash,
		LedgerTimestamp: ev.LedgerTimestamp,
		Network:         network,
	})
	return err
}

// isStartLedgerTooOld matches an RPC error complaining the requested start
// ledger falls outside the endpoint's retained window, so the caller can
// rewind to a safe start instead of failing the whole poll.
func isStartLedgerTooOld(err error) bool {
	lower := strings.ToLower(err.Error())
	mentionsStart := strings.Contains(lower, "startledger") || strings.Contains(lower, "start ledger")
	mentionsRange := strings.Contains(lower, "oldest") ||
		strings.Contains(lower, "too low") ||
		strings.Contains(lower, "before") ||
		strings.Contains(lower, "range") ||
		strings.Contains(lower, "within")
	return mentionsStart && mentionsRange
}
