package chain

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// RPCEndpoint tracks one RPC URL's health within a pool.
type RPCEndpoint struct {
	URL              string
	Priority         int
	Healthy          bool
	ConsecutiveFails int
	LastCheck        time.Time
	LastLatency      time.Duration
	AvgLatency       time.Duration

	client *Client
}

// RPCPoolConfig configures an RPCPool.
type RPCPoolConfig struct {
	Endpoints           []string
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	MaxConsecutiveFails int
	HTTPClient          *http.Client
}

// DefaultRPCPoolConfig returns sensible defaults.
func DefaultRPCPoolConfig() *RPCPoolConfig {
	return &RPCPoolConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		MaxConsecutiveFails: 3,
	}
}

// RPCPool manages multiple RPC endpoints for one network, with health
// tracking and round-robin failover. The Ledger Indexer holds one RPCPool
// per configured network and never talks to a Client directly.
type RPCPool struct {
	mu        sync.RWMutex
	endpoints []*RPCEndpoint
	current   int
	config    *RPCPoolConfig
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewRPCPool builds a pool from a list of RPC URLs, eagerly constructing a
// Client for each.
func NewRPCPool(cfg *RPCPoolConfig) (*RPCPool, error) {
	if cfg == nil {
		cfg = DefaultRPCPoolConfig()
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("rpcpool: at least one endpoint required")
	}

	endpoints := make([]*RPCEndpoint, len(cfg.Endpoints))
	for i, url := range cfg.Endpoints {
		url = strings.TrimSpace(url)
		c, err := NewClient(Config{
			RPCURL:     url,
			Timeout:    cfg.HealthCheckTimeout,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			return nil, fmt.Errorf("rpcpool: endpoint %d: %w", i, err)
		}
		endpoints[i] = &RPCEndpoint{
			URL:      c.URL(),
			Priority: i,
			Healthy:  true,
			client:   c,
		}
	}

	return &RPCPool{
		endpoints: endpoints,
		config:    cfg,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start begins the background health-check loop.
func (p *RPCPool) Start(ctx context.Context) {
	go p.healthCheckLoop(ctx)
}

// Stop halts the health-check loop. Safe to call more than once.
func (p *RPCPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// GetBestEndpoint returns the healthy endpoint with the lowest average
// latency, preferring lower configured priority on ties.
func (p *RPCPool) GetBestEndpoint() (*RPCEndpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := make([]*RPCEndpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		if ep.Healthy {
			healthy = append(healthy, ep)
		}
	}
	if len(healthy) == 0 {
		if len(p.endpoints) > 0 {
			return p.endpoints[0], fmt.Errorf("no healthy endpoints, using fallback")
		}
		return nil, fmt.Errorf("no endpoints available")
	}

	sort.Slice(healthy, func(i, j int) bool {
		if healthy[i].AvgLatency != healthy[j].AvgLatency {
			return healthy[i].AvgLatency < healthy[j].AvgLatency
		}
		return healthy[i].Priority < healthy[j].Priority
	})
	return healthy[0], nil
}

// GetNextEndpoint returns the next endpoint round-robin, skipping unhealthy
// ones where possible.
func (p *RPCPool) GetNextEndpoint() *RPCEndpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	startIdx := p.current
	for i := 0; i < len(p.endpoints); i++ {
		idx := (startIdx + i + 1) % len(p.endpoints)
		if p.endpoints[idx].Healthy {
			p.current = idx
			return p.endpoints[idx]
		}
	}
	p.current = (p.current + 1) % len(p.endpoints)
	return p.endpoints[p.current]
}

// MarkUnhealthy records a failed call against the endpoint, marking it
// unhealthy once MaxConsecutiveFails is reached.
func (p *RPCPool) MarkUnhealthy(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.URL == url {
			ep.ConsecutiveFails++
			if ep.ConsecutiveFails >= p.config.MaxConsecutiveFails {
				ep.Healthy = false
			}
			return
		}
	}
}

// MarkHealthy records a successful call, resetting the failure count and
// updating the latency moving average.
func (p *RPCPool) MarkHealthy(url string, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ep := range p.endpoints {
		if ep.URL == url {
			ep.Healthy = true
			ep.ConsecutiveFails = 0
			ep.LastLatency = latency
			if ep.AvgLatency == 0 {
				ep.AvgLatency = latency
			} else {
				ep.AvgLatency = (ep.AvgLatency*7 + latency*3) / 10
			}
			return
		}
	}
}

// Endpoints returns a snapshot of every endpoint's current health.
func (p *RPCPool) Endpoints() []RPCEndpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]RPCEndpoint, len(p.endpoints))
	for i, ep := range p.endpoints {
		result[i] = *ep
	}
	return result
}

// HealthyCount returns how many endpoints are currently marked healthy.
func (p *RPCPool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, ep := range p.endpoints {
		if ep.Healthy {
			n++
		}
	}
	return n
}

func (p *RPCPool) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	p.checkAllEndpoints(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkAllEndpoints(ctx)
		}
	}
}

func (p *RPCPool) checkAllEndpoints(ctx context.Context) {
	var wg sync.WaitGroup
	p.mu.RLock()
	snapshot := make([]*RPCEndpoint, len(p.endpoints))
	copy(snapshot, p.endpoints)
	p.mu.RUnlock()

	for _, ep := range snapshot {
		wg.Add(1)
		go func(endpoint *RPCEndpoint) {
			defer wg.Done()
			p.checkEndpoint(ctx, endpoint)
		}(ep)
	}
	wg.Wait()
}

// checkEndpoint uses getLatestLedger as a cheap liveness probe, matching
// the way the indexer itself calls the endpoint — no separate ping method
// exists on a Soroban-style RPC.
func (p *RPCPool) checkEndpoint(ctx context.Context, ep *RPCEndpoint) {
	ctx, cancel := context.WithTimeout(ctx, p.config.HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	_, err := ep.client.GetLatestLedger(ctx)
	latency := time.Since(start)

	if err != nil {
		p.MarkUnhealthy(ep.URL)
		return
	}
	p.MarkHealthy(ep.URL, latency)

	p.mu.Lock()
	ep.LastCheck = time.Now()
	p.mu.Unlock()
}

// ExecuteWithFailover runs fn against the best endpoint, retrying against
// the next healthy endpoint (round-robin) on error, up to maxRetries times.
func (p *RPCPool) ExecuteWithFailover(ctx context.Context, maxRetries int, fn func(c *Client) error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		var ep *RPCEndpoint
		var err error

		if attempt == 0 {
			ep, err = p.GetBestEndpoint()
		} else {
			ep = p.GetNextEndpoint()
		}
		if ep == nil {
			return fmt.Errorf("no endpoints available")
		}

		start := time.Now()
		err = fn(ep.client)
		latency := time.Since(start)

		if err == nil {
			p.MarkHealthy(ep.URL, latency)
			return nil
		}

		lastErr = err
		p.MarkUnhealthy(ep.URL)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return fmt.Errorf("all retries exhausted: %w", lastErr)
}
