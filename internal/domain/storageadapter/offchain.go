package storageadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/defarm/traceability-core/infrastructure/httputil"
)

// OffchainOnlyAdapter stores the artifact at a remote content-addressed
// endpoint (e.g. object storage or a pinning service) and never anchors
// on a ledger. Calls are paced by a token-bucket limiter of
// Config.MaxConcurrent requests per second with a burst of
// Config.MaxConcurrent; the number of requests in flight at once is not
// bounded.
type OffchainOnlyAdapter struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOffchainOnlyAdapter builds an adapter against cfg.Endpoint.
func NewOffchainOnlyAdapter(cfg Config) (*OffchainOnlyAdapter, error) {
	normalized, _, err := httputil.NormalizeBaseURL(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid offchain endpoint: %w", err)
	}
	cfg.Endpoint = normalized

	limit := cfg.MaxConcurrent
	if limit <= 0 {
		limit = 10
	}

	return &OffchainOnlyAdapter{
		cfg:        cfg,
		httpClient: httputil.CopyHTTPClientWithTimeout(nil, cfg.Timeout, cfg.Timeout != 0),
		limiter:    rate.NewLimiter(rate.Limit(limit), limit),
	}, nil
}

func (a *OffchainOnlyAdapter) authorize(req *http.Request) {
	switch a.cfg.Auth {
	case AuthAPIKey:
		req.Header.Set("X-Api-Key", a.cfg.AuthSecret)
	case AuthBearerToken:
		req.Header.Set("Authorization", "Bearer "+a.cfg.AuthSecret)
	case AuthBasicAuth:
		req.SetBasicAuth(a.cfg.ConfigID, a.cfg.AuthSecret)
	}
}

func (a *OffchainOnlyAdapter) StoreItem(ctx context.Context, entity Entity) (StorageLocation, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return StorageLocation{}, fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(entity)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("marshal entity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.cfg.Endpoint+"/items/"+entity.GID, bytes.NewReader(body))
	if err != nil {
		return StorageLocation{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return StorageLocation{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return StorageLocation{}, fmt.Errorf("auth error: http %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return StorageLocation{}, fmt.Errorf("quota exceeded: http %d", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return StorageLocation{}, fmt.Errorf("unexpected status: http %d", resp.StatusCode)
	}

	var result struct {
		ContentID string `json:"content_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StorageLocation{}, fmt.Errorf("decode response: %w", err)
	}

	return StorageLocation{PrimaryLocation: result.ContentID}, nil
}

func (a *OffchainOnlyAdapter) RetrieveItem(ctx context.Context, location StorageLocation) (Entity, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Entity{}, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.Endpoint+"/items/"+location.PrimaryLocation, nil)
	if err != nil {
		return Entity{}, fmt.Errorf("build request: %w", err)
	}
	a.authorize(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Entity{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Entity{}, fmt.Errorf("unexpected status: http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entity{}, fmt.Errorf("read body: %w", err)
	}
	var entity Entity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return Entity{}, fmt.Errorf("unmarshal entity: %w", err)
	}
	return entity, nil
}
