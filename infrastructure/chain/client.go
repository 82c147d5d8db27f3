package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/defarm/traceability-core/infrastructure/httputil"
)

// Client speaks the ledger's JSON-RPC surface over a single endpoint. The
// Ledger Indexer and the Storage Adapter's anchor call both hold one Client
// per configured RPC URL and let RPCPool pick which Client to use for a
// given call.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// Config configures a single-endpoint Client.
type Config struct {
	RPCURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a client bound to one RPC endpoint.
func NewClient(cfg Config) (*Client, error) {
	normalized, _, err := httputil.NormalizeBaseURL(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("invalid RPC URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := httputil.CopyHTTPClientWithTimeout(cfg.HTTPClient, timeout, cfg.Timeout != 0)

	return &Client{rpcURL: normalized, httpClient: httpClient}, nil
}

// URL returns the endpoint this client is bound to.
func (c *Client) URL() string { return c.rpcURL }

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	reqBody := RPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc call %s: http %d", method, resp.StatusCode)
	}

	var rpcResp RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, formatRPCError(rpcResp.Error)
	}
	return rpcResp.Result, nil
}

func formatRPCError(e *RPCError) error {
	if e.Data != nil {
		return fmt.Errorf("rpc error %d: %s (%v)", e.Code, e.Message, e.Data)
	}
	return fmt.Errorf("rpc error %d: %s", e.Code, e.Message)
}

// GetEvents calls getEvents with the exact param shape spec.md §6 names:
// { startLedger, filters: [{type: "contract", contractIds: [address]}],
//   xdrFormat: "json" }.
func (c *Client) GetEvents(ctx context.Context, contractID string, startLedger int64) (*GetEventsResult, error) {
	params := GetEventsParams{
		StartLedger: startLedger,
		Filters: []GetEventsFilter{
			{Type: "contract", ContractIDs: []string{contractID}},
		},
		XDRFormat: "json",
	}

	raw, err := c.call(ctx, "getEvents", params)
	if err != nil {
		return nil, err
	}
	var result GetEventsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse getEvents result: %w", err)
	}
	return &result, nil
}

// GetLatestLedger calls getLatestLedger, returning the current tip and the
// oldest ledger the endpoint still retains.
func (c *Client) GetLatestLedger(ctx context.Context) (*GetLatestLedgerResult, error) {
	raw, err := c.call(ctx, "getLatestLedger", nil)
	if err != nil {
		return nil, err
	}
	var result GetLatestLedgerResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse getLatestLedger result: %w", err)
	}
	return &result, nil
}

// InvokeHostFunction submits a contract invocation. Used by the Storage
// Adapter's anchor call (emit_update_event). The indexer never calls this;
// it is write-path only.
func (c *Client) InvokeHostFunction(ctx context.Context, contractID, method string, args []interface{}) (txHash string, err error) {
	params := map[string]interface{}{
		"contractId": contractID,
		"method":     method,
		"args":       args,
	}
	raw, err := c.call(ctx, "simulateAndSendTransaction", params)
	if err != nil {
		return "", err
	}
	var result struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("parse invoke result: %w", err)
	}
	return result.Hash, nil
}
