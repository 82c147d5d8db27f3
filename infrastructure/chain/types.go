// Package chain provides the public-ledger RPC client used by the Ledger
// Indexer and the Storage Adapter's anchor call. The wire shapes follow the
// Soroban RPC surface named in spec.md §6: getEvents and getLatestLedger.
package chain

import "encoding/json"

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RPCResponse is a generic JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// GetEventsFilter restricts getEvents to one contract, matching the wire
// shape in spec.md §6.
type GetEventsFilter struct {
	Type        string   `json:"type"`
	ContractIDs []string `json:"contractIds"`
}

// GetEventsParams is the params object for the getEvents JSON-RPC call.
type GetEventsParams struct {
	StartLedger int64             `json:"startLedger"`
	Filters     []GetEventsFilter `json:"filters"`
	XDRFormat   string            `json:"xdrFormat"`
}

// LedgerEvent is one event entry in a getEvents response, in JSON XDR
// format (xdrFormat: "json").
type LedgerEvent struct {
	Type            string            `json:"type"`
	Ledger          int64             `json:"ledger"`
	LedgerClosedAt  string            `json:"ledgerClosedAt"`
	ContractID      string            `json:"contractId"`
	TxHash          string            `json:"txHash"`
	Topic           []jsonVal         `json:"topic"`
	Value           jsonVal           `json:"value"`
}

// jsonVal is a loosely-typed Soroban JSON-XDR scalar/tuple value: it may be
// a bare string/number, or an object like {"string": "..."} / {"u64": 123}.
type jsonVal interface{}

// GetEventsResult is the result object of a getEvents response.
type GetEventsResult struct {
	Events              []LedgerEvent `json:"events"`
	LatestLedger        int64         `json:"latestLedger"`
	OldestLedger        int64         `json:"oldestLedger"`
	Cursor              string        `json:"cursor"`
}

// GetLatestLedgerResult is the result object of a getLatestLedger response.
type GetLatestLedgerResult struct {
	Sequence     int64 `json:"sequence"`
	OldestLedger int64 `json:"oldestLedger"`
}
