package ledgerindexer

import (
	"fmt"
	"time"

	"github.com/defarm/traceability-core/infrastructure/chain"
)

// anchorEvent is one parsed (gid -> content_id) ledger event, after
// extracting the IPCM contract's topic/value shape. Field names follow
// spec.md §4.6 rather than the original Rust struct's dfid/cid naming.
type anchorEvent struct {
	GID             string
	ContentID       string
	TxHash          string
	LedgerTimestamp time.Time
	LedgerSequence  int64
}

// parseEvents converts the raw getEvents result into anchorEvents, skipping
// (and logging, at the call site) any entry that doesn't match the IPCM
// contract's expected topic/value shape: topic = (symbol "update", gid),
// value = (content_id, timestamp, updater_address).
func parseEvents(events []chain.LedgerEvent) ([]anchorEvent, []error) {
	result := make([]anchorEvent, 0, len(events))
	var errs []error

	for _, ev := range events {
		parsed, err := parseEvent(ev)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result = append(result, parsed)
	}
	return result, errs
}

func parseEvent(ev chain.LedgerEvent) (anchorEvent, error) {
	if len(ev.Topic) < 2 {
		return anchorEvent{}, fmt.Errorf("topic too short: expected at least 2 elements, got %d", len(ev.Topic))
	}

	gid, err := extractScalarString(ev.Topic[1])
	if err != nil {
		return anchorEvent{}, fmt.Errorf("extract gid from topic: %w", err)
	}

	valueArr, ok := ev.Value.([]interface{})
	if !ok || len(valueArr) == 0 {
		return anchorEvent{}, fmt.Errorf("event value is not a non-empty array")
	}
	contentID, err := extractScalarString(valueArr[0])
	if err != nil {
		return anchorEvent{}, fmt.Errorf("extract content id from value: %w", err)
	}

	if ev.TxHash == "" {
		return anchorEvent{}, fmt.Errorf("event missing txHash")
	}

	closedAt, err := time.Parse(time.RFC3339, ev.LedgerClosedAt)
	if err != nil {
		return anchorEvent{}, fmt.Errorf("invalid ledgerClosedAt %q: %w", ev.LedgerClosedAt, err)
	}

	return anchorEvent{
		GID:             gid,
		ContentID:       contentID,
		TxHash:          ev.TxHash,
		LedgerTimestamp: closedAt,
		LedgerSequence:  ev.Ledger,
	}, nil
}

// extractScalarString pulls a string out of a Soroban JSON-XDR scalar,
// which may arrive as a bare string or as a wrapped {"string": "..."} /
// {"String": "..."} object, per the original listener's tolerant parsing.
func extractScalarString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case map[string]interface{}:
		if s, ok := val["string"].(string); ok {
			return s, nil
		}
		if s, ok := val["String"].(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("unrecognized scalar shape: %#v", v)
}
