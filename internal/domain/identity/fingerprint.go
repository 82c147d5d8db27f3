package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/defarm/traceability-core/internal/domain/safejson"
)

// ComputeFingerprint hashes the canonicalized identifier bundle plus the
// optional payload, used by circuits that opt into fingerprint-based
// dedup in place of a canonical identifier.
func ComputeFingerprint(identifiers []Identifier, payload map[string]interface{}) string {
	sorted := make([]Identifier, len(identifiers))
	copy(sorted, identifiers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Namespace != sorted[j].Namespace {
			return sorted[i].Namespace < sorted[j].Namespace
		}
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})

	bundle := map[string]interface{}{
		"identifiers": identifiersToMaps(sorted),
	}
	if payload != nil {
		bundle["payload"] = payload
	}

	canonical, err := safejson.Canonicalize(bundle)
	if err != nil {
		// Canonicalize only fails on values json.Marshal itself cannot
		// encode (channels, funcs); identifier bundles and decoded JSON
		// payloads never contain those, so this path is unreachable in
		// practice. Hash the error text rather than panicking.
		canonical = []byte(err.Error())
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func identifiersToMaps(identifiers []Identifier) []map[string]interface{} {
	out := make([]map[string]interface{}, len(identifiers))
	for i, id := range identifiers {
		out[i] = map[string]interface{}{
			"namespace": id.Namespace,
			"key":       id.Key,
			"value":     id.Value,
			"kind":      string(id.Kind),
			"registry":  id.Registry,
		}
	}
	return out
}
