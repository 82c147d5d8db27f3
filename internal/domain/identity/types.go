// Package identity resolves dirty, producer-local identifier bundles to a
// stable global identifier (GID), performing enrichment-merge when a bundle
// matches an entity already on file.
package identity

import "time"

// Kind distinguishes registry-backed canonical identifiers from
// producer-scoped contextual ones.
type Kind string

const (
	KindCanonical  Kind = "Canonical"
	KindContextual Kind = "Contextual"
)

// Identifier is one (namespace, key, value, kind) tuple submitted as part of
// a resolve bundle. Registry is only meaningful when Kind is Canonical.
type Identifier struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Kind      Kind   `json:"kind"`
	Registry  string `json:"registry,omitempty"`
}

// Status is an Entity's lifecycle state.
type Status string

const (
	StatusActive     Status = "Active"
	StatusMerged     Status = "Merged"
	StatusSplit      Status = "Split"
	StatusDeprecated Status = "Deprecated"
)

// Entity is the resolved, durable record behind a GID.
type Entity struct {
	GID         string                 `json:"gid"`
	Identifiers []Identifier           `json:"identifiers"`
	Enrichment  map[string]interface{} `json:"enrichment"`
	Status      Status                 `json:"status"`
	Confidence  float64                `json:"confidence"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// ResolveStatus reports the outcome of a resolve call.
type ResolveStatus string

const (
	StatusNewItemCreated      ResolveStatus = "NewItemCreated"
	StatusExistingItemEnriched ResolveStatus = "ExistingItemEnriched"
	StatusConflict            ResolveStatus = "Conflict"
)

// AliasConfig is the circuit-scoped policy the resolve algorithm enforces:
// allowed namespaces, required identifier keys, fingerprint dedup, and
// default-namespace auto-application.
type AliasConfig struct {
	AllowedNamespaces  []string `json:"allowed_namespaces,omitempty"`
	AutoApplyNamespace bool     `json:"auto_apply_namespace"`
	DefaultNamespace   string   `json:"default_namespace,omitempty"`
	UseFingerprint     bool     `json:"use_fingerprint"`
	RequiredCanonical  []string `json:"required_canonical,omitempty"`
	RequiredContextual []string `json:"required_contextual,omitempty"`
}

// Bundle is the input to Resolve: the identifiers observed for one producer
// submission, an optional content payload, and the circuit context the
// submission was made under.
type Bundle struct {
	Identifiers []Identifier
	Payload     map[string]interface{}
	CircuitID   string
	ActorID     string
	Alias       AliasConfig
}

// Result is the output of Resolve.
type Result struct {
	GID              string
	Status           ResolveStatus
	EnrichedKeys     []string
	ConflictingGIDs  []string
	EnrichmentConflicts []string
}
