// Package conflict provides diagnostics for the ConflictingGIDs scenarios
// the Identity Engine's canonical/fingerprint probes can surface. It is a
// pure, storage-free analysis layer: callers supply the candidate GIDs
// already found for each identifier (e.g. from identity.Engine's probes)
// and get back a severity-ranked explanation with suggested next steps.
package conflict

// Severity ranks how serious a detected conflict is.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// Type is the closed set of conflict kinds this package detects.
type Type string

const (
	TypeIdentifierGIDMapping Type = "identifier_gid_mapping"
	TypeDuplicateDetection   Type = "duplicate_detection"
	TypeDataQuality          Type = "data_quality"
)

// Strategy is a suggested resolution approach.
type Strategy string

const (
	StrategyAutoMerge      Strategy = "auto_merge"
	StrategyManualReview   Strategy = "manual_review"
	StrategySkipProcessing Strategy = "skip_processing"
)

// Info describes one detected conflict.
type Info struct {
	Type                 Type
	Severity             Severity
	Description          string
	AffectedIdentifiers  []string
	SuggestedResolution  Strategy
	Confidence           float64
}

// SuggestedAction is a next step surfaced to the caller (UI or operator
// workflow), mirroring the original implementation's shape.
type SuggestedAction struct {
	ActionType  string
	Description string
	Confidence  float64
	Automated   bool
}

// Result is the outcome of analyzing a bundle's identifiers for conflicts.
type Result struct {
	Conflicts       []Info
	Severity        Severity
	CanAutoResolve  bool
	SuggestedActions []SuggestedAction
}

// Candidates maps an identifier key (namespace:key:value) to every GID
// presently bound to it, as gathered by the caller's storage probes.
type Candidates map[string][]string

// DuplicateSignal reports an identifier that fuzzy-matches an existing GID
// without being an exact canonical/fingerprint hit — the caller computes
// the similarity score using its own matching logic (spec.md doesn't
// mandate a specific algorithm beyond "near-duplicate, ambiguous match").
type DuplicateSignal struct {
	IdentifierKey string
	GID           string
	Similarity    float64
}
