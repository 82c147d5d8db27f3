// Package events implements the append-only, content-hash-addressed event
// log: create, create_local, and promote_local per spec.md §4.3.
package events

import "time"

// Visibility controls who may read an event's metadata.
type Visibility string

const (
	VisibilityPublic      Visibility = "Public"
	VisibilityCircuitOnly Visibility = "CircuitOnly"
	VisibilityPrivate     Visibility = "Private"
)

// Type is the closed enumeration of event kinds. Domain-specific kinds
// beyond the ones named in spec.md §3 are free-form strings produced by
// calling engines (e.g. circuits uses "PushedToCircuit").
type Type string

const (
	TypeCreated            Type = "Created"
	TypeEnriched           Type = "Enriched"
	TypeMerged             Type = "Merged"
	TypeSplit              Type = "Split"
	TypePushedToCircuit    Type = "PushedToCircuit"
	TypePulledFromCircuit  Type = "PulledFromCircuit"
)

// Bundle is the input to Create/CreateLocal.
type Bundle struct {
	GID        string
	Type       Type
	Source     string
	Visibility Visibility
	Metadata   map[string]interface{}
}

// Event is the durable, content-addressed record returned to callers.
type Event struct {
	EventID          string
	GID              string
	LocalEventID     string
	Type             Type
	Source           string
	Visibility       Visibility
	Metadata         map[string]interface{}
	ContentHash      string
	Encrypted        bool
	Timestamp        time.Time
	WasDeduplicated  bool
	MergedKeys       []string
}

// localGIDPrefix marks a not-yet-promoted event's sentinel GID, per
// spec.md §4.3: "LOCAL-EVENT-{local_id}".
const localGIDPrefix = "LOCAL-EVENT-"
