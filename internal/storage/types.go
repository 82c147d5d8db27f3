package storage

import "time"

// Item is the durable record behind a GID, as persisted by ItemStore. It
// mirrors identity.Entity but storage packages never import the domain
// packages — engines convert at the boundary — to keep the dependency
// graph a tree, per the layering spec.md §9 calls for.
type Item struct {
	GID         string
	Identifiers []Identifier
	Enrichment  map[string]interface{}
	Status      string
	Confidence  float64
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identifier mirrors identity.Identifier for storage purposes.
type Identifier struct {
	Namespace string
	Key       string
	Value     string
	Kind      string
	Registry  string
}

// Event is the durable record behind an append-only log entry.
type Event struct {
	EventID       string
	GID           string
	LocalEventID  string
	Type          string
	Source        string
	Visibility    string
	Metadata      map[string]interface{}
	EncryptedBlob []byte
	Encrypted     bool
	ContentHash   string
	Timestamp     time.Time
}

// Circuit is the durable record behind a permissioned sharing repository.
type Circuit struct {
	ID           string
	Name         string
	OwnerID      string
	Members      []Member
	CustomRoles  map[string][]string
	Permissions  CircuitPermissions
	Alias        AliasConfig
	Adapter      AdapterRef
	JoinRequests []JoinRequest
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Member is one circuit membership record.
type Member struct {
	UserID     string
	Role       string
	CustomRole string
	JoinedAt   time.Time
}

// CircuitPermissions is the circuit-level policy block.
type CircuitPermissions struct {
	RequirePushApproval bool
	RequirePullApproval bool
	PublicVisibility    bool
	AllowedNamespaces   []string
	AutoApproveMembers  bool
}

// AliasConfig mirrors identity.AliasConfig for storage.
type AliasConfig struct {
	AllowedNamespaces  []string
	AutoApplyNamespace bool
	DefaultNamespace   string
	UseFingerprint     bool
	RequiredCanonical  []string
	RequiredContextual []string
}

// AdapterRef names which AdapterConfig a circuit uses and whether it
// sponsors adapter credentials for its members.
type AdapterRef struct {
	ConfigID  string
	Sponsored bool
}

// JoinRequest is a pending or resolved request to join a circuit.
type JoinRequest struct {
	ID          string
	UserID      string
	Status      string
	RequestedAt time.Time
	ResolvedAt  time.Time
}

// CircuitOperation is a push or pull request awaiting or past approval.
type CircuitOperation struct {
	ID          string
	CircuitID   string
	Kind        string
	State       string
	ActorID     string
	LocalID     string
	GID         string
	Payload     map[string]interface{}
	Identifiers []Identifier
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserActivity is a low-severity, best-effort user-visible action record.
type UserActivity struct {
	ID        string
	UserID    string
	Action    string
	Details   map[string]interface{}
	Timestamp time.Time
}

// AuditEvent is a security-relevant action record.
type AuditEvent struct {
	ID         string
	UserID     string
	Action     string
	Resource   string
	Severity   string
	Outcome    string
	Compliance []string
	Details    map[string]interface{}
	Timestamp  time.Time
}

// AuditQuery filters AuditEvent reads.
type AuditQuery struct {
	UserID    string
	Action    string
	Severity  string
	Since     time.Time
	Until     time.Time
}

// SecurityIncident is an escalated audit event.
type SecurityIncident struct {
	ID                string
	Category          string
	OriginatingEventID string
	CreatedAt         time.Time
}

// TimelineEntry is one ledger-anchored content-id record for a GID.
type TimelineEntry struct {
	GID             string
	Sequence        int64
	ContentID       string
	AnchorTxHash    string
	LedgerTimestamp time.Time
	Network         string
	CreatedAt       time.Time
}

// IndexingProgress is the per-network indexer checkpoint.
type IndexingProgress struct {
	Network             string
	LastIndexedLedger   int64
	LastConfirmedLedger int64
	LastIndexedAt       time.Time
	Status              string
	TotalEventsIndexed  int64
	ErrorMessage        string
}

// AdapterConfig describes one configured Storage Adapter.
type AdapterConfig struct {
	ConfigID        string
	Name            string
	Kind            string
	Endpoint        string
	Auth            string
	AuthSecretRef   string
	ContractAddress string
	Network         string
	TimeoutSecs     int
	RetryCount      int
	MaxConcurrent   int
	IsActive        bool
	IsDefault       bool
	TestStatus      string
}

// StorageRecord is one entry in a GID's storage history.
type StorageRecord struct {
	GID             string
	AdapterKind     string
	StorageLocation string
	StoredAt        time.Time
	TriggeredBy     string
	IsActive        bool
}
