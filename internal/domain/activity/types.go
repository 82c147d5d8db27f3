// Package activity implements the Activity/Audit Engine named in spec.md
// §4.7: best-effort user activity logging, plus security-relevant audit
// events that escalate to incidents under defined conditions.
package activity

import "time"

// Severity is the closed set of audit severities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Outcome is the closed set of audit outcomes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeBlocked Outcome = "blocked"
)

// IncidentCategory is the closed set of auto-escalated incident categories.
type IncidentCategory string

const (
	CategoryDataBreach        IncidentCategory = "data_breach"
	CategoryUnauthorizedAccess IncidentCategory = "unauthorized_access"
	CategorySystemCompromise  IncidentCategory = "system_compromise"
	CategoryPolicyViolation   IncidentCategory = "policy_violation"
	CategoryDenialOfService   IncidentCategory = "denial_of_service"
)

// ActivityRecord is a low-severity, best-effort user-visible action.
type ActivityRecord struct {
	UserID    string
	Action    string
	Details   map[string]interface{}
	Timestamp time.Time
}

// AuditRecord is a security-relevant action record.
type AuditRecord struct {
	UserID     string
	Action     string
	Resource   string
	Severity   Severity
	Outcome    Outcome
	Compliance []string
	Details    map[string]interface{}
	Timestamp  time.Time
}

// Incident is a derived security incident, auto-created when an audit
// record is Critical severity or a Failure/Blocked outcome.
type Incident struct {
	ID                 string
	Category           IncidentCategory
	Title              string
	Description        string
	OriginatingUserID  string
	OriginatingEventID string
	CreatedAt          time.Time
}
