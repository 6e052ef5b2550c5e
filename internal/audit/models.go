package audit

import (
	"time"

	"complyd/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing on the audit topic.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers administrative overrides worth alerting on,
	// such as reopening a closed finding.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity useful for
	// debugging and operational visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is one immutable audit-trail entry. Emitted from the records service
// on every mutation; transport-agnostic so stores and the Kafka relay can fan
// out.
type Event struct {
	ID         domain.EventID  `json:"id"`
	Category   EventCategory   `json:"category"`
	Timestamp  time.Time       `json:"timestamp"`
	RecordID   domain.RecordID `json:"record_id"`
	RecordKind string          `json:"record_kind"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	FromStatus string          `json:"from_status,omitempty"`
	ToStatus   string          `json:"to_status,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	ClientIP   string          `json:"client_ip,omitempty"`
}

// Audit action names. One per named mutation; transition actions reuse the
// lifecycle action verb prefixed by the record kind.
const (
	ActionRecordCreated      = "record_created"
	ActionRecordUpdated      = "record_updated"
	ActionRecordDeleted      = "record_deleted"
	ActionPolicyAcknowledged = "policy_acknowledged"
)

// eventCategories maps audit actions to categories. Compliance events need
// tamper-proof storage; security events flag administrative overrides;
// everything else is operations.
var eventCategories = map[string]EventCategory{
	ActionRecordCreated:      CategoryCompliance,
	ActionRecordDeleted:      CategoryCompliance,
	ActionPolicyAcknowledged: CategoryCompliance,

	"finding.close":              CategoryCompliance,
	"policy.approve":             CategoryCompliance,
	"policy.publish":             CategoryCompliance,
	"policy.supersede":           CategoryCompliance,
	"policy.retire":              CategoryCompliance,
	"ai_analysis.approve_result": CategoryCompliance,
	"ai_analysis.reject_result":  CategoryCompliance,
	"risk.accept":                CategoryCompliance,
	"risk.close":                 CategoryCompliance,

	"finding.reopen":      CategorySecurity,
	"finding.force_close": CategorySecurity,
	"risk.reopen":         CategorySecurity,
}

// CategoryFor returns the category for an audit action. Unknown actions
// default to operations.
func CategoryFor(action string) EventCategory {
	if cat, ok := eventCategories[action]; ok {
		return cat
	}
	return CategoryOperations
}

// TransitionAction builds the audit action name for a lifecycle transition,
// e.g. "finding.close".
func TransitionAction(kind, action string) string {
	return kind + "." + action
}
