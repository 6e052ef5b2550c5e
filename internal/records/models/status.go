package models

import (
	"strings"
	"time"

	dErrors "complyd/pkg/domain-errors"
)

// Status is a lifecycle state. The value set is kind-specific; the transition
// tables below are the single source of truth for what moves where. Handlers
// and services never branch on status strings directly.
type Status string

const (
	// Finding lifecycle.
	StatusOpen              Status = "open"
	StatusInProgress        Status = "in_progress"
	StatusPendingValidation Status = "pending_validation"
	StatusClosed            Status = "closed"

	// Policy lifecycle.
	StatusDraft           Status = "draft"
	StatusPendingReview   Status = "pending_review"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusPublished       Status = "published"
	StatusUnderRevision   Status = "under_revision"
	StatusSuperseded      Status = "superseded"
	StatusRetired         Status = "retired"

	// AI analysis lifecycle.
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"

	// Risk lifecycle.
	StatusIdentified Status = "identified"
	StatusAssessed   Status = "assessed"
	StatusMitigating Status = "mitigating"
	StatusAccepted   Status = "accepted"

	// Vendor assessments have no transition table; they stay active until
	// deleted. Overdue is derived, never stored.
	StatusActive Status = "active"

	// StatusDeleted is the terminal soft-delete state for every kind. The
	// row stays so the audit history keeps a subject.
	StatusDeleted Status = "deleted"
)

// Action names a lifecycle operation. Each mutation is a named action so it
// pairs with exactly one audit entry.
type Action string

const (
	ActionStart            Action = "start"
	ActionSubmitValidation Action = "submit_validation"
	ActionClose            Action = "close"
	ActionReopen           Action = "reopen"
	ActionForceClose       Action = "force_close"

	ActionSubmitReview   Action = "submit_review"
	ActionSubmitApproval Action = "submit_approval"
	ActionApprove        Action = "approve"
	ActionPublish        Action = "publish"
	ActionRevise         Action = "revise"
	ActionSupersede      Action = "supersede"
	ActionRetire         Action = "retire"

	ActionStartProcessing Action = "start_processing"
	ActionComplete        Action = "complete"
	ActionApproveResult   Action = "approve_result"
	ActionRejectResult    Action = "reject_result"

	ActionAssess   Action = "assess"
	ActionMitigate Action = "mitigate"
	ActionAccept   Action = "accept"
)

// transitions is the explicit (kind, current status, action) -> next status
// lookup. Anything absent is an invalid transition; there is no skipping
// states except the admin-only force close.
var transitions = map[Kind]map[Status]map[Action]Status{
	KindFinding: {
		StatusOpen: {
			ActionStart:      StatusInProgress,
			ActionForceClose: StatusClosed,
		},
		StatusInProgress: {
			ActionSubmitValidation: StatusPendingValidation,
			ActionForceClose:       StatusClosed,
		},
		StatusPendingValidation: {
			ActionClose:      StatusClosed,
			ActionForceClose: StatusClosed,
		},
		StatusClosed: {
			ActionReopen: StatusOpen,
		},
	},
	KindPolicy: {
		StatusDraft:           {ActionSubmitReview: StatusPendingReview},
		StatusPendingReview:   {ActionSubmitApproval: StatusPendingApproval},
		StatusPendingApproval: {ActionApprove: StatusApproved},
		StatusApproved:        {ActionPublish: StatusPublished},
		StatusPublished: {
			ActionRevise:    StatusUnderRevision,
			ActionSupersede: StatusSuperseded,
			ActionRetire:    StatusRetired,
		},
		StatusUnderRevision: {
			ActionPublish:   StatusPublished,
			ActionSupersede: StatusSuperseded,
			ActionRetire:    StatusRetired,
		},
	},
	KindAIAnalysis: {
		StatusPending:    {ActionStartProcessing: StatusProcessing},
		StatusProcessing: {ActionComplete: StatusCompleted},
		StatusCompleted: {
			ActionApproveResult: StatusApproved,
			ActionRejectResult:  StatusRejected,
		},
	},
	KindRisk: {
		StatusIdentified: {ActionAssess: StatusAssessed},
		StatusAssessed: {
			ActionMitigate: StatusMitigating,
			ActionAccept:   StatusAccepted,
		},
		StatusMitigating: {
			ActionAccept: StatusAccepted,
			ActionClose:  StatusClosed,
		},
		StatusClosed: {
			ActionReopen: StatusIdentified,
		},
	},
	KindVendor: {},
}

var initialStatuses = map[Kind]Status{
	KindFinding:    StatusOpen,
	KindPolicy:     StatusDraft,
	KindAIAnalysis: StatusPending,
	KindRisk:       StatusIdentified,
	KindVendor:     StatusActive,
}

// terminalStatuses marks states that freeze descriptive edits. Reopen and
// force close remain available where the tables allow them.
var terminalStatuses = map[Kind]map[Status]bool{
	KindFinding:    {StatusClosed: true},
	KindPolicy:     {StatusSuperseded: true, StatusRetired: true},
	KindAIAnalysis: {StatusApproved: true, StatusRejected: true},
	KindRisk:       {StatusAccepted: true, StatusClosed: true},
	KindVendor:     {},
}

// InitialStatus returns the state a freshly created record of the kind
// starts in.
func InitialStatus(kind Kind) Status {
	return initialStatuses[kind]
}

// ValidStatus reports whether status belongs to the kind's state set.
func ValidStatus(kind Kind, status Status) bool {
	if status == StatusDeleted || status == InitialStatus(kind) {
		return true
	}
	for _, next := range transitions[kind] {
		for _, to := range next {
			if to == status {
				return true
			}
		}
	}
	_, fromKnown := transitions[kind][status]
	return fromKnown
}

// Terminal reports whether the record's current status freezes edits.
func (r *Record) Terminal() bool {
	if r.Status == StatusDeleted {
		return true
	}
	return terminalStatuses[r.Kind][r.Status]
}

// TransitionParams carries the per-action inputs the guards below consume.
type TransitionParams struct {
	// ManagementResponse is required for submit_validation.
	ManagementResponse string
	// VerificationNotes must be present for close; the empty string counts
	// as present, absence does not.
	VerificationNotes *string
	// ApprovedBy is required for approve_result.
	ApprovedBy string
	// RejectionReason is required for reject_result.
	RejectionReason string
	// ActorIsAdmin gates reopen and force_close.
	ActorIsAdmin bool
}

// CanApply validates the transition without mutating the record. Failures are
// deterministic rejections: retrying with the same input cannot succeed.
// Pair with Apply inside a store Execute callback.
func (r *Record) CanApply(action Action, p TransitionParams) error {
	if r.Status == StatusDeleted {
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	}
	if _, ok := transitions[r.Kind][r.Status][action]; !ok {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot %s %s record in status %q", action, r.Kind, r.Status)
	}

	switch action {
	case ActionSubmitValidation:
		if strings.TrimSpace(p.ManagementResponse) == "" {
			return dErrors.New(dErrors.CodeValidation, "management response is required")
		}
	case ActionClose:
		if r.Kind == KindFinding && p.VerificationNotes == nil {
			return dErrors.New(dErrors.CodeValidation, "verification notes are required")
		}
	case ActionReopen, ActionForceClose:
		if !p.ActorIsAdmin {
			return dErrors.Newf(dErrors.CodeForbidden, "%s requires an administrative role", action)
		}
	case ActionApproveResult:
		if r.Analysis == nil || !r.Analysis.RequiresHumanApproval {
			return dErrors.New(dErrors.CodeInvalidState, "analysis does not require human approval")
		}
		if strings.TrimSpace(p.ApprovedBy) == "" {
			return dErrors.New(dErrors.CodeValidation, "approved_by is required")
		}
	case ActionRejectResult:
		if r.Analysis == nil || !r.Analysis.RequiresHumanApproval {
			return dErrors.New(dErrors.CodeInvalidState, "analysis does not require human approval")
		}
		if strings.TrimSpace(p.RejectionReason) == "" {
			return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
		}
	}

	return nil
}

// Apply performs the transition. Call CanApply first; Apply assumes the
// transition is valid.
func (r *Record) Apply(action Action, p TransitionParams, now time.Time) {
	next := transitions[r.Kind][r.Status][action]
	r.Status = next
	r.Version++
	r.UpdatedAt = now

	switch action {
	case ActionSubmitValidation:
		if r.Finding == nil {
			r.Finding = &FindingDetails{}
		}
		r.Finding.ManagementResponse = p.ManagementResponse
	case ActionClose, ActionForceClose, ActionAccept, ActionSupersede, ActionRetire:
		closed := now
		r.ClosedDate = &closed
		if action == ActionClose && r.Kind == KindFinding {
			if r.Finding == nil {
				r.Finding = &FindingDetails{}
			}
			r.Finding.VerificationNotes = p.VerificationNotes
		}
	case ActionReopen:
		r.ClosedDate = nil
	case ActionRevise:
		if r.Policy == nil {
			r.Policy = &PolicyDetails{PolicyVersion: 1}
		}
		r.Policy.PolicyVersion++
		r.Policy.AcknowledgedBy = nil
	case ActionApproveResult:
		r.Analysis.ApprovedBy = p.ApprovedBy
	case ActionRejectResult:
		r.Analysis.RejectionReason = p.RejectionReason
	}
}

// CanAcknowledge checks the policy acknowledgement gate: employees may only
// acknowledge a published policy, once each.
func (r *Record) CanAcknowledge(actorID string) error {
	if r.Kind != KindPolicy {
		return dErrors.New(dErrors.CodeInvalidState, "only policies can be acknowledged")
	}
	if r.Status != StatusPublished {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"policy in status %q cannot be acknowledged", r.Status)
	}
	if strings.TrimSpace(actorID) == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required")
	}
	if r.Policy != nil {
		for _, who := range r.Policy.AcknowledgedBy {
			if who == actorID {
				return dErrors.New(dErrors.CodeConflict, "policy already acknowledged by this actor")
			}
		}
	}
	return nil
}

// ApplyAcknowledge records the acknowledgement. Call CanAcknowledge first.
func (r *Record) ApplyAcknowledge(actorID string, now time.Time) {
	if r.Policy == nil {
		r.Policy = &PolicyDetails{PolicyVersion: 1}
	}
	r.Policy.AcknowledgedBy = append(r.Policy.AcknowledgedBy, actorID)
	r.Version++
	r.UpdatedAt = now
}

// CanDelete checks the soft-delete gate. Deleting twice is NotFound the
// second time.
func (r *Record) CanDelete() error {
	if r.Status == StatusDeleted {
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	}
	return nil
}

// ApplyDelete marks the record deleted, keeping the row for audit history.
func (r *Record) ApplyDelete(now time.Time) {
	r.Status = StatusDeleted
	r.Version++
	r.UpdatedAt = now
}
