package models

import (
	"strings"
	"time"

	"complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
)

// Kind tags which concrete compliance record type a Record is. The kind fixes
// the status machine, the writable detail set, and the derived score.
type Kind string

const (
	KindRisk       Kind = "risk"
	KindFinding    Kind = "finding"
	KindPolicy     Kind = "policy"
	KindVendor     Kind = "vendor"
	KindAIAnalysis Kind = "ai_analysis"
)

// Kinds lists every supported record kind.
var Kinds = []Kind{KindRisk, KindFinding, KindPolicy, KindVendor, KindAIAnalysis}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindRisk, KindFinding, KindPolicy, KindVendor, KindAIAnalysis:
		return true
	}
	return false
}

// Severity is the ordinal classification used for filtering and display. It
// never feeds a scoring computation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is a known severity. The empty severity is allowed
// (not every kind classifies).
func (s Severity) Valid() bool {
	switch s {
	case "", SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Record is the aggregate for one compliance record of any kind.
//
// Invariants:
//   - Kind and ID are immutable after construction
//   - Status only changes through the kind's transition table (status.go)
//   - Version increments on every successful mutation; conditional writes
//     against a stale version must fail
//   - CreatedAt is immutable; UpdatedAt tracks the last mutation
//   - Derived scores are never stored; they are recomputed from detail
//     fields on read so two records with identical inputs always agree
type Record struct {
	ID          domain.RecordID `json:"id"`
	Kind        Kind            `json:"kind"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Tags        []string        `json:"tags,omitempty"`
	Status      Status          `json:"status"`
	Severity    Severity        `json:"severity,omitempty"`
	// Owner is a weak reference (department or user identifier); it is
	// stored as-is and resolved lazily by callers.
	Owner      string     `json:"owner,omitempty"`
	Version    int        `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	TargetDate *time.Time `json:"target_date,omitempty"`
	ClosedDate *time.Time `json:"closed_date,omitempty"`

	Risk     *RiskDetails     `json:"risk,omitempty"`
	Finding  *FindingDetails  `json:"finding,omitempty"`
	Policy   *PolicyDetails   `json:"policy,omitempty"`
	Vendor   *VendorDetails   `json:"vendor,omitempty"`
	Analysis *AnalysisDetails `json:"analysis,omitempty"`
}

// RiskDetails carries the scoring inputs for a risk register entry.
type RiskDetails struct {
	Likelihood int `json:"likelihood"`
	Impact     int `json:"impact"`
}

// FindingDetails carries the remediation lifecycle fields of an audit finding.
type FindingDetails struct {
	ManagementResponse string  `json:"management_response,omitempty"`
	VerificationNotes  *string `json:"verification_notes,omitempty"`
}

// PolicyDetails carries control coverage and acknowledgement state.
type PolicyDetails struct {
	ImplementedControls int      `json:"implemented_controls"`
	TotalControls       int      `json:"total_controls"`
	PolicyVersion       int      `json:"policy_version"`
	AcknowledgedBy      []string `json:"acknowledged_by,omitempty"`
}

// VendorDetails carries the assessment schedule. Vendor records have no
// transition table; "overdue" is derived from NextAssessmentDate.
type VendorDetails struct {
	NextAssessmentDate time.Time `json:"next_assessment_date"`
}

// AnalysisDetails carries the human-approval gate of an AI analysis request.
type AnalysisDetails struct {
	RequiresHumanApproval bool   `json:"requires_human_approval"`
	ApprovedBy            string `json:"approved_by,omitempty"`
	RejectionReason       string `json:"rejection_reason,omitempty"`
}

// NewRecord validates required fields at the boundary and constructs a record
// in the kind's initial status.
func NewRecord(id domain.RecordID, kind Kind, title, description, category string, now time.Time) (*Record, error) {
	if !kind.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown record kind %q", kind)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if len(title) > 256 {
		return nil, dErrors.New(dErrors.CodeValidation, "title must be 256 characters or less")
	}
	if strings.TrimSpace(category) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "category is required")
	}
	return &Record{
		ID:          id,
		Kind:        kind,
		Title:       title,
		Description: description,
		Category:    category,
		Status:      InitialStatus(kind),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsOverdue derives the overdue flag from the lifecycle milestones and the
// caller-supplied now. It is never stored.
func (r *Record) IsOverdue(now time.Time) bool {
	if r.Kind == KindVendor && r.Vendor != nil {
		return !r.Vendor.NextAssessmentDate.After(now)
	}
	if r.TargetDate == nil || r.Terminal() {
		return false
	}
	return r.TargetDate.Before(now)
}

// CanUpdate checks whether descriptive fields may still be edited. Records in
// a terminal status are read-only except for explicit reopen transitions.
func (r *Record) CanUpdate() error {
	if r.Status == StatusDeleted {
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	}
	if r.Terminal() {
		return dErrors.Newf(dErrors.CodeInvalidState,
			"record in status %q is read-only", r.Status)
	}
	return nil
}

// ApplyUpdate mutates the writable descriptive fields and bumps the version.
// Call CanUpdate first; pair the two inside a store Execute callback.
func (r *Record) ApplyUpdate(patch Patch, now time.Time) {
	if patch.Title != nil {
		r.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.Severity != nil {
		r.Severity = *patch.Severity
	}
	if patch.Owner != nil {
		r.Owner = *patch.Owner
	}
	if patch.Tags != nil {
		r.Tags = patch.Tags
	}
	if patch.TargetDate != nil {
		r.TargetDate = patch.TargetDate
	}
	if r.Kind == KindRisk && patch.Likelihood != nil && patch.Impact != nil {
		r.Risk = &RiskDetails{Likelihood: *patch.Likelihood, Impact: *patch.Impact}
	}
	if r.Kind == KindPolicy && patch.ImplementedControls != nil && patch.TotalControls != nil {
		if r.Policy == nil {
			r.Policy = &PolicyDetails{PolicyVersion: 1}
		}
		r.Policy.ImplementedControls = *patch.ImplementedControls
		r.Policy.TotalControls = *patch.TotalControls
	}
	if r.Kind == KindVendor && patch.NextAssessmentDate != nil {
		r.Vendor = &VendorDetails{NextAssessmentDate: *patch.NextAssessmentDate}
	}
	r.Version++
	r.UpdatedAt = now
}

// Patch names the mutable field set accepted by update. Nil means "leave
// unchanged"; mutations happen only through named fields so every change can
// be paired with a specific audit action.
type Patch struct {
	Title               *string
	Description         *string
	Category            *string
	Severity            *Severity
	Owner               *string
	Tags                []string
	TargetDate          *time.Time
	Likelihood          *int
	Impact              *int
	ImplementedControls *int
	TotalControls       *int
	NextAssessmentDate  *time.Time
}

// Validate rejects patches that are malformed regardless of record state.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
	}
	if p.Severity != nil && !p.Severity.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", *p.Severity)
	}
	if (p.Likelihood == nil) != (p.Impact == nil) {
		return dErrors.New(dErrors.CodeValidation, "likelihood and impact must be set together")
	}
	if p.Likelihood != nil {
		if *p.Likelihood < 1 || *p.Likelihood > 5 || *p.Impact < 1 || *p.Impact > 5 {
			return dErrors.New(dErrors.CodeValidation, "likelihood and impact must be between 1 and 5")
		}
	}
	if (p.ImplementedControls == nil) != (p.TotalControls == nil) {
		return dErrors.New(dErrors.CodeValidation, "implemented and total controls must be set together")
	}
	if p.TotalControls != nil {
		if *p.TotalControls <= 0 || *p.ImplementedControls < 0 || *p.ImplementedControls > *p.TotalControls {
			return dErrors.New(dErrors.CodeValidation, "implemented controls must be between 0 and total controls")
		}
	}
	return nil
}

// Clone returns a deep copy so in-memory stores never leak shared pointers to
// callers.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Tags != nil {
		cp.Tags = append([]string(nil), r.Tags...)
	}
	if r.TargetDate != nil {
		t := *r.TargetDate
		cp.TargetDate = &t
	}
	if r.ClosedDate != nil {
		t := *r.ClosedDate
		cp.ClosedDate = &t
	}
	if r.Risk != nil {
		d := *r.Risk
		cp.Risk = &d
	}
	if r.Finding != nil {
		d := *r.Finding
		if r.Finding.VerificationNotes != nil {
			n := *r.Finding.VerificationNotes
			d.VerificationNotes = &n
		}
		cp.Finding = &d
	}
	if r.Policy != nil {
		d := *r.Policy
		if r.Policy.AcknowledgedBy != nil {
			d.AcknowledgedBy = append([]string(nil), r.Policy.AcknowledgedBy...)
		}
		cp.Policy = &d
	}
	if r.Vendor != nil {
		d := *r.Vendor
		cp.Vendor = &d
	}
	if r.Analysis != nil {
		d := *r.Analysis
		cp.Analysis = &d
	}
	return &cp
}
