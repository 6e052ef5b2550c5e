package handler

import (
	"time"

	"complyd/internal/audit"
	"complyd/internal/records/models"
	"complyd/internal/scoring"
)

// recordResponse is the read model for one record. The derived block is
// recomputed from detail fields on every read and never persisted.
type recordResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
	Status      string     `json:"status"`
	Severity    string     `json:"severity,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	ClosedDate  *time.Time `json:"closed_date,omitempty"`

	Risk     *models.RiskDetails     `json:"risk,omitempty"`
	Finding  *models.FindingDetails  `json:"finding,omitempty"`
	Policy   *models.PolicyDetails   `json:"policy,omitempty"`
	Vendor   *models.VendorDetails   `json:"vendor,omitempty"`
	Analysis *models.AnalysisDetails `json:"analysis,omitempty"`

	Derived derivedResponse `json:"derived"`
}

type derivedResponse struct {
	Overdue         bool    `json:"overdue"`
	RiskScore       *int    `json:"risk_score,omitempty"`
	RiskLevel       *string `json:"risk_level,omitempty"`
	ComplianceScore *int    `json:"compliance_score,omitempty"`
	ComplianceGrade *string `json:"compliance_grade,omitempty"`
}

func toRecordResponse(r *models.Record, now time.Time) recordResponse {
	resp := recordResponse{
		ID:          r.ID.String(),
		Kind:        string(r.Kind),
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Tags:        r.Tags,
		Status:      string(r.Status),
		Severity:    string(r.Severity),
		Owner:       r.Owner,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		TargetDate:  r.TargetDate,
		ClosedDate:  r.ClosedDate,
		Risk:        r.Risk,
		Finding:     r.Finding,
		Policy:      r.Policy,
		Vendor:      r.Vendor,
		Analysis:    r.Analysis,
		Derived:     derivedResponse{Overdue: r.IsOverdue(now)},
	}

	if r.Kind == models.KindRisk && r.Risk != nil {
		if score, err := scoring.RiskScore(r.Risk.Likelihood, r.Risk.Impact); err == nil {
			level := string(scoring.RiskLevelFor(score))
			resp.Derived.RiskScore = &score
			resp.Derived.RiskLevel = &level
		}
	}
	if r.Kind == models.KindPolicy && r.Policy != nil && r.Policy.TotalControls > 0 {
		if score, err := scoring.ComplianceScore(r.Policy.ImplementedControls, r.Policy.TotalControls); err == nil {
			grade := scoring.Grade(score)
			resp.Derived.ComplianceScore = &score
			resp.Derived.ComplianceGrade = &grade
		}
	}
	return resp
}

type listResponse struct {
	Records  []recordResponse `json:"records"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type auditEventResponse struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor,omitempty"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

func toAuditResponses(events []audit.Event) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID.String(),
			Category:   string(e.Category),
			Timestamp:  e.Timestamp,
			Actor:      e.Actor,
			Action:     e.Action,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			RequestID:  e.RequestID,
		})
	}
	return out
}
