package handler

import (
	"net/http"
	"strconv"
	"time"

	"complyd/internal/records/models"
	"complyd/internal/records/service"
	"complyd/internal/records/store"
)

type createRecordRequest struct {
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Severity    string     `json:"severity"`
	Owner       string     `json:"owner"`
	Tags        []string   `json:"tags"`
	TargetDate  *time.Time `json:"target_date"`

	Likelihood            *int       `json:"likelihood"`
	Impact                *int       `json:"impact"`
	ImplementedControls   *int       `json:"implemented_controls"`
	TotalControls         *int       `json:"total_controls"`
	NextAssessmentDate    *time.Time `json:"next_assessment_date"`
	RequiresHumanApproval bool       `json:"requires_human_approval"`
}

func (req createRecordRequest) toParams() service.CreateParams {
	return service.CreateParams{
		Kind:        models.Kind(req.Kind),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Severity:    models.Severity(req.Severity),
		Owner:       req.Owner,
		Tags:        req.Tags,
		TargetDate:  req.TargetDate,

		Likelihood:            req.Likelihood,
		Impact:                req.Impact,
		ImplementedControls:   req.ImplementedControls,
		TotalControls:         req.TotalControls,
		NextAssessmentDate:    req.NextAssessmentDate,
		RequiresHumanApproval: req.RequiresHumanApproval,
	}
}

type updateRecordRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	Severity    *string    `json:"severity"`
	Owner       *string    `json:"owner"`
	Tags        []string   `json:"tags"`
	TargetDate  *time.Time `json:"target_date"`

	Likelihood          *int       `json:"likelihood"`
	Impact              *int       `json:"impact"`
	ImplementedControls *int       `json:"implemented_controls"`
	TotalControls       *int       `json:"total_controls"`
	NextAssessmentDate  *time.Time `json:"next_assessment_date"`

	// ExpectedVersion makes the update a compare-and-set against the version
	// the client last read.
	ExpectedVersion *int `json:"expected_version"`
}

func (req updateRecordRequest) toPatch() models.Patch {
	patch := models.Patch{
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		Owner:               req.Owner,
		Tags:                req.Tags,
		TargetDate:          req.TargetDate,
		Likelihood:          req.Likelihood,
		Impact:              req.Impact,
		ImplementedControls: req.ImplementedControls,
		TotalControls:       req.TotalControls,
		NextAssessmentDate:  req.NextAssessmentDate,
	}
	if req.Severity != nil {
		severity := models.Severity(*req.Severity)
		patch.Severity = &severity
	}
	return patch
}

type transitionRequest struct {
	ManagementResponse string  `json:"management_response"`
	VerificationNotes  *string `json:"verification_notes"`
	ApprovedBy         string  `json:"approved_by"`
	RejectionReason    string  `json:"rejection_reason"`
	ExpectedVersion    *int    `json:"expected_version"`
}

func (req transitionRequest) toInput(kind models.Kind) service.TransitionInput {
	return service.TransitionInput{
		Kind:               kind,
		ManagementResponse: req.ManagementResponse,
		VerificationNotes:  req.VerificationNotes,
		ApprovedBy:         req.ApprovedBy,
		RejectionReason:    req.RejectionReason,
		ExpectedVersion:    req.ExpectedVersion,
	}
}

// parseFilter maps list query parameters onto the store filter. Unknown kinds
// and severities are rejected by the service, not here.
func parseFilter(r *http.Request) store.Filter {
	q := r.URL.Query()
	filter := store.Filter{
		Kind:     models.Kind(q.Get("kind")),
		Status:   models.Status(q.Get("status")),
		Severity: models.Severity(q.Get("severity")),
		Search:   q.Get("search"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filter.PageSize = size
	}
	return filter
}
