package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"complyd/internal/audit"
	"complyd/internal/http/shared"
	"complyd/internal/platform/metrics"
	"complyd/internal/platform/middleware"
	"complyd/internal/records/models"
	"complyd/internal/records/service"
	"complyd/internal/records/store"
	"complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Service defines the record lifecycle operations the handlers delegate to.
type Service interface {
	Create(ctx context.Context, p service.CreateParams) (*models.Record, error)
	Get(ctx context.Context, id domain.RecordID) (*models.Record, error)
	List(ctx context.Context, filter store.Filter) ([]*models.Record, int, error)
	Update(ctx context.Context, id domain.RecordID, patch models.Patch, expectedVersion *int) (*models.Record, error)
	Delete(ctx context.Context, id domain.RecordID) error
	Transition(ctx context.Context, id domain.RecordID, action models.Action, input service.TransitionInput) (*models.Record, error)
	Acknowledge(ctx context.Context, id domain.RecordID) (*models.Record, error)
	AuditTrail(ctx context.Context, id domain.RecordID) ([]audit.Event, error)
}

// Handler wires the record lifecycle routes.
type Handler struct {
	records        Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	validator      middleware.TokenValidator
	adminTokenHash string
	requestTimeout time.Duration
}

type Option func(h *Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithAdminTokenHash enables the X-Admin-Token gate on the administrative
// transitions (reopen, force close).
func WithAdminTokenHash(hash string) Option {
	return func(h *Handler) {
		h.adminTokenHash = hash
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// New creates a records Handler.
func New(records Service, validator middleware.TokenValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		records:        records,
		logger:         logger,
		validator:      validator,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all record routes with the full middleware chain. The
// kind-specific transition routes exist so each lifecycle action has a stable
// URL worth authorizing and auditing on its own.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Use(middleware.RequireAuth(h.validator, h.logger))

	router.Route("/records", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Get("/{id}/audit", h.handleAuditTrail)
	})

	admin := middleware.RequireAdminToken(h.adminTokenHash, h.logger)

	router.Route("/findings/{id}", func(r chi.Router) {
		r.Post("/start", h.transition(models.KindFinding, models.ActionStart))
		r.Post("/submit", h.transition(models.KindFinding, models.ActionSubmitValidation))
		r.Post("/close", h.transition(models.KindFinding, models.ActionClose))
		r.With(admin).Post("/reopen", h.transition(models.KindFinding, models.ActionReopen))
		r.With(admin).Post("/force-close", h.transition(models.KindFinding, models.ActionForceClose))
	})

	router.Route("/policies/{id}", func(r chi.Router) {
		r.Post("/submit-review", h.transition(models.KindPolicy, models.ActionSubmitReview))
		r.Post("/submit-approval", h.transition(models.KindPolicy, models.ActionSubmitApproval))
		r.Post("/approve", h.transition(models.KindPolicy, models.ActionApprove))
		r.Post("/publish", h.transition(models.KindPolicy, models.ActionPublish))
		r.Post("/revise", h.transition(models.KindPolicy, models.ActionRevise))
		r.Post("/supersede", h.transition(models.KindPolicy, models.ActionSupersede))
		r.Post("/retire", h.transition(models.KindPolicy, models.ActionRetire))
		r.Post("/acknowledge", h.handleAcknowledge)
	})

	router.Route("/analyses/{id}", func(r chi.Router) {
		r.Post("/start", h.transition(models.KindAIAnalysis, models.ActionStartProcessing))
		r.Post("/complete", h.transition(models.KindAIAnalysis, models.ActionComplete))
		r.Post("/approve", h.transition(models.KindAIAnalysis, models.ActionApproveResult))
		r.Post("/reject", h.transition(models.KindAIAnalysis, models.ActionRejectResult))
	})

	router.Route("/risks/{id}", func(r chi.Router) {
		r.Post("/assess", h.transition(models.KindRisk, models.ActionAssess))
		r.Post("/mitigate", h.transition(models.KindRisk, models.ActionMitigate))
		r.Post("/accept", h.transition(models.KindRisk, models.ActionAccept))
		r.Post("/close", h.transition(models.KindRisk, models.ActionClose))
		r.With(admin).Post("/reopen", h.transition(models.KindRisk, models.ActionReopen))
	})

	r.Mount("/", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRecordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.records.Create(ctx, req.toParams())
	if err != nil {
		h.logError(ctx, "create record failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	record, err := h.records.Get(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := parseFilter(r).Normalize()
	records, total, err := h.records.List(ctx, filter)
	if err != nil {
		h.logError(ctx, "list records failed", err)
		shared.WriteError(w, err)
		return
	}

	now := requestcontext.Now(ctx)
	resp := listResponse{
		Records:  make([]recordResponse, 0, len(records)),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for _, record := range records {
		resp.Records = append(resp.Records, toRecordResponse(record, now))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateRecordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.records.Update(ctx, id, req.toPatch(), req.ExpectedVersion)
	if err != nil {
		h.logError(ctx, "update record failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.records.Delete(ctx, id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	events, err := h.records.AuditTrail(ctx, id)
	if err != nil {
		h.logError(ctx, "audit trail fetch failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"record_id": id.String(),
		"events":    toAuditResponses(events),
	})
}

// transition builds the handler for one kind-specific lifecycle route.
func (h *Handler) transition(kind models.Kind, action models.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := parseID(r)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		req := transitionRequest{}
		if r.ContentLength > 0 {
			if err := shared.DecodeJSON(r, &req); err != nil {
				shared.WriteError(w, err)
				return
			}
		}

		record, err := h.records.Transition(ctx, id, action, req.toInput(kind))
		if err != nil {
			h.logError(ctx, "transition failed", err, "action", string(action))
			shared.WriteError(w, err)
			return
		}
		shared.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
	}
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	record, err := h.records.Acknowledge(ctx, id)
	if err != nil {
		h.logError(ctx, "acknowledge failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record, requestcontext.Now(ctx)))
}

func parseID(r *http.Request) (domain.RecordID, error) {
	id, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.RecordID{}, dErrors.New(dErrors.CodeValidation, "invalid record id")
	}
	return id, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
	if dErrors.CodeOf(err) == dErrors.CodeInternal || dErrors.HasCode(err, dErrors.CodeAuditFailure) {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
