package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"complyd/internal/audit"
	"complyd/internal/records/metrics"
	"complyd/internal/records/models"
	"complyd/internal/records/store"
	"complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/platform/tx"
	"complyd/pkg/requestcontext"
)

// RecordStore is the persistence surface the service depends on.
type RecordStore interface {
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, id domain.RecordID) (*models.Record, error)
	List(ctx context.Context, filter store.Filter) ([]*models.Record, int, error)
	Execute(ctx context.Context, id domain.RecordID, fn func(*models.Record) error) (*models.Record, error)
	Aggregate(ctx context.Context, now time.Time) (store.Aggregates, error)
}

// AuditPublisher appends audit events synchronously. A failed append aborts
// the mutation it belongs to.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, recordID domain.RecordID) ([]audit.Event, error)
}

// Service orchestrates the compliance record lifecycle: construction,
// descriptive updates, status transitions, soft delete, and the audit trail
// that shadows all of it.
type Service struct {
	store   RecordStore
	audit   AuditPublisher
	tx      tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTransactor sets the transaction boundary used for mutations. Postgres
// wiring passes tx.NewSQLRunner so the record write and audit append commit
// atomically.
func WithTransactor(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// New constructs a Service.
func New(recordStore RecordStore, auditPublisher AuditPublisher, opts ...Option) *Service {
	s := &Service{
		store:  recordStore,
		audit:  auditPublisher,
		tx:     tx.PassthroughRunner{},
		tracer: otel.Tracer("complyd/records"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the construction inputs for all record kinds. Detail
// fields that do not belong to the requested kind are rejected by validation.
type CreateParams struct {
	Kind        models.Kind
	Title       string
	Description string
	Category    string
	Severity    models.Severity
	Owner       string
	Tags        []string
	TargetDate  *time.Time

	Likelihood            *int
	Impact                *int
	ImplementedControls   *int
	TotalControls         *int
	NextAssessmentDate    *time.Time
	RequiresHumanApproval bool
}

// Create constructs a record in its kind's initial status and appends the
// creation audit entry. The audit append happens before the record becomes
// visible: a failed append must never leave an unaudited record behind.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.create",
		trace.WithAttributes(attribute.String("record.kind", string(p.Kind))))
	defer span.End()

	now := requestcontext.Now(ctx)
	record, err := models.NewRecord(domain.NewRecordID(), p.Kind, p.Title, p.Description, p.Category, now)
	if err != nil {
		return nil, err
	}
	if err := s.applyCreateDetails(record, p); err != nil {
		return nil, err
	}

	event := audit.Event{
		RecordID:   record.ID,
		RecordKind: string(record.Kind),
		Actor:      requestcontext.Actor(ctx).ID,
		Action:     audit.ActionRecordCreated,
		ToStatus:   string(record.Status),
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.audit.Emit(ctx, event); err != nil {
			return err
		}
		return s.store.Create(ctx, record)
	})
	if err != nil {
		s.observeFailure(err)
		span.RecordError(err)
		return nil, s.translate(ctx, err)
	}

	if s.metrics != nil {
		s.metrics.RecordsCreated.WithLabelValues(string(record.Kind)).Inc()
	}
	s.log(ctx, "record created", "record_id", record.ID, "kind", record.Kind)
	return record, nil
}

// Get returns one record. Soft-deleted records are not found.
func (s *Service) Get(ctx context.Context, id domain.RecordID) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.get")
	defer span.End()

	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, err)
	}
	return record, nil
}

// List returns the filtered page plus the total match count.
func (s *Service) List(ctx context.Context, filter store.Filter) ([]*models.Record, int, error) {
	ctx, span := s.tracer.Start(ctx, "records.list")
	defer span.End()

	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, 0, dErrors.Newf(dErrors.CodeValidation, "unknown record kind %q", filter.Kind)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, 0, dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", filter.Severity)
	}
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, s.translate(ctx, err)
	}
	return records, total, nil
}

// Update applies a descriptive patch. A non-nil expectedVersion turns the
// write into a compare-and-set: a concurrent mutation since that version
// surfaces as a conflict rather than a silent overwrite.
func (s *Service) Update(ctx context.Context, id domain.RecordID, patch models.Patch, expectedVersion *int) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.update")
	defer span.End()

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	record, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Record) error {
		if expectedVersion != nil && r.Version != *expectedVersion {
			return sentinel.ErrStaleVersion
		}
		if err := r.CanUpdate(); err != nil {
			return err
		}
		r.ApplyUpdate(patch, requestcontext.Now(ctx))
		return s.audit.Emit(ctx, audit.Event{
			RecordID:   r.ID,
			RecordKind: string(r.Kind),
			Actor:      requestcontext.Actor(ctx).ID,
			Action:     audit.ActionRecordUpdated,
			ToStatus:   string(r.Status),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.log(ctx, "record updated", "record_id", id, "version", record.Version)
	return record, nil
}

// Delete soft-deletes the record, keeping the row as the audit trail's
// subject. Deleting an already-deleted record is NotFound.
func (s *Service) Delete(ctx context.Context, id domain.RecordID) error {
	ctx, span := s.tracer.Start(ctx, "records.delete")
	defer span.End()

	_, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Record) error {
		if err := r.CanDelete(); err != nil {
			return err
		}
		from := r.Status
		r.ApplyDelete(requestcontext.Now(ctx))
		return s.audit.Emit(ctx, audit.Event{
			RecordID:   r.ID,
			RecordKind: string(r.Kind),
			Actor:      requestcontext.Actor(ctx).ID,
			Action:     audit.ActionRecordDeleted,
			FromStatus: string(from),
			ToStatus:   string(models.StatusDeleted),
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.log(ctx, "record deleted", "record_id", id)
	return nil
}

// AuditTrail returns the record's audit history, oldest first. The trail
// outlives the record: it stays readable after a soft delete.
func (s *Service) AuditTrail(ctx context.Context, id domain.RecordID) ([]audit.Event, error) {
	ctx, span := s.tracer.Start(ctx, "records.audit_trail")
	defer span.End()

	events, err := s.audit.List(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, err)
	}
	return events, nil
}

// mutate wraps a record mutation in the transaction boundary and the store's
// Execute serialization, translating infrastructure errors at the edge.
func (s *Service) mutate(ctx context.Context, id domain.RecordID, fn func(context.Context, *models.Record) error) (*models.Record, error) {
	var record *models.Record
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var execErr error
		record, execErr = s.store.Execute(ctx, id, func(r *models.Record) error {
			return fn(ctx, r)
		})
		return execErr
	})
	if err != nil {
		s.observeFailure(err)
		return nil, s.translate(ctx, err)
	}
	return record, nil
}

func (s *Service) applyCreateDetails(record *models.Record, p CreateParams) error {
	if !p.Severity.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown severity %q", p.Severity)
	}
	record.Severity = p.Severity
	record.Owner = p.Owner
	record.Tags = p.Tags
	record.TargetDate = p.TargetDate

	detailPatch := models.Patch{
		Likelihood:          p.Likelihood,
		Impact:              p.Impact,
		ImplementedControls: p.ImplementedControls,
		TotalControls:       p.TotalControls,
	}
	if err := detailPatch.Validate(); err != nil {
		return err
	}

	switch record.Kind {
	case models.KindRisk:
		if p.Likelihood != nil {
			record.Risk = &models.RiskDetails{Likelihood: *p.Likelihood, Impact: *p.Impact}
		}
	case models.KindPolicy:
		record.Policy = &models.PolicyDetails{PolicyVersion: 1}
		if p.TotalControls != nil {
			record.Policy.ImplementedControls = *p.ImplementedControls
			record.Policy.TotalControls = *p.TotalControls
		}
	case models.KindVendor:
		if p.NextAssessmentDate == nil {
			return dErrors.New(dErrors.CodeValidation, "next_assessment_date is required for vendor records")
		}
		record.Vendor = &models.VendorDetails{NextAssessmentDate: *p.NextAssessmentDate}
	case models.KindAIAnalysis:
		record.Analysis = &models.AnalysisDetails{RequiresHumanApproval: p.RequiresHumanApproval}
	}
	return nil
}

// translate maps infrastructure sentinels and context errors to coded domain
// errors at the service boundary. Coded errors pass through untouched.
func (s *Service) translate(ctx context.Context, err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "record not found")
	case errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.New(dErrors.CodeConflict, "record was modified concurrently, retry with the current version")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "record already exists")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "record operation failed")
	}
}

func (s *Service) observeFailure(err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, sentinel.ErrStaleVersion) {
		s.metrics.VersionConflicts.Inc()
	}
	if dErrors.HasCode(err, dErrors.CodeAuditFailure) {
		s.metrics.AuditFailures.Inc()
	}
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, args...)
}
