package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"complyd/internal/audit"
	"complyd/internal/records/models"
	"complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
	"complyd/pkg/requestcontext"
)

// TransitionInput carries the per-action payload. Which fields are required
// depends on the action; the transition guards enforce it.
type TransitionInput struct {
	// Kind, when set, asserts which record kind the caller believes it is
	// transitioning. A mismatch is NotFound: kind-specific routes must not
	// reach across kinds.
	Kind               models.Kind
	ManagementResponse string
	VerificationNotes  *string
	ApprovedBy         string
	RejectionReason    string
	ExpectedVersion    *int
}

// Transition moves a record through its kind's state machine and appends the
// matching audit entry in the same atomic step. Invalid transitions are
// deterministic rejections; retrying without changing the record cannot
// succeed.
func (s *Service) Transition(ctx context.Context, id domain.RecordID, action models.Action, input TransitionInput) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.transition",
		trace.WithAttributes(attribute.String("record.action", string(action))))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	params := models.TransitionParams{
		ManagementResponse: input.ManagementResponse,
		VerificationNotes:  input.VerificationNotes,
		ApprovedBy:         input.ApprovedBy,
		RejectionReason:    input.RejectionReason,
		ActorIsAdmin:       actor.IsAdmin(),
	}

	record, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Record) error {
		if input.Kind != "" && r.Kind != input.Kind {
			return sentinel.ErrNotFound
		}
		if input.ExpectedVersion != nil && r.Version != *input.ExpectedVersion {
			return sentinel.ErrStaleVersion
		}
		if err := r.CanApply(action, params); err != nil {
			return err
		}
		from := r.Status
		r.Apply(action, params, requestcontext.Now(ctx))
		return s.audit.Emit(ctx, audit.Event{
			RecordID:   r.ID,
			RecordKind: string(r.Kind),
			Actor:      actor.ID,
			Action:     audit.TransitionAction(string(r.Kind), string(action)),
			FromStatus: string(from),
			ToStatus:   string(r.Status),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(record.Kind), string(action)).Inc()
	}
	s.log(ctx, "record transitioned",
		"record_id", id, "action", action, "status", record.Status)
	return record, nil
}

// Acknowledge records that the acting principal has read a published policy.
// Each principal may acknowledge a given policy version once; a revision
// clears the slate.
func (s *Service) Acknowledge(ctx context.Context, id domain.RecordID) (*models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.acknowledge")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	record, err := s.mutate(ctx, id, func(ctx context.Context, r *models.Record) error {
		if err := r.CanAcknowledge(actor.ID); err != nil {
			return err
		}
		r.ApplyAcknowledge(actor.ID, requestcontext.Now(ctx))
		return s.audit.Emit(ctx, audit.Event{
			RecordID:   r.ID,
			RecordKind: string(r.Kind),
			Actor:      actor.ID,
			Action:     audit.ActionPolicyAcknowledged,
			ToStatus:   string(r.Status),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.log(ctx, "policy acknowledged", "record_id", id, "actor", actor.ID)
	return record, nil
}
