package audit

import (
	"context"

	"complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

// Publisher captures structured audit events with fail-closed semantics: the
// caller blocks until the append succeeds, and on failure the enclosing
// mutation must fail. An unaudited compliance mutation is worse than a failed
// one.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills in the event identity, timestamp, category, and request
// enrichment from context, then appends synchronously. Errors carry
// CodeAuditFailure and must abort the caller's mutation.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID.IsNil() {
		event.ID = domain.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = CategoryFor(event.Action)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeAuditFailure, "audit append failed")
	}
	return nil
}

// List returns the audit trail for one record, oldest first.
func (p *Publisher) List(ctx context.Context, recordID domain.RecordID) ([]Event, error) {
	return p.store.ListByRecord(ctx, recordID)
}
