package audit

import (
	"context"

	"complyd/pkg/domain"
)

// Store persists audit events. Append-only by contract: no implementation
// exposes update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByRecord(ctx context.Context, recordID domain.RecordID) ([]Event, error)
}
