package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"complyd/pkg/domain"
	txcontext "complyd/pkg/platform/tx"
)

// PostgresStore persists audit events using the transactional outbox pattern.
// Append writes the queryable audit_events row and the outbox row in the same
// transaction as the record mutation (via tx-in-context), so either both the
// mutation and its audit entry commit or neither does. The relay worker
// publishes outbox rows to Kafka.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	exec := s.execer(ctx)

	const insertEvent = `
		INSERT INTO audit_events (
			id, category, occurred_at, record_id, record_kind,
			actor, action, from_status, to_status, request_id, client_ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := exec.ExecContext(ctx, insertEvent,
		uuid.UUID(event.ID),
		string(event.Category),
		event.Timestamp,
		uuid.UUID(event.RecordID),
		event.RecordKind,
		event.Actor,
		event.Action,
		event.FromStatus,
		event.ToStatus,
		event.RequestID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const insertOutbox = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = exec.ExecContext(ctx, insertOutbox,
		uuid.New(),
		"record",
		uuid.UUID(event.RecordID),
		event.Action,
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRecord(ctx context.Context, recordID domain.RecordID) ([]Event, error) {
	const query = `
		SELECT id, category, occurred_at, record_id, record_kind,
		       actor, action, from_status, to_status, request_id, client_ip
		FROM audit_events
		WHERE record_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(recordID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			id, recID uuid.UUID
			category  string
		)
		if err := rows.Scan(&id, &category, &event.Timestamp, &recID, &event.RecordKind,
			&event.Actor, &event.Action, &event.FromStatus, &event.ToStatus,
			&event.RequestID, &event.ClientIP); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = domain.EventID(id)
		event.RecordID = domain.RecordID(recID)
		event.Category = EventCategory(category)
		events = append(events, event)
	}
	return events, rows.Err()
}
