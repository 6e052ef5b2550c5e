package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RelayWorker drains the outbox table to Kafka. Events are keyed by record id
// so one record's trail stays ordered within a partition. Rows are deleted
// only after the produce is acknowledged; a crash between produce and delete
// re-sends, which consumers tolerate because event IDs are stable.
type RelayWorker struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	interval time.Duration
	logger   *slog.Logger
}

// NewRelayWorker connects a producer to the brokers and ensures the audit
// topic exists.
func NewRelayWorker(ctx context.Context, db *sql.DB, brokers []string, topic string, interval time.Duration, logger *slog.Logger) (*RelayWorker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 3, 1, nil, topic); err != nil {
		// Already-exists is fine; anything else is surfaced at first poll.
		logger.Warn("create audit topic", "topic", topic, "error", err)
	}

	return &RelayWorker{
		db:       db,
		client:   client,
		topic:    topic,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run polls the outbox until the context is cancelled.
func (w *RelayWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer w.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drainOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

type outboxRow struct {
	id          uuid.UUID
	aggregateID uuid.UUID
	payload     []byte
}

func (w *RelayWorker) drainOnce(ctx context.Context) error {
	const query = `
		SELECT id, aggregate_id, payload
		FROM outbox
		ORDER BY created_at ASC
		LIMIT 100
	`
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregateID, &row.payload); err != nil {
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, row := range batch {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(row.aggregateID.String()),
			Value: row.payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox entry %s: %w", row.id, err)
		}
		if _, err := w.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, row.id); err != nil {
			return fmt.Errorf("delete outbox entry %s: %w", row.id, err)
		}
	}
	return nil
}
