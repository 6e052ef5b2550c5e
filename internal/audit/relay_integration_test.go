//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"complyd/internal/audit"
	"complyd/internal/platform/postgres"
	"complyd/pkg/domain"
	"complyd/pkg/platform/tx"
	"complyd/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	ctx       context.Context
	container *containers.PostgresContainer
	store     *audit.PostgresStore
	now       time.Time
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(postgres.Migrate(s.ctx, s.container.DB, log))

	s.store = audit.NewPostgresStore(s.container.DB)
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.container.TruncateAll(s.ctx))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RelaySuite) newEvent(recordID domain.RecordID, action string, at time.Time) audit.Event {
	return audit.Event{
		ID:         domain.NewEventID(),
		Category:   audit.CategoryFor(action),
		Timestamp:  at,
		RecordID:   recordID,
		RecordKind: "finding",
		Actor:      "analyst-1",
		Action:     action,
	}
}

func (s *RelaySuite) TestAppendAndListRoundTrip() {
	recordID := domain.NewRecordID()
	first := s.newEvent(recordID, "record_created", s.now)
	second := s.newEvent(recordID, "finding.start", s.now.Add(time.Minute))
	other := s.newEvent(domain.NewRecordID(), "record_created", s.now)

	for _, event := range []audit.Event{second, other, first} {
		s.Require().NoError(s.store.Append(s.ctx, event))
	}

	trail, err := s.store.ListByRecord(s.ctx, recordID)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal("record_created", trail[0].Action)
	s.Equal("finding.start", trail[1].Action)
	s.Equal(audit.CategoryCompliance, trail[0].Category)
	s.Equal(audit.CategoryOperations, trail[1].Category)

	var outboxCount int
	s.Require().NoError(s.container.DB.QueryRowContext(s.ctx,
		"SELECT COUNT(*) FROM outbox").Scan(&outboxCount))
	s.Equal(3, outboxCount)
}

func (s *RelaySuite) TestAppendRollsBackWithTransaction() {
	runner := tx.NewSQLRunner(s.container.DB)
	recordID := domain.NewRecordID()

	err := runner.InTx(s.ctx, func(ctx context.Context) error {
		if err := s.store.Append(ctx, s.newEvent(recordID, "record_created", s.now)); err != nil {
			return err
		}
		return errors.New("record insert failed")
	})
	s.Require().Error(err)

	trail, listErr := s.store.ListByRecord(s.ctx, recordID)
	s.Require().NoError(listErr)
	s.Empty(trail)

	var outboxCount int
	s.Require().NoError(s.container.DB.QueryRowContext(s.ctx,
		"SELECT COUNT(*) FROM outbox").Scan(&outboxCount))
	s.Zero(outboxCount)
}

func (s *RelaySuite) TestRelayDrainsOutboxToKafka() {
	redpanda := containers.NewRedpandaContainer(s.T())
	const topic = "complyd.audit.relay-test"

	recordID := domain.NewRecordID()
	created := s.newEvent(recordID, "record_created", s.now)
	started := s.newEvent(recordID, "finding.start", s.now.Add(time.Minute))
	s.Require().NoError(s.store.Append(s.ctx, created))
	s.Require().NoError(s.store.Append(s.ctx, started))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker, err := audit.NewRelayWorker(s.ctx, s.container.DB,
		[]string{redpanda.Broker}, topic, 100*time.Millisecond, log)
	s.Require().NoError(err)

	workerCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(workerCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var consumed []audit.Event
	deadline := time.Now().Add(30 * time.Second)
	for len(consumed) < 2 && time.Now().Before(deadline) {
		pollCtx, pollCancel := context.WithTimeout(s.ctx, 2*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		pollCancel()
		fetches.EachRecord(func(record *kgo.Record) {
			s.Equal(recordID.String(), string(record.Key))
			var event audit.Event
			s.Require().NoError(json.Unmarshal(record.Value, &event))
			consumed = append(consumed, event)
		})
	}

	s.Require().Len(consumed, 2)
	s.Equal("record_created", consumed[0].Action)
	s.Equal("finding.start", consumed[1].Action)
	s.Equal(created.ID, consumed[0].ID)

	// Delivered rows must be gone so a restart cannot double-produce the
	// whole backlog.
	s.Require().Eventually(func() bool {
		var outboxCount int
		if err := s.container.DB.QueryRowContext(s.ctx,
			"SELECT COUNT(*) FROM outbox").Scan(&outboxCount); err != nil {
			return false
		}
		return outboxCount == 0
	}, 10*time.Second, 100*time.Millisecond)
}
