// complyd audit relay worker: drains the transactional outbox to Kafka.
//
// Runs standalone so the relay can be scaled and restarted independently of
// the API server. Requires postgres and at least one Kafka broker.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"complyd/internal/audit"
	"complyd/internal/platform/config"
	"complyd/internal/platform/logger"
	"complyd/internal/platform/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL == "" {
		log.Error("COMPLYD_POSTGRES_URL is required for the audit relay")
		os.Exit(1)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Error("COMPLYD_KAFKA_BROKERS is required for the audit relay")
		os.Exit(1)
	}

	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	worker, err := audit.NewRelayWorker(ctx, db, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.PollInterval, log)
	if err != nil {
		log.Error("relay worker init failed", "error", err)
		os.Exit(1)
	}

	log.Info("audit relay running", "topic", cfg.Kafka.AuditTopic, "interval", cfg.Kafka.PollInterval)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("relay worker failed", "error", err)
		os.Exit(1)
	}
}
