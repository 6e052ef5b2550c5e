// complyd server: compliance record lifecycle API.
//
// Wires configuration, stores, the audit pipeline, and the HTTP router, then
// runs until interrupted. Postgres and Redis are optional: without them the
// service runs on in-memory stores for development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"complyd/internal/audit"
	"complyd/internal/dashboard"
	httpapi "complyd/internal/http"
	"complyd/internal/jwttoken"
	"complyd/internal/platform/config"
	"complyd/internal/platform/httpserver"
	"complyd/internal/platform/logger"
	"complyd/internal/platform/metrics"
	"complyd/internal/platform/postgres"
	"complyd/internal/platform/redis"
	"complyd/internal/records"
	"complyd/internal/records/handler"
	recordmetrics "complyd/internal/records/metrics"
	"complyd/internal/records/service"
	"complyd/internal/records/store"
	"complyd/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]httpapi.HealthCheck{}

	var (
		db          *sql.DB
		recordStore service.RecordStore
		auditStore  audit.Store
		transactor  tx.Runner = tx.PassthroughRunner{}
	)
	if cfg.Postgres.URL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db, log); err != nil {
			return err
		}
		recordStore = store.NewPostgres(db)
		auditStore = audit.NewPostgresStore(db)
		transactor = tx.NewSQLRunner(db)
		healthChecks["postgres"] = db.PingContext
		log.Info("using postgres stores")
	} else {
		recordStore = store.NewInMemory()
		auditStore = audit.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	var cache dashboard.Cache = dashboard.NewMemoryCache()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = dashboard.NewRedisCache(redisClient)
		healthChecks["redis"] = redisClient.Health
		log.Info("dashboard cache backed by redis")
	}

	httpMetrics := metrics.New()
	recMetrics := recordmetrics.New()

	publisher := audit.NewPublisher(auditStore)
	recordService := records.NewService(recordStore, publisher,
		service.WithLogger(log),
		service.WithMetrics(recMetrics),
		service.WithTransactor(transactor),
	)

	jwtService := jwttoken.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	recordHandler := records.NewHandler(recordService, jwtService, log,
		handler.WithMetrics(httpMetrics),
		handler.WithAdminTokenHash(cfg.Auth.AdminTokenHash),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
	)

	dashboardService := dashboard.New(recordStore, cache, config.DashboardCacheTTL, log)
	dashboardHandler := dashboard.NewHandler(dashboardService, jwtService, log, httpMetrics)

	router := httpapi.NewRouter(log, healthChecks, recordHandler, dashboardHandler)
	srv := httpserver.New(cfg.Server.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting complyd server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		worker, err := audit.NewRelayWorker(ctx, db, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, cfg.Kafka.PollInterval, log)
		if err != nil {
			return err
		}
		group.Go(func() error {
			log.Info("starting audit relay worker", "topic", cfg.Kafka.AuditTopic)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
