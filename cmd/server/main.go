package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"caseflow/internal/casenumber"
	cnstore "caseflow/internal/casenumber/store"
	casehandler "caseflow/internal/cases/handler"
	casemetrics "caseflow/internal/cases/metrics"
	caseservice "caseflow/internal/cases/service"
	casestore "caseflow/internal/cases/store"
	httpapi "caseflow/internal/http"
	"caseflow/internal/outbox"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/httpserver"
	"caseflow/internal/platform/kafka"
	"caseflow/internal/platform/logger"
	"caseflow/internal/platform/metrics"
	"caseflow/internal/platform/postgres"
	"caseflow/internal/platform/redis"
	"caseflow/internal/platform/tracing"
	"caseflow/internal/timeline"
	tlstore "caseflow/internal/timeline/store"
	wfhandler "caseflow/internal/workflow/handler"
	wfmetrics "caseflow/internal/workflow/metrics"
	"caseflow/internal/workflow/predicates"
	"caseflow/internal/workflow/runlock"
	wfservice "caseflow/internal/workflow/service"
	wfstore "caseflow/internal/workflow/store"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/middleware/auth"
	"caseflow/pkg/platform/uow"
)

// stores groups the persistence backends selected at startup.
type stores struct {
	cases    caseservice.CaseStore
	timeline timeline.Store
	numbers  casenumber.Store
	rules    interface {
		wfservice.RuleStore
		wfservice.RuleProvisioner
	}
	tx uow.Runner
}

// infra holds external connections that need closing on shutdown.
type infra struct {
	db     *sql.DB
	redis  *redis.Client
	kafka  *kgo.Client
	health map[string]httpapi.HealthCheck
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	inf := &infra{health: map[string]httpapi.HealthCheck{}}
	defer inf.close(log)

	st, err := buildStores(ctx, cfg, inf, log)
	if err != nil {
		return err
	}

	locker, err := buildLocker(ctx, cfg, inf, log)
	if err != nil {
		return err
	}

	cases, err := caseservice.New(st.cases, timeline.NewLog(st.timeline), casenumber.New(st.numbers), st.tx,
		caseservice.WithLogger(log),
		caseservice.WithMetrics(casemetrics.New()),
	)
	if err != nil {
		return fmt.Errorf("build case service: %w", err)
	}

	engine, err := wfservice.New(st.rules, cases, predicates.Default(), st.tx,
		wfservice.WithLogger(log),
		wfservice.WithMetrics(wfmetrics.New()),
		wfservice.WithLocker(locker),
	)
	if err != nil {
		return fmt.Errorf("build automation engine: %w", err)
	}

	if cfg.Automation.SeedDefaultRule {
		tenantID := domain.TenantID(cfg.Automation.SeedTenantID)
		created, err := wfservice.SeedDefaultRule(ctx, st.rules, tenantID, time.Now())
		if err != nil {
			return fmt.Errorf("seed default rule: %w", err)
		}
		log.Info("default automation rule checked", "tenant_id", tenantID, "created", created)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Validator: auth.NewHMACValidator(cfg.Server.JWTSigningKey, auth.WithIssuer(cfg.Server.JWTIssuer)),
		Metrics:   metrics.New(),
		Health:    inf.health,
		Routes:    []httpapi.Routes{casehandler.New(cases, log)},
		Admin: []httpapi.AdminRoutes{
			casehandler.New(cases, log),
			wfhandler.New(engine, log),
		},
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting caseflow", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if cfg.OutboxEnabled() {
		relay, err := buildRelay(ctx, cfg, inf, log)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		cases := casestore.NewInMemory()
		tl := tlstore.NewInMemory()
		numbers := cnstore.NewInMemory()
		rules := wfstore.NewInMemory()
		return &stores{
			cases:    cases,
			timeline: tl,
			numbers:  numbers,
			rules:    rules,
			tx:       uow.NewMemory(cases, tl, numbers, rules),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	inf.db = db
	inf.health["postgres"] = db.PingContext

	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}
	return &stores{
		cases:    casestore.NewPostgres(db),
		timeline: tlstore.NewPostgres(db),
		numbers:  cnstore.NewPostgres(db),
		rules:    wfstore.NewPostgres(db),
		tx:       uow.NewPostgres(db, uow.WithTimeout(cfg.Database.TxTimeout)),
	}, nil
}

func buildLocker(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (runlock.Locker, error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("REDIS_URL not set, automation run lock is process-local")
		return runlock.NewMemory(), nil
	}
	inf.redis = client
	inf.health["redis"] = client.Health
	return runlock.NewRedis(client.Client, cfg.Automation.RunLockTTL), nil
}

func buildRelay(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (*outbox.Relay, error) {
	client, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	inf.kafka = client
	inf.health["kafka"] = func(ctx context.Context) error { return kafka.Ping(ctx, client) }

	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.TimelineTopic, cfg.Kafka.Partitions); err != nil {
		return nil, err
	}

	relay, err := outbox.NewRelay(
		outbox.NewPostgresStore(inf.db),
		outbox.NewKafkaPublisher(client, cfg.Kafka.TimelineTopic),
		uow.NewPostgres(inf.db, uow.WithTimeout(cfg.Database.TxTimeout)),
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics()),
		outbox.WithInterval(cfg.Kafka.PollInterval),
		outbox.WithBatchSize(cfg.Kafka.BatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("build outbox relay: %w", err)
	}
	log.Info("outbox relay enabled", "topic", cfg.Kafka.TimelineTopic, "brokers", cfg.Kafka.Brokers)
	return relay, nil
}
