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
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	audithandler "safemint/internal/audit/handler"
	auditmetrics "safemint/internal/audit/metrics"
	auditservice "safemint/internal/audit/service"
	auditstore "safemint/internal/audit/store"
	"safemint/internal/core"
	httpapi "safemint/internal/http"
	"safemint/internal/jwttoken"
	authhandler "safemint/internal/jwttoken/handler"
	"safemint/internal/platform/config"
	"safemint/internal/platform/httpserver"
	"safemint/internal/platform/logger"
	redisplatform "safemint/internal/platform/redis"
	registryhandler "safemint/internal/registry/handler"
	registrymetrics "safemint/internal/registry/metrics"
	registryservice "safemint/internal/registry/service"
	registrystore "safemint/internal/registry/store"
	"safemint/internal/roles"
	roleshandler "safemint/internal/roles/handler"
	"safemint/internal/token"
	tokenhandler "safemint/internal/token/handler"
	"safemint/pkg/platform/events"
)

// main wires the ledger: token and role collaborators, the registry, the
// audit module, and the HTTP surface. Business logic lives in the internal
// services; main only assembles and supervises.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// One sequencer serializes every ledger mutation across both modules, so
	// registration, audits, challenges, and claims share a single total order.
	seq := core.NewSequencer()

	ledger := token.NewInMemoryLedger()

	roleStore, redisClient := buildRoleStore(cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, sink := buildPublisher(cfg, log)
	defer publisher.Close()
	if sink != nil {
		defer sink.Close()
	}

	projectStore, recordStore, db := buildStores(cfg, log)
	if db != nil {
		defer db.Close()
	}

	registrySvc, err := registryservice.New(
		projectStore, ledger, cfg.RegistryCustody, cfg.ProjectPrice, seq,
		registryservice.WithLogger(log),
		registryservice.WithPublisher(publisher),
		registryservice.WithMetrics(registrymetrics.New()),
	)
	if err != nil {
		log.Error("failed to build registry service", "error", err)
		os.Exit(1)
	}

	auditSvc, err := auditservice.New(
		registrySvc, recordStore, ledger, roleStore, cfg.AuditCustody,
		cfg.AuditPrice, cfg.ChallengePrice, seq,
		auditservice.WithLogger(log),
		auditservice.WithPublisher(publisher),
		auditservice.WithMetrics(auditmetrics.New()),
	)
	if err != nil {
		log.Error("failed to build audit service", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "safemint", "safemint-api")

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Validator: jwttoken.NewMiddlewareAdapter(jwtService),
		Auth:      authhandler.New(jwtService, log),
		Tokens:    tokenhandler.New(ledger, ledger, log),
		Roles:     roleshandler.New(roleStore, log),
		Registry:  registryhandler.New(registrySvc, log),
		Audits:    audithandler.New(auditSvc, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting safemint ledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// buildRoleStore prefers the shared Redis-backed role set when configured and
// falls back to the in-process store.
func buildRoleStore(cfg config.Server, log *slog.Logger) (roles.Store, *redisplatform.Client) {
	client, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, using in-memory role store", "error", err)
		return roles.NewInMemoryStore(), nil
	}
	if client == nil {
		return roles.NewInMemoryStore(), nil
	}
	log.Info("using redis role store")
	return roles.NewRedisStore(client.Client), client
}

// buildPublisher assembles the event pipeline: in-memory store, optional
// async buffer, optional Kafka sink.
func buildPublisher(cfg config.Server, log *slog.Logger) (*events.Publisher, *events.KafkaSink) {
	opts := []events.Option{events.WithLogger(log)}
	if cfg.EventBuffer > 0 {
		opts = append(opts, events.WithAsyncBuffer(cfg.EventBuffer))
	}

	var sink *events.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := events.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("kafka sink unavailable, events stay local", "error", err)
		} else {
			log.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
			sink = s
			opts = append(opts, events.WithSink(s))
		}
	}

	return events.NewPublisher(events.NewInMemoryStore(), opts...), sink
}

// buildStores picks Postgres-backed stores when a database is configured.
func buildStores(cfg config.Server, log *slog.Logger) (registryservice.ProjectStore, auditservice.RecordStore, *sql.DB) {
	if cfg.DatabaseURL == "" {
		return registrystore.NewInMemory(), auditstore.NewInMemory(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Warn("database unavailable, using in-memory stores", "error", err)
		return registrystore.NewInMemory(), auditstore.NewInMemory(), nil
	}
	if err := db.Ping(); err != nil {
		log.Warn("database unreachable, using in-memory stores", "error", err)
		_ = db.Close()
		return registrystore.NewInMemory(), auditstore.NewInMemory(), nil
	}
	log.Info("using postgres stores")
	return registrystore.NewPostgres(db), auditstore.NewPostgres(db), db
}
