// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fides/internal/audit"
	"fides/internal/enrich/euid"
	enrichhandler "fides/internal/enrich/handler"
	"fides/internal/enrich/jurisdiction"
	"fides/internal/enrich/jurisdiction/be"
	"fides/internal/enrich/jurisdiction/de"
	"fides/internal/enrich/jurisdiction/nl"
	"fides/internal/enrich/lei"
	"fides/internal/enrich/metrics"
	"fides/internal/enrich/peppol"
	"fides/internal/enrich/registry"
	"fides/internal/enrich/registry/cache"
	"fides/internal/enrich/registry/gleif"
	"fides/internal/enrich/registry/handelsregister"
	"fides/internal/enrich/registry/instrument"
	"fides/internal/enrich/registry/kbo"
	"fides/internal/enrich/registry/kvk"
	"fides/internal/enrich/registry/peppoldir"
	"fides/internal/enrich/registry/vies"
	enrichservice "fides/internal/enrich/service"
	entityhandler "fides/internal/entity/handler"
	entityservice "fides/internal/entity/service"
	entitystore "fides/internal/entity/store"
	"fides/internal/platform/config"
	"fides/internal/platform/httpserver"
	"fides/internal/platform/logger"
	"fides/internal/platform/middleware"
	platformredis "fides/internal/platform/redis"
	"fides/internal/transport/http/health"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence.
	var entities enrichservice.EntityStore
	var entityCRUD entityservice.EntityStore
	var dbCheck health.Check
	if cfg.PostgresDSN != "" {
		db, err := entitystore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		pg := entitystore.NewPostgres(db)
		entities, entityCRUD = pg, pg
		dbCheck = db.PingContext
	} else {
		log.Warn("no postgres DSN configured, using in-memory store")
		mem := entitystore.NewInMemory()
		entities, entityCRUD = mem, mem
	}

	// Registry lookup cache.
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: handlers and services emit into the inbox, the worker
	// drains it into the configured sink.
	var sink audit.Publisher = audit.NewStorePublisher(audit.NewInMemoryStore())
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer kafka.Close(context.Background())
		sink = kafka
	}
	inbox := make(chan audit.Event, 256)
	worker := audit.NewWorker(sink, inbox, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", slog.String("error", err.Error()))
		}
	}()
	publisher := channelPublisher{inbox: inbox, logger: log}

	m := metrics.New()

	// Registry adapters. Scraping sources own their pacing; every lookup
	// source is instrumented and then goes through the redis read-through
	// cache, so only true upstream calls show up in the call metrics.
	cached := func(c registry.Client) *cache.Lookups {
		return cache.Wrap(instrument.Wrap(c, m), redisClient, cfg.CacheTTL, log).WithMetrics(m)
	}
	kvkClient := cached(kvk.New(cfg.KVK.BaseURL, cfg.KVK.APIKey, cfg.KVK.Timeout))
	hrClient := cached(handelsregister.New(cfg.Handelsregister.BaseURL, cfg.Handelsregister.Timeout, cfg.Handelsregister.ScrapeInterval))
	kboClient := cached(kbo.New(cfg.KBO.BaseURL, cfg.KBO.Timeout, cfg.KBO.ScrapeInterval))
	viesClient := instrument.WrapVAT(vies.New(cfg.VIES.BaseURL, cfg.VIES.Timeout), m)
	gleifClient := cached(gleif.New(cfg.GLEIF.BaseURL, cfg.GLEIF.Timeout))
	peppolClient := cached(peppoldir.New(cfg.Peppol.BaseURL, cfg.Peppol.Timeout))

	// Jurisdiction engines.
	engines := jurisdiction.NewRegistry()
	engines.Register(nl.New(kvkClient, viesClient, log))
	engines.Register(de.New(hrClient, log))
	engines.Register(be.New(kboClient, viesClient, log))

	// Global enrichers, in execution order.
	globals := []enrichservice.GlobalEnricher{
		euid.New(),
		lei.New(gleifClient, log),
		peppol.New(peppolClient, log),
	}

	enrichSvc := enrichservice.New(entities, engines, globals,
		enrichservice.WithLogger(log),
		enrichservice.WithAuditPublisher(publisher),
		enrichservice.WithMetrics(m))
	entitySvc := entityservice.New(entityCRUD,
		entityservice.WithLogger(log),
		entityservice.WithAuditPublisher(publisher))

	// HTTP surface.
	auth := middleware.Auth{
		SigningKey:       cfg.JWTSigningKey,
		ServiceTokenHash: cfg.ServiceTokenHash,
		Logger:           log,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientMetadata)

	healthChecks := map[string]health.Check{"postgres": dbCheck}
	if redisClient != nil {
		healthChecks["redis"] = redisClient.Health
	}
	router.Method(http.MethodGet, "/healthz", health.New(healthChecks))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		entityhandler.New(entitySvc, log).Register(r)
		enrichhandler.New(enrichSvc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting fides", slog.String("addr", cfg.Addr),
			slog.Any("jurisdictions", engines.Countries()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// channelPublisher bridges services to the audit worker: emission is a
// buffered channel send, never a blocking write to the sink.
type channelPublisher struct {
	inbox  chan<- audit.Event
	logger *slog.Logger
}

func (p channelPublisher) Emit(_ context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, event dropped", slog.String("action", string(event.Action)))
	}
	return nil
}
