package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"xs2a/internal/authorisation"
	"xs2a/internal/cms"
	"xs2a/internal/common/database"
	"xs2a/internal/common/events"
	"xs2a/internal/common/metrics"
	"xs2a/internal/common/middleware"
	"xs2a/internal/common/nats"
	"xs2a/internal/confirmation"
	"xs2a/internal/decoupled"
	"xs2a/internal/profile"
	"xs2a/internal/scaapproach"
	"xs2a/internal/spi/httpconnector"
	"xs2a/internal/xs2a"
	"xs2a/internal/xs2a/api"
)

func serve(cfg Config) error {
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	aspsp, err := profile.Load()
	if err != nil {
		return fmt.Errorf("loading aspsp profile: %w", err)
	}

	// Create context that listens for shutdown signals
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Repository
	var (
		repo  cms.Repository
		ready = func(context.Context) error { return nil }
	)
	switch cfg.CmsBackend {
	case "memory":
		logger.Warn("using in-memory cms, data is lost on restart")
		repo = cms.NewMemoryStore()
	default:
		db, err := database.New(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		repo = cms.NewPostgresStore(db)
		ready = db.HealthCheck
	}

	m := metrics.New()

	// Event publishing is optional
	var publisher events.Publisher
	if cfg.NATS.Enabled {
		client, err := nats.New(ctx, cfg.NATS, logger)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer client.Close()
		if _, err := client.EnsureStream(ctx, nats.EventsStreamConfig()); err != nil {
			return fmt.Errorf("ensuring event stream: %w", err)
		}
		publisher = nats.NewPublisher(client, logger)
	}
	emitter := events.NewEmitter(publisher, m, logger)

	// Services
	backend := httpconnector.New(cfg.Spi, m, logger)
	business := authorisation.NewBusinessStatusApplier(repo, emitter, logger)
	chain, err := authorisation.NewChainService(repo, m, emitter, logger, authorisation.Processors(authorisation.Dependencies{
		Repo:      repo,
		Spi:       backend,
		Decoupled: decoupled.NewNotifier(backend, repo, emitter, logger),
		Business:  business,
		Logger:    logger,
	})...)
	if err != nil {
		return fmt.Errorf("building stage chain: %w", err)
	}
	resolver, err := scaapproach.NewResolver[xs2a.ApproachService](aspsp.ScaApproaches, repo,
		xs2a.NewEmbeddedService(repo, chain, aspsp, logger),
		xs2a.NewDecoupledService(repo, chain, aspsp, logger),
		xs2a.NewRedirectService(repo, aspsp, logger),
		xs2a.NewOAuthService(repo, aspsp, logger),
	)
	if err != nil {
		return fmt.Errorf("building approach resolver: %w", err)
	}
	checker := confirmation.NewChecker(aspsp, backend, repo, business, logger)
	service := xs2a.NewService(xs2a.Dependencies{
		Repo:         repo,
		Resolver:     resolver,
		Chain:        chain,
		Confirmation: confirmation.NewService(repo, checker, logger),
		Business:     business,
		Profile:      aspsp,
		Logger:       logger,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.PsuData)
		r.Use(middleware.TppPreferences)
		r.Mount("/", api.NewHandler(service, logger).Routes())
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting xs2a service",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"cms", cfg.CmsBackend,
			"sca_approaches", aspsp.ScaApproaches,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

