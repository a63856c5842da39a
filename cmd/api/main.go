// Package main is the entry point for the archive API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hkevin01/poe-archive/internal/categorize"
	"github.com/hkevin01/poe-archive/internal/config"
	"github.com/hkevin01/poe-archive/internal/handler"
	"github.com/hkevin01/poe-archive/internal/middleware"
	"github.com/hkevin01/poe-archive/internal/model"
	natsclient "github.com/hkevin01/poe-archive/internal/nats"
	"github.com/hkevin01/poe-archive/internal/poe"
	"github.com/hkevin01/poe-archive/internal/service"
	"github.com/hkevin01/poe-archive/internal/store"
	syncengine "github.com/hkevin01/poe-archive/internal/sync"
	"github.com/hkevin01/poe-archive/pkg/logger"
	"github.com/hkevin01/poe-archive/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting archive server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "poe-archive", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the archive store
	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer st.Close()

	if cfg.IndexRebuildOnStart {
		if err := st.ReindexAll(ctx); err != nil {
			log.Error("failed to rebuild search index", zap.Error(err))
			os.Exit(1)
		}
	} else if err := st.CheckIndex(ctx); err != nil {
		log.Warn("search index check failed, rebuilding", zap.Error(err))
		if err := st.ReindexAll(ctx); err != nil {
			log.Error("failed to rebuild search index", zap.Error(err))
			os.Exit(1)
		}
	}

	// Remote client
	creds := poe.StaticCredentials{
		FormKey:  cfg.PoeFormKey,
		PBCookie: cfg.PoePBCookie,
	}
	poeClient := poe.NewHTTPClient(cfg.PoeBaseURL, creds, log)

	// Sync engine
	engineOpts := []syncengine.Option{
		syncengine.WithBatchSize(cfg.SyncBatchSize),
	}
	if cfg.CategorizerProvider != "" {
		apiKey := cfg.OpenAIAPIKey
		if categorize.Provider(cfg.CategorizerProvider) == categorize.ProviderAnthropic {
			apiKey = cfg.AnthropicAPIKey
		}
		cat, err := categorize.New(categorize.Provider(cfg.CategorizerProvider), apiKey)
		if err != nil {
			log.Warn("categorizer disabled", zap.Error(err))
		} else {
			engineOpts = append(engineOpts, syncengine.WithCategorizer(cat))
		}
	}
	engine := syncengine.NewEngine(st, poeClient, log, engineOpts...)

	// Optional NATS event stream
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer nc.Close()

		publisher := natsclient.NewEventPublisher(nc)
		if err := publisher.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure event stream", zap.Error(err))
			os.Exit(1)
		}
		engine.Subscribe(publisher)
	}

	// Services
	archive := service.NewArchive(st, log, cfg.QueryPageSize)
	exporter := service.NewExporter(st)

	// Handlers
	healthHandler := handler.NewHealthHandler(st)
	conversationHandler := handler.NewConversationHandler(archive, log)
	syncHandler := handler.NewSyncHandler(engine, log)
	exportHandler := handler.NewExportHandler(exporter, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.Query)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Delete("/", conversationHandler.Delete)
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", syncHandler.Trigger)
			r.Get("/{runID}", syncHandler.Status)
			r.Post("/{runID}/cancel", syncHandler.Cancel)
		})

		r.Get("/export", exportHandler.Export)
		r.Get("/stats", conversationHandler.Stats)
	})

	// Periodic background sync
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	if cfg.SyncInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-syncCtx.Done():
					return
				case <-ticker.C:
					run, already := engine.Trigger(syncCtx, model.ScopeGlobal)
					if already {
						log.Debug("periodic sync skipped, run in flight", zap.String("run_id", run.ID()))
					}
				}
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopSync()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
