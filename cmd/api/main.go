// Package main is the entry point for the panel API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/blackridder22/AutoGPT/internal/config"
	"github.com/blackridder22/AutoGPT/internal/conversation"
	"github.com/blackridder22/AutoGPT/internal/events"
	"github.com/blackridder22/AutoGPT/internal/handler"
	"github.com/blackridder22/AutoGPT/internal/middleware"
	"github.com/blackridder22/AutoGPT/internal/model"
	"github.com/blackridder22/AutoGPT/internal/pipeline"
	"github.com/blackridder22/AutoGPT/internal/registry"
	"github.com/blackridder22/AutoGPT/internal/session"
	"github.com/blackridder22/AutoGPT/internal/storage"
	"github.com/blackridder22/AutoGPT/pkg/logger"
	"github.com/blackridder22/AutoGPT/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting panel API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "autogpt-panel", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Device store
	kv, err := storage.OpenBolt(filepath.Join(cfg.DataDir, "panel.db"))
	if err != nil {
		log.Error("failed to open device store", zap.Error(err))
		os.Exit(1)
	}
	defer kv.Close()

	// Webhook registry
	reg := registry.New(kv, log)
	if err := reg.Load(ctx); err != nil {
		log.Error("failed to load webhook registry", zap.Error(err))
		os.Exit(1)
	}

	// Conversation storage: persisted settings win over the environment.
	storageSettings := model.StorageSettings{
		Mode:        model.ParseStorageMode(cfg.StorageMode),
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	}
	var persisted model.StorageSettings
	if found, err := storage.GetJSON(ctx, kv, "storageSettings", &persisted); err != nil {
		log.Warn("could not read persisted storage settings", zap.Error(err))
	} else if found {
		storageSettings = persisted
	}

	store, err := conversation.NewStore(ctx, storageSettings, kv, log)
	if err != nil {
		log.Warn("conversation storage unavailable, running without persistence", zap.Error(err))
		store = conversation.NewNone(log)
	}
	log.Info("conversation storage ready", zap.String("mode", string(store.Mode())))

	// Session
	sess := session.New(kv, store, log)
	if err := sess.Restore(ctx); err != nil {
		log.Error("failed to restore session", zap.Error(err))
		os.Exit(1)
	}

	// Event feed (optional)
	publisher, err := events.Connect(ctx, events.Config{
		URL:      cfg.NATSURL,
		Token:    cfg.NATSToken,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
	}, log)
	if err != nil {
		log.Warn("event feed unavailable, continuing without it", zap.Error(err))
	}
	defer publisher.Close()

	// Send pipeline
	sender := pipeline.New(reg, publisher, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(kv, sess, publisher)
	webhookHandler := handler.NewWebhookHandler(reg, sess, log)
	conversationHandler := handler.NewConversationHandler(sess, publisher, log)
	sendHandler := handler.NewSendHandler(sender, sess, log)
	settingsHandler := handler.NewSettingsHandler(kv, sess, log)

	// Router
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", webhookHandler.List)
			r.Post("/", webhookHandler.Create)
			r.Put("/default", webhookHandler.SetDefault)
			r.Put("/override", webhookHandler.SetOverride)
			r.Delete("/override", webhookHandler.ClearOverride)
			r.Get("/suggest", webhookHandler.Suggest)
			r.Delete("/{id}", webhookHandler.Delete)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)
			r.Get("/current", conversationHandler.Current)
			r.Post("/current", conversationHandler.Switch)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", conversationHandler.Messages)
				r.Delete("/", conversationHandler.Delete)
			})
		})

		r.Post("/send", sendHandler.Send)

		r.Get("/settings", settingsHandler.Get)
		r.Put("/settings", settingsHandler.Update)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
