package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/craftpress/messaging/internal/messaging/app"
	"github.com/craftpress/messaging/internal/messaging/cache"
	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/messaging/provider"
	"github.com/craftpress/messaging/internal/messaging/repository/postgres"
	"github.com/craftpress/messaging/internal/messaging/template"
	transporthttp "github.com/craftpress/messaging/internal/messaging/transport/http"
	"github.com/craftpress/messaging/internal/platform/config"
	"github.com/craftpress/messaging/internal/platform/database"
	"github.com/craftpress/messaging/internal/platform/logger"
	"github.com/craftpress/messaging/internal/platform/messagebroker"
)

const (
	serviceName     = "messaging-service"
	shutdownTimeout = 10 * time.Second
)

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("starting service")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to initialize database pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, log)
	if err != nil {
		log.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	// Repositories. The template repo gets a Redis cache in front when
	// configured; Redis being down only costs lookups, never sends.
	var templateRepo domain.TemplateRepository = postgres.NewPgTemplateRepository(dbPool, log)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		templateRepo = cache.NewCachedTemplateRepository(templateRepo, rdb, cfg.TemplateCacheTTL, log)
		log.Info("template cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.TemplateCacheTTL)
	}
	queueRepo := postgres.NewPgQueueRepository(dbPool, log)
	inboxRepo := postgres.NewPgInboxRepository(dbPool, log)

	emailProvider := buildEmailProvider(cfg, log)
	smsProvider := provider.NewAPISMSProvider(log, provider.APISMSConfig{
		APIUrl:         cfg.SMSAPIUrl,
		APIKey:         cfg.SMSAPIKey,
		FromNumber:     cfg.SMSFromNumber,
		WebhookBaseURL: cfg.WebhookBaseURL,
	}, nil)

	engine := template.NewEngine()
	messageService := app.NewMessageService(templateRepo, queueRepo, engine, log, cfg.DefaultMaxRetries)
	processor := app.NewQueueProcessor(queueRepo, inboxRepo, emailProvider, smsProvider, log)
	consumer := app.NewSendConsumer(messageService, natsClient, log)

	router := chi.NewRouter()
	router.Use(chi_middleware.RequestID)
	router.Use(chi_middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/api/v1", func(r chi.Router) {
		transporthttp.NewMessageHandler(messageService, processor, emailProvider, smsProvider, log).RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		if err := consumer.Start(groupCtx); err != nil {
			return fmt.Errorf("failed to start send consumer: %w", err)
		}
		<-groupCtx.Done()
		consumer.Stop()
		return groupCtx.Err()
	})

	g.Go(func() error {
		log.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	log.Info("service is ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
	}

	mainCancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown finished with error", "error", err)
	}
	log.Info("service shutdown complete")
}

// buildEmailProvider selects the email adapter by configuration mode.
// Anything other than "smtp" gets the API adapter.
func buildEmailProvider(cfg *config.Config, log *slog.Logger) provider.EmailProvider {
	if cfg.EmailProviderMode == "smtp" {
		log.Info("using SMTP email provider", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return provider.NewSMTPEmailProvider(log, provider.SMTPEmailConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			FromAddress: cfg.EmailFromAddress,
			FromName:    cfg.EmailFromName,
			ReplyTo:     cfg.EmailReplyTo,
		})
	}
	log.Info("using API email provider", "url", cfg.EmailAPIUrl)
	return provider.NewAPIEmailProvider(log, provider.APIEmailConfig{
		APIUrl:      cfg.EmailAPIUrl,
		APIKey:      cfg.EmailAPIKey,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		ReplyTo:     cfg.EmailReplyTo,
	}, nil)
}
