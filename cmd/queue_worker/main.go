package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/craftpress/messaging/internal/messaging/app"
	"github.com/craftpress/messaging/internal/messaging/provider"
	"github.com/craftpress/messaging/internal/messaging/repository/postgres"
	"github.com/craftpress/messaging/internal/platform/config"
	"github.com/craftpress/messaging/internal/platform/database"
	"github.com/craftpress/messaging/internal/platform/logger"
)

const serviceName = "queue-worker"

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("starting worker")

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to initialize database pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	queueRepo := postgres.NewPgQueueRepository(dbPool, log)
	inboxRepo := postgres.NewPgInboxRepository(dbPool, log)
	logRepo := postgres.NewPgDeliveryLogRepository(dbPool, log)

	emailProvider := buildEmailProvider(cfg, log)
	smsProvider := provider.NewAPISMSProvider(log, provider.APISMSConfig{
		APIUrl:         cfg.SMSAPIUrl,
		APIKey:         cfg.SMSAPIKey,
		FromNumber:     cfg.SMSFromNumber,
		WebhookBaseURL: cfg.WebhookBaseURL,
	}, nil)

	processor := app.NewQueueProcessor(queueRepo, inboxRepo, emailProvider, smsProvider, log)
	housekeeper := app.NewHousekeeper(logRepo, app.HousekeeperConfig{
		ArchiveAfter: time.Duration(cfg.ArchiveAfterDays) * 24 * time.Hour,
		LogRetention: time.Duration(cfg.LogRetentionDays) * 24 * time.Hour,
	}, log)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return runProcessLoop(groupCtx, processor, cfg.QueuePollingInterval, cfg.QueueBatchSize, log)
	})
	g.Go(func() error {
		return runHousekeepingLoop(groupCtx, housekeeper, cfg.HousekeepingInterval, log)
	})

	log.Info("worker is ready",
		"polling_interval", cfg.QueuePollingInterval,
		"batch_size", cfg.QueueBatchSize,
		"housekeeping_interval", cfg.HousekeepingInterval)

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
	log.Info("worker shutdown complete")
}

// runProcessLoop drains due messages on every tick. A tick that finds the
// queue empty is not an error and not logged above debug.
func runProcessLoop(ctx context.Context, processor *app.QueueProcessor, interval time.Duration, batchSize int, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("process loop stopping")
			return ctx.Err()
		case <-ticker.C:
			result, err := processor.ProcessQueue(ctx, batchSize)
			if err != nil {
				log.ErrorContext(ctx, "queue processing pass failed", "error", err)
				continue
			}
			if result.Processed > 0 || result.Failed > 0 || result.Skipped > 0 {
				log.InfoContext(ctx, "queue processing pass complete",
					"processed", result.Processed,
					"failed", result.Failed,
					"skipped", result.Skipped)
			}
		}
	}
}

func runHousekeepingLoop(ctx context.Context, housekeeper *app.Housekeeper, interval time.Duration, log *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("housekeeping loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := housekeeper.Run(ctx); err != nil {
				log.ErrorContext(ctx, "housekeeping pass failed", "error", err)
			}
		}
	}
}

func buildEmailProvider(cfg *config.Config, log *slog.Logger) provider.EmailProvider {
	if cfg.EmailProviderMode == "smtp" {
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
	return provider.NewAPIEmailProvider(log, provider.APIEmailConfig{
		APIUrl:      cfg.EmailAPIUrl,
		APIKey:      cfg.EmailAPIKey,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		ReplyTo:     cfg.EmailReplyTo,
	}, nil)
}
