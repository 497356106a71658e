package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

// HousekeeperConfig controls retention windows.
type HousekeeperConfig struct {
	// ArchiveAfter is how long resolved rows stay in the live queue before
	// moving to the delivery log.
	ArchiveAfter time.Duration
	// LogRetention is the compliance window for delivery logs.
	LogRetention time.Duration
}

// Housekeeper archives resolved queue rows and purges expired delivery logs.
// Runs on its own schedule, never in the per-message hot path.
type Housekeeper struct {
	logs   domain.DeliveryLogRepository
	config HousekeeperConfig
	logger *slog.Logger
}

func NewHousekeeper(logs domain.DeliveryLogRepository, cfg HousekeeperConfig, logger *slog.Logger) *Housekeeper {
	return &Housekeeper{
		logs:   logs,
		config: cfg,
		logger: logger.With("component", "housekeeper"),
	}
}

// Run performs one housekeeping pass. Archive and purge are independent;
// a failure in one does not skip the other.
func (h *Housekeeper) Run(ctx context.Context) error {
	now := time.Now().UTC()

	archived, archiveErr := h.logs.ArchiveResolved(ctx, now.Add(-h.config.ArchiveAfter))
	if archiveErr != nil {
		h.logger.ErrorContext(ctx, "archive pass failed", "error", archiveErr)
	} else {
		housekeepingRowsCounter.WithLabelValues("archive").Add(float64(archived))
	}

	purged, purgeErr := h.logs.PurgeOlderThan(ctx, now.Add(-h.config.LogRetention))
	if purgeErr != nil {
		h.logger.ErrorContext(ctx, "purge pass failed", "error", purgeErr)
	} else {
		housekeepingRowsCounter.WithLabelValues("purge").Add(float64(purged))
	}

	if archiveErr != nil {
		return archiveErr
	}
	return purgeErr
}
