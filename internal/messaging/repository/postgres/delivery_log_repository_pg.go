package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

type pgDeliveryLogRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgDeliveryLogRepository manages the archived delivery log. Archiving and
// purging run on the housekeeping schedule, never in the per-message hot path.
func NewPgDeliveryLogRepository(db PgxIface, logger *slog.Logger) domain.DeliveryLogRepository {
	return &pgDeliveryLogRepository{db: db, logger: logger.With("repository", "delivery_log")}
}

// ArchiveResolved moves terminally resolved queue rows into the delivery log
// in a single statement so a row is never present in both tables.
func (r *pgDeliveryLogRepository) ArchiveResolved(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		WITH moved AS (
			DELETE FROM queued_messages
			WHERE status IN ($1, $2) AND updated_at < $3
			RETURNING id, template_key, recipient_type, channel, status,
			          provider_message_id, error_message, sent_at, failed_at
		)
		INSERT INTO message_delivery_log (
			id, template_key, recipient_type, channel, status,
			provider_message_id, error_message, sent_at, failed_at, archived_at
		)
		SELECT id, template_key, recipient_type, channel, status,
		       provider_message_id, error_message, sent_at, failed_at, $4
		FROM moved
	`
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, query, string(domain.StatusSent), string(domain.StatusFailed), olderThan, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "error archiving resolved messages", "error", err)
		return 0, err
	}

	archived := tag.RowsAffected()
	if archived > 0 {
		r.logger.InfoContext(ctx, "archived resolved messages", "count", archived, "older_than", olderThan)
	}
	return archived, nil
}

func (r *pgDeliveryLogRepository) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM message_delivery_log WHERE archived_at < $1`
	tag, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		r.logger.ErrorContext(ctx, "error purging delivery logs", "error", err)
		return 0, err
	}

	purged := tag.RowsAffected()
	if purged > 0 {
		r.logger.InfoContext(ctx, "purged delivery logs", "count", purged, "older_than", olderThan)
	}
	return purged, nil
}
