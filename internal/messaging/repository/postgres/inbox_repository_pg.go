package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

type pgInboxRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgInboxRepository persists in-app notifications. Read/dismissed state is
// owned by the notification center, not this repository.
func NewPgInboxRepository(db PgxIface, logger *slog.Logger) domain.InboxRepository {
	return &pgInboxRepository{db: db, logger: logger.With("repository", "inbox")}
}

func (r *pgInboxRepository) Create(ctx context.Context, msg *domain.UserMessage) (*domain.UserMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO user_messages (
			id, user_type, user_id, message_type, title, body,
			action_url, action_label, action_icon, metadata, expires_at,
			is_read, is_dismissed, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, FALSE, $12
		)
	`
	_, err = r.db.Exec(ctx, query,
		msg.ID, msg.UserType, msg.UserID, msg.MessageType, msg.Title, msg.Body,
		msg.ActionURL, msg.ActionLabel, msg.ActionIcon, metadataJSON, msg.ExpiresAt,
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "error creating inbox message", "error", err, "user_id", msg.UserID)
		return nil, err
	}
	return msg, nil
}
