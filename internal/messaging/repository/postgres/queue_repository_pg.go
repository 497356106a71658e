package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

type pgQueueRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgQueueRepository creates the PostgreSQL-backed queue store.
func NewPgQueueRepository(db PgxIface, logger *slog.Logger) domain.QueueRepository {
	return &pgQueueRepository{db: db, logger: logger.With("repository", "queue")}
}

const queuedMessageColumns = `
	id, template_key, recipient_type, recipient_id, recipient_email, recipient_phone,
	channel, subject, body, inbox_title, inbox_action_url, inbox_action_label, inbox_action_icon,
	variables, metadata, status, priority, scheduled_for, retry_count, max_retries,
	error_message, provider_message_id, sent_at, failed_at, created_at, updated_at`

func (r *pgQueueRepository) Enqueue(ctx context.Context, msg *domain.QueuedMessage) (*domain.QueuedMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Status == "" {
		msg.Status = domain.StatusPending
	}
	if msg.ScheduledFor.IsZero() {
		msg.ScheduledFor = now
	}
	if msg.MaxRetries <= 0 {
		msg.MaxRetries = domain.DefaultMaxRetries
	}

	variablesJSON, err := json.Marshal(msg.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO queued_messages (
			id, template_key, recipient_type, recipient_id, recipient_email, recipient_phone,
			channel, subject, body, inbox_title, inbox_action_url, inbox_action_label, inbox_action_icon,
			variables, metadata, status, priority, scheduled_for, retry_count, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`
	_, err = r.db.Exec(ctx, query,
		msg.ID, msg.TemplateKey, msg.RecipientType, msg.RecipientID, msg.RecipientEmail, msg.RecipientPhone,
		string(msg.Channel), msg.Subject, msg.Body, msg.InboxTitle, msg.InboxActionURL, msg.InboxActionLabel, msg.InboxActionIcon,
		variablesJSON, metadataJSON, string(msg.Status), int(msg.Priority), msg.ScheduledFor, msg.RetryCount, msg.MaxRetries, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ClaimDue atomically flips due pending rows to processing. The CTE plus
// FOR UPDATE SKIP LOCKED makes the claim safe for concurrent workers: a row
// is only claimed if still pending, so no message can be double-sent.
func (r *pgQueueRepository) ClaimDue(ctx context.Context, dueTime time.Time, limit int) ([]*domain.QueuedMessage, error) {
	query := `
		WITH due_message_ids AS (
			SELECT id
			FROM queued_messages
			WHERE status = $1 AND scheduled_for <= $2
			ORDER BY priority DESC, created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queued_messages qm
		SET status = $4, updated_at = $5
		FROM due_message_ids dm
		WHERE qm.id = dm.id
		RETURNING ` + prefixColumns("qm", queuedMessageColumns)

	now := time.Now().UTC()
	rows, err := r.db.Query(ctx, query, string(domain.StatusPending), dueTime, limit, string(domain.StatusProcessing), now)
	if err != nil {
		r.logger.ErrorContext(ctx, "error claiming due messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.QueuedMessage
	for rows.Next() {
		msg, err := scanQueuedMessage(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "error scanning claimed message row", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		return nil, domain.ErrNoDueMessages
	}
	return messages, nil
}

func (r *pgQueueRepository) MarkSent(ctx context.Context, id string, providerMessageID *string) error {
	now := time.Now().UTC()
	query := `
		UPDATE queued_messages
		SET status = $2, provider_message_id = $3, sent_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, id, string(domain.StatusSent), providerMessageID, now, string(domain.StatusProcessing))
	if err != nil {
		r.logger.ErrorContext(ctx, "error marking message sent", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// MarkFailed applies the retry policy. The row is owned by the worker that
// claimed it, so the read-then-update here is not racing other workers.
func (r *pgQueueRepository) MarkFailed(ctx context.Context, id string, errorMessage string, shouldRetry bool) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Terminal statuses are immutable: retry budget and scheduled_for are
	// frozen once a message has failed or been sent.
	if current.Status == domain.StatusFailed || current.Status == domain.StatusSent {
		r.logger.WarnContext(ctx, "mark failed called on terminal message", "message_id", id, "status", current.Status)
		return nil
	}

	now := time.Now().UTC()
	newRetryCount := current.RetryCount + 1

	if shouldRetry && newRetryCount < current.MaxRetries {
		nextAttempt := now.Add(domain.BackoffDelay(newRetryCount))
		query := `
			UPDATE queued_messages
			SET status = $2, retry_count = $3, scheduled_for = $4, error_message = $5, updated_at = $6
			WHERE id = $1
		`
		tag, err := r.db.Exec(ctx, query, id, string(domain.StatusPending), newRetryCount, nextAttempt, errorMessage, now)
		if err != nil {
			r.logger.ErrorContext(ctx, "error scheduling message retry", "error", err, "message_id", id)
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrMessageNotFound
		}
		r.logger.InfoContext(ctx, "message scheduled for retry", "message_id", id, "retry_count", newRetryCount, "next_attempt_at", nextAttempt)
		return nil
	}

	query := `
		UPDATE queued_messages
		SET status = $2, retry_count = $3, error_message = $4, failed_at = $5, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, string(domain.StatusFailed), newRetryCount, errorMessage, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "error marking message failed", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	r.logger.WarnContext(ctx, "message failed terminally", "message_id", id, "retry_count", newRetryCount, "error_message", errorMessage)
	return nil
}

func (r *pgQueueRepository) GetByID(ctx context.Context, id string) (*domain.QueuedMessage, error) {
	query := `SELECT ` + queuedMessageColumns + ` FROM queued_messages WHERE id = $1`
	row := r.db.QueryRow(ctx, query, id)
	msg, err := scanQueuedMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (r *pgQueueRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM queued_messages GROUP BY status`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.QueueStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch domain.MessageStatus(status) {
		case domain.StatusPending:
			stats.Pending = count
		case domain.StatusProcessing:
			stats.Processing = count
		case domain.StatusSent:
			stats.Sent = count
		case domain.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// scanQueuedMessage reads one row in queuedMessageColumns order.
func scanQueuedMessage(row pgx.Row) (*domain.QueuedMessage, error) {
	msg := &domain.QueuedMessage{}
	var channel, status string
	var priority int
	var variablesJSON, metadataJSON []byte

	err := row.Scan(
		&msg.ID, &msg.TemplateKey, &msg.RecipientType, &msg.RecipientID, &msg.RecipientEmail, &msg.RecipientPhone,
		&channel, &msg.Subject, &msg.Body, &msg.InboxTitle, &msg.InboxActionURL, &msg.InboxActionLabel, &msg.InboxActionIcon,
		&variablesJSON, &metadataJSON, &status, &priority, &msg.ScheduledFor, &msg.RetryCount, &msg.MaxRetries,
		&msg.ErrorMessage, &msg.ProviderMessageID, &msg.SentAt, &msg.FailedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Channel = domain.Channel(channel)
	msg.Status = domain.MessageStatus(status)
	msg.Priority = domain.Priority(priority)
	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &msg.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return msg, nil
}
