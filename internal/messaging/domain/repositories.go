package domain

import (
	"context"
	"time"
)

// TemplateRepository reads templates maintained by the admin config store.
type TemplateRepository interface {
	// GetActiveByKey returns the active template for a key, or
	// ErrTemplateNotFound when absent or inactive.
	GetActiveByKey(ctx context.Context, templateKey string) (*MessageTemplate, error)
}

// QueueRepository is the system of record for delivery state. All status
// mutations go through the narrow update methods so the queue invariants hold.
type QueueRepository interface {
	Enqueue(ctx context.Context, msg *QueuedMessage) (*QueuedMessage, error)

	// ClaimDue atomically claims up to limit pending messages whose
	// scheduled_for is due, ordered by priority descending then created_at
	// ascending, transitioning each to processing. Returns ErrNoDueMessages
	// when the claim is empty. Safe for concurrent workers.
	ClaimDue(ctx context.Context, dueTime time.Time, limit int) ([]*QueuedMessage, error)

	// MarkSent transitions a message to sent (terminal).
	MarkSent(ctx context.Context, id string, providerMessageID *string) error

	// MarkFailed records a failure. When retryable and retry budget remains,
	// the message reverts to pending with scheduled_for pushed out by
	// exponential backoff; otherwise it fails terminally.
	MarkFailed(ctx context.Context, id string, errorMessage string, shouldRetry bool) error

	GetByID(ctx context.Context, id string) (*QueuedMessage, error)
	Stats(ctx context.Context) (*QueueStats, error)
}

// InboxRepository persists in-app notifications for the inbox channel.
type InboxRepository interface {
	Create(ctx context.Context, msg *UserMessage) (*UserMessage, error)
}

// DeliveryLogRepository moves resolved queue rows into the delivery log and
// enforces the compliance retention window.
type DeliveryLogRepository interface {
	// ArchiveResolved moves sent/failed queue rows older than the cutoff into
	// the delivery log and removes them from the live queue. Returns the
	// number of rows archived.
	ArchiveResolved(ctx context.Context, olderThan time.Time) (int64, error)

	// PurgeOlderThan deletes delivery log entries past the retention window.
	PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}
