package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget applied when a message is enqueued
// without an explicit override.
const DefaultMaxRetries = 3

// QueuedMessage is one outbound unit of work for exactly one channel.
// Rows are owned by the queue subsystem; all writes go through the narrow
// QueueRepository update methods.
type QueuedMessage struct {
	ID          string `json:"id"` // UUID
	TemplateKey string `json:"template_key"`

	RecipientType  string  `json:"recipient_type"`
	RecipientID    *string `json:"recipient_id,omitempty"`    // required for inbox
	RecipientEmail *string `json:"recipient_email,omitempty"` // required for email
	RecipientPhone *string `json:"recipient_phone,omitempty"` // required for sms

	Channel Channel `json:"channel"`

	Subject          *string `json:"subject,omitempty"`
	Body             string  `json:"body"`
	InboxTitle       *string `json:"inbox_title,omitempty"`
	InboxActionURL   *string `json:"inbox_action_url,omitempty"`
	InboxActionLabel *string `json:"inbox_action_label,omitempty"`
	InboxActionIcon  *string `json:"inbox_action_icon,omitempty"`

	// Variables retains the caller's bag for audit and debugging.
	Variables map[string]any `json:"variables,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Status   MessageStatus `json:"status"`
	Priority Priority      `json:"priority"`

	ScheduledFor time.Time `json:"scheduled_for"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`

	ErrorMessage      *string    `json:"error_message,omitempty"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewQueuedMessage builds a pending message for one channel.
func NewQueuedMessage(templateKey, recipientType string, channel Channel, priority Priority, scheduledFor time.Time) *QueuedMessage {
	now := time.Now().UTC()
	if scheduledFor.IsZero() {
		scheduledFor = now
	}
	return &QueuedMessage{
		ID:            uuid.NewString(),
		TemplateKey:   templateKey,
		RecipientType: recipientType,
		Channel:       channel,
		Status:        StatusPending,
		Priority:      priority,
		ScheduledFor:  scheduledFor.UTC(),
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// QueueStats is a count-by-status snapshot of the live queue.
type QueueStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
}

// DeliveryLogEntry is a queue row archived out of the live queue by
// housekeeping. Logs are purged after the compliance retention window.
type DeliveryLogEntry struct {
	ID                string        `json:"id"`
	TemplateKey       string        `json:"template_key"`
	RecipientType     string        `json:"recipient_type"`
	Channel           Channel       `json:"channel"`
	Status            MessageStatus `json:"status"`
	ProviderMessageID *string       `json:"provider_message_id,omitempty"`
	ErrorMessage      *string       `json:"error_message,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	FailedAt          *time.Time    `json:"failed_at,omitempty"`
	ArchivedAt        time.Time     `json:"archived_at"`
}
