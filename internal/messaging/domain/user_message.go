package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserMessage is a persisted in-app notification, created as a side effect of
// processing an inbox-channel QueuedMessage. Immutable after creation except
// for read/dismissed state, which is owned by the notification center.
type UserMessage struct {
	ID          string  `json:"id"` // UUID
	UserType    string  `json:"user_type"`
	UserID      string  `json:"user_id"`
	MessageType string  `json:"message_type"` // the originating template_key
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	ActionURL   *string `json:"action_url,omitempty"`
	ActionLabel *string `json:"action_label,omitempty"`
	ActionIcon  *string `json:"action_icon,omitempty"`

	Metadata  map[string]any `json:"metadata,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`

	IsRead      bool      `json:"is_read"`
	IsDismissed bool      `json:"is_dismissed"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserMessage builds an inbox record with a fresh ID.
func NewUserMessage(userType, userID, messageType, title, body string) *UserMessage {
	return &UserMessage{
		ID:          uuid.NewString(),
		UserType:    userType,
		UserID:      userID,
		MessageType: messageType,
		Title:       title,
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
}
