package domain

import "fmt"

// Channel is a closed set of delivery mechanisms. Values persist as text, so
// the constants are part of the storage contract.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInbox Channel = "inbox"
)

// ParseChannel validates a stored channel value. A failure here indicates a
// data or configuration bug, not a transient condition.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelSMS, ChannelInbox:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Priority orders messages within the queue. Higher values are selected first.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority maps the wire/API names back to Priority. Unknown names
// default to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityNormal
	}
}

// MessageStatus defines the possible statuses of a queued message.
type MessageStatus string

const (
	StatusPending    MessageStatus = "pending"
	StatusProcessing MessageStatus = "processing" // claimed by a worker
	StatusSent       MessageStatus = "sent"       // accepted by provider, terminal
	StatusFailed     MessageStatus = "failed"     // retry budget exhausted or non-retryable, terminal
)
