package domain

import "time"

// MessageTemplate is a named definition of what to send per channel. Templates
// are maintained by the admin back office and are read-only to this service.
type MessageTemplate struct {
	ID          string    `json:"id"`
	TemplateKey string    `json:"template_key"`
	Channels    []Channel `json:"channels"`
	UserTypes   []string  `json:"user_types"` // recipient types allowed to receive this template

	EmailSubject string `json:"email_subject,omitempty"`
	EmailBody    string `json:"email_body,omitempty"`
	SMSBody      string `json:"sms_body,omitempty"`
	InboxTitle   string `json:"inbox_title,omitempty"`
	InboxBody    string `json:"inbox_body,omitempty"`

	InboxActionURL   *string `json:"inbox_action_url,omitempty"`
	InboxActionLabel *string `json:"inbox_action_label,omitempty"`
	InboxActionIcon  *string `json:"inbox_action_icon,omitempty"`

	DefaultPriority Priority  `json:"default_priority"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasChannel reports whether the template lists the given channel.
func (t *MessageTemplate) HasChannel(ch Channel) bool {
	for _, c := range t.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// AllowsUserType reports whether recipients of the given type may receive this
// template. An empty user_types set allows everyone.
func (t *MessageTemplate) AllowsUserType(userType string) bool {
	if len(t.UserTypes) == 0 {
		return true
	}
	for _, ut := range t.UserTypes {
		if ut == userType {
			return true
		}
	}
	return false
}

// ChannelConfigured reports whether the template fields required to render the
// given channel are populated. A listed channel with empty fields is silently
// skipped by the orchestrator.
func (t *MessageTemplate) ChannelConfigured(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return t.EmailBody != ""
	case ChannelSMS:
		return t.SMSBody != ""
	case ChannelInbox:
		return t.InboxTitle != "" || t.InboxBody != ""
	}
	return false
}
