package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/messaging/template"
)

// SendMessageParams is the caller-facing input to SendMessage.
type SendMessageParams struct {
	TemplateKey    string           `json:"template_key"`
	RecipientType  string           `json:"recipient_type"`
	RecipientID    *string          `json:"recipient_id,omitempty"`
	RecipientEmail *string          `json:"recipient_email,omitempty"`
	RecipientPhone *string          `json:"recipient_phone,omitempty"`
	Variables      map[string]any   `json:"variables,omitempty"`
	Priority       *domain.Priority `json:"priority,omitempty"`
	ScheduledFor   *time.Time       `json:"scheduled_for,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// SendResult reports partial success across channels. Callers must inspect
// Success and Errors; an error-free call does not imply delivery, only that
// rows were durably enqueued.
type SendResult struct {
	Success    bool     `json:"success"`
	MessageIDs []string `json:"message_ids"`
	Errors     []string `json:"errors"`
}

// MessageService orchestrates a send: template lookup, per-channel rendering
// and one queue row per active channel. Channels are independent; a failure
// on one never blocks the others.
type MessageService struct {
	templates  domain.TemplateRepository
	queue      domain.QueueRepository
	engine     *template.Engine
	logger     *slog.Logger
	maxRetries int
}

func NewMessageService(
	templates domain.TemplateRepository,
	queue domain.QueueRepository,
	engine *template.Engine,
	logger *slog.Logger,
	maxRetries int,
) *MessageService {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}
	return &MessageService{
		templates:  templates,
		queue:      queue,
		engine:     engine,
		logger:     logger.With("component", "message_service"),
		maxRetries: maxRetries,
	}
}

func (s *MessageService) SendMessage(ctx context.Context, params SendMessageParams) SendResult {
	tmpl, err := s.templates.GetActiveByKey(ctx, params.TemplateKey)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return SendResult{Errors: []string{fmt.Sprintf("Template not found: %s", params.TemplateKey)}, MessageIDs: []string{}}
		}
		s.logger.ErrorContext(ctx, "template lookup failed", "error", err, "template_key", params.TemplateKey)
		return SendResult{Errors: []string{fmt.Sprintf("Template lookup failed: %v", err)}, MessageIDs: []string{}}
	}

	if !tmpl.AllowsUserType(params.RecipientType) {
		return SendResult{
			Errors:     []string{fmt.Sprintf("Recipient type %q not allowed for template %s", params.RecipientType, params.TemplateKey)},
			MessageIDs: []string{},
		}
	}

	priority := tmpl.DefaultPriority
	if params.Priority != nil {
		priority = *params.Priority
	}
	var scheduledFor time.Time
	if params.ScheduledFor != nil {
		scheduledFor = params.ScheduledFor.UTC()
	}

	result := SendResult{MessageIDs: []string{}, Errors: []string{}}
	for _, channel := range tmpl.Channels {
		// A listed channel with no template fields populated is skipped,
		// not an error.
		if !tmpl.ChannelConfigured(channel) {
			continue
		}

		msg, chErr := s.buildChannelMessage(tmpl, channel, params, priority, scheduledFor)
		if chErr != "" {
			result.Errors = append(result.Errors, chErr)
			continue
		}

		enqueued, err := s.queue.Enqueue(ctx, msg)
		if err != nil {
			s.logger.ErrorContext(ctx, "enqueue failed", "error", err, "channel", channel, "template_key", params.TemplateKey)
			enqueueErrorsCounter.WithLabelValues(string(channel), "storage").Inc()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: failed to enqueue message: %v", channel, err))
			continue
		}

		messagesEnqueuedCounter.WithLabelValues(string(channel), params.TemplateKey).Inc()
		result.MessageIDs = append(result.MessageIDs, enqueued.ID)
	}

	result.Success = len(result.MessageIDs) > 0
	s.logger.InfoContext(ctx, "send message completed",
		"template_key", params.TemplateKey,
		"enqueued", len(result.MessageIDs),
		"errors", len(result.Errors))
	return result
}

// buildChannelMessage renders the channel's content and validates its
// recipient field. A non-empty error string means this channel is skipped
// with a recorded error; the other channels continue.
func (s *MessageService) buildChannelMessage(
	tmpl *domain.MessageTemplate,
	channel domain.Channel,
	params SendMessageParams,
	priority domain.Priority,
	scheduledFor time.Time,
) (*domain.QueuedMessage, string) {
	msg := domain.NewQueuedMessage(tmpl.TemplateKey, params.RecipientType, channel, priority, scheduledFor)
	msg.MaxRetries = s.maxRetries
	msg.Variables = params.Variables
	msg.Metadata = params.Metadata
	msg.RecipientID = params.RecipientID
	msg.RecipientEmail = params.RecipientEmail
	msg.RecipientPhone = params.RecipientPhone

	switch channel {
	case domain.ChannelEmail:
		if params.RecipientEmail == nil || *params.RecipientEmail == "" {
			enqueueErrorsCounter.WithLabelValues(string(channel), "recipient").Inc()
			return nil, "email: recipient email is required"
		}
		subject, err := s.engine.Render(tmpl.EmailSubject, params.Variables)
		if err != nil {
			enqueueErrorsCounter.WithLabelValues(string(channel), "render").Inc()
			return nil, fmt.Sprintf("email: %v", err)
		}
		body, err := s.engine.Render(tmpl.EmailBody, params.Variables)
		if err != nil {
			enqueueErrorsCounter.WithLabelValues(string(channel), "render").Inc()
			return nil, fmt.Sprintf("email: %v", err)
		}
		msg.Subject = &subject
		msg.Body = body

	case domain.ChannelSMS:
		if params.RecipientPhone == nil || *params.RecipientPhone == "" {
			enqueueErrorsCounter.WithLabelValues(string(channel), "recipient").Inc()
			return nil, "sms: recipient phone is required"
		}
		body, err := s.engine.Render(tmpl.SMSBody, params.Variables)
		if err != nil {
			enqueueErrorsCounter.WithLabelValues(string(channel), "render").Inc()
			return nil, fmt.Sprintf("sms: %v", err)
		}
		msg.Body = body

	case domain.ChannelInbox:
		if params.RecipientID == nil || *params.RecipientID == "" {
			enqueueErrorsCounter.WithLabelValues(string(channel), "recipient").Inc()
			return nil, "inbox: recipient id is required"
		}
		title, err := s.engine.Render(tmpl.InboxTitle, params.Variables)
		if err != nil {
			enqueueErrorsCounter.WithLabelValues(string(channel), "render").Inc()
			return nil, fmt.Sprintf("inbox: %v", err)
		}
		body, err := s.engine.Render(tmpl.InboxBody, params.Variables)
		if err != nil {
			enqueueErrorsCounter.WithLabelValues(string(channel), "render").Inc()
			return nil, fmt.Sprintf("inbox: %v", err)
		}
		msg.InboxTitle = &title
		msg.Body = body
		msg.InboxActionURL = tmpl.InboxActionURL
		msg.InboxActionLabel = tmpl.InboxActionLabel
		msg.InboxActionIcon = tmpl.InboxActionIcon
	}

	return msg, ""
}
