package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/messaging/provider"
)

// MessageError pairs a message id with its failure reason in a batch result.
type MessageError struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// ProcessResult aggregates one processing batch.
type ProcessResult struct {
	Processed int            `json:"processed"` // sent successfully
	Failed    int            `json:"failed"`    // provider/storage failure (retry scheduled or terminal)
	Skipped   int            `json:"skipped"`   // data/config bugs, e.g. corrupt channel value
	Errors    []MessageError `json:"errors"`
}

// QueueProcessor dispatches due queued messages to providers. Invoked
// periodically; safe to run from multiple workers because the repository's
// ClaimDue transitions rows pending->processing atomically.
type QueueProcessor struct {
	queue  domain.QueueRepository
	inbox  domain.InboxRepository
	email  provider.EmailProvider
	sms    provider.SMSProvider
	logger *slog.Logger
}

func NewQueueProcessor(
	queue domain.QueueRepository,
	inbox domain.InboxRepository,
	email provider.EmailProvider,
	sms provider.SMSProvider,
	logger *slog.Logger,
) *QueueProcessor {
	return &QueueProcessor{
		queue:  queue,
		inbox:  inbox,
		email:  email,
		sms:    sms,
		logger: logger.With("component", "queue_processor"),
	}
}

// ProcessQueue claims up to batchSize due messages and dispatches each one.
// Per-message failures never abort the batch; only a failure to claim at all
// is returned as an error.
func (p *QueueProcessor) ProcessQueue(ctx context.Context, batchSize int) (ProcessResult, error) {
	result := ProcessResult{Errors: []MessageError{}}

	messages, err := p.queue.ClaimDue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueMessages) {
			return result, nil
		}
		p.logger.ErrorContext(ctx, "failed to claim due messages", "error", err)
		return result, fmt.Errorf("failed to claim due messages: %w", err)
	}

	p.logger.InfoContext(ctx, "claimed messages for processing", "count", len(messages))

	for _, msg := range messages {
		timer := prometheus.NewTimer(messageProcessingDurationHist.WithLabelValues(string(msg.Channel)))
		outcome := p.processOne(ctx, msg, &result)
		timer.ObserveDuration()
		messagesProcessedCounter.WithLabelValues(string(msg.Channel), outcome).Inc()
	}

	return result, nil
}

// processOne dispatches a single claimed message. Panics are contained here
// so one bad message never takes down the batch; they route through the same
// retry path as any other failure.
func (p *QueueProcessor) processOne(ctx context.Context, msg *domain.QueuedMessage, result *ProcessResult) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			errMsg := fmt.Sprintf("panic during processing: %v", r)
			p.logger.ErrorContext(ctx, "recovered panic while processing message", "message_id", msg.ID, "panic", r)
			p.failMessage(ctx, msg, errMsg, true, result)
			outcome = "failed"
		}
	}()

	switch msg.Channel {
	case domain.ChannelEmail:
		return p.dispatchEmail(ctx, msg, result)
	case domain.ChannelSMS:
		return p.dispatchSMS(ctx, msg, result)
	case domain.ChannelInbox:
		return p.dispatchInbox(ctx, msg, result)
	}

	// Unreachable for rows written by this service; a corrupt stored value
	// indicates a data bug and is terminal.
	p.logger.ErrorContext(ctx, "claimed message has unknown channel", "message_id", msg.ID, "channel", msg.Channel)
	errMsg := fmt.Sprintf("unknown channel: %s", msg.Channel)
	if err := p.queue.MarkFailed(ctx, msg.ID, errMsg, false); err != nil {
		p.logger.ErrorContext(ctx, "failed to mark message failed", "error", err, "message_id", msg.ID)
	}
	result.Skipped++
	result.Errors = append(result.Errors, MessageError{MessageID: msg.ID, Error: errMsg})
	return "skipped"
}

func (p *QueueProcessor) dispatchEmail(ctx context.Context, msg *domain.QueuedMessage, result *ProcessResult) string {
	if msg.RecipientEmail == nil || *msg.RecipientEmail == "" {
		p.failMessage(ctx, msg, "email: recipient email missing on queued row", false, result)
		return "failed"
	}

	subject := ""
	if msg.Subject != nil {
		subject = *msg.Subject
	}

	// Provider-side tags always carry template_key and recipient_type for
	// delivery analytics.
	tags := map[string]string{
		"template_key":   msg.TemplateKey,
		"recipient_type": msg.RecipientType,
	}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.email.Name()))
	resp := p.email.Send(ctx, provider.SendEmailRequest{
		To:       []string{*msg.RecipientEmail},
		Subject:  subject,
		HTML:     msg.Body,
		Tags:     tags,
		Metadata: msg.Metadata,
	})
	timer.ObserveDuration()

	return p.resolve(ctx, msg, resp, result)
}

func (p *QueueProcessor) dispatchSMS(ctx context.Context, msg *domain.QueuedMessage, result *ProcessResult) string {
	if msg.RecipientPhone == nil || *msg.RecipientPhone == "" {
		p.failMessage(ctx, msg, "sms: recipient phone missing on queued row", false, result)
		return "failed"
	}

	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.sms.Name()))
	resp := p.sms.Send(ctx, provider.SendSMSRequest{
		To:       *msg.RecipientPhone,
		Body:     msg.Body,
		Metadata: msg.Metadata,
	})
	timer.ObserveDuration()

	return p.resolve(ctx, msg, resp, result)
}

func (p *QueueProcessor) dispatchInbox(ctx context.Context, msg *domain.QueuedMessage, result *ProcessResult) string {
	if msg.RecipientID == nil || *msg.RecipientID == "" {
		p.failMessage(ctx, msg, "inbox: recipient id missing on queued row", false, result)
		return "failed"
	}

	title := ""
	if msg.InboxTitle != nil {
		title = *msg.InboxTitle
	}

	record := domain.NewUserMessage(msg.RecipientType, *msg.RecipientID, msg.TemplateKey, title, msg.Body)
	record.ActionURL = msg.InboxActionURL
	record.ActionLabel = msg.InboxActionLabel
	record.ActionIcon = msg.InboxActionIcon
	record.Metadata = msg.Metadata

	created, err := p.inbox.Create(ctx, record)
	if err != nil {
		// Storage failure is transient from the queue's point of view.
		p.failMessage(ctx, msg, fmt.Sprintf("inbox: %v", err), true, result)
		return "failed"
	}

	if err := p.queue.MarkSent(ctx, msg.ID, &created.ID); err != nil {
		p.logger.ErrorContext(ctx, "failed to mark inbox message sent", "error", err, "message_id", msg.ID)
	}
	result.Processed++
	return "sent"
}

// resolve applies a provider response to the queue row.
func (p *QueueProcessor) resolve(ctx context.Context, msg *domain.QueuedMessage, resp *provider.SendResponse, result *ProcessResult) string {
	if resp.Success {
		var providerID *string
		if resp.MessageID != "" {
			providerID = &resp.MessageID
		}
		if err := p.queue.MarkSent(ctx, msg.ID, providerID); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark message sent", "error", err, "message_id", msg.ID)
		}
		result.Processed++
		return "sent"
	}

	p.failMessage(ctx, msg, resp.Error, resp.Retryable, result)
	if resp.Retryable && msg.RetryCount+1 < msg.MaxRetries {
		return "retry_scheduled"
	}
	return "failed"
}

func (p *QueueProcessor) failMessage(ctx context.Context, msg *domain.QueuedMessage, errMsg string, retryable bool, result *ProcessResult) {
	if err := p.queue.MarkFailed(ctx, msg.ID, errMsg, retryable); err != nil {
		p.logger.ErrorContext(ctx, "failed to record message failure", "error", err, "message_id", msg.ID)
	}
	result.Failed++
	result.Errors = append(result.Errors, MessageError{MessageID: msg.ID, Error: errMsg})
}

// QueueStats exposes count-by-status for health dashboards. A processing
// count that never drains indicates a crashed worker holding claimed rows.
func (p *QueueProcessor) QueueStats(ctx context.Context) (*domain.QueueStats, error) {
	return p.queue.Stats(ctx)
}
