package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/platform/messagebroker"
)

const (
	// SendSubject is the NATS subject business services publish send
	// requests to.
	SendSubject = "messaging.send"
	// SendQueueGroup spreads requests across intake workers.
	SendQueueGroup = "messaging_intake"

	sendRequestTimeout = 30 * time.Second
)

// SendRequest is the wire payload accepted on the NATS subject. Mirrors
// SendMessageParams with string-typed priority for callers in other services.
type SendRequest struct {
	TemplateKey    string         `json:"template_key"`
	RecipientType  string         `json:"recipient_type"`
	RecipientID    *string        `json:"recipient_id,omitempty"`
	RecipientEmail *string        `json:"recipient_email,omitempty"`
	RecipientPhone *string        `json:"recipient_phone,omitempty"`
	Variables      map[string]any `json:"variables,omitempty"`
	Priority       *string        `json:"priority,omitempty"`
	ScheduledFor   *time.Time     `json:"scheduled_for,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SendConsumer subscribes to the send subject and forwards requests to the
// MessageService. Delivery failures are logged, not retried here: the queue,
// not NATS, is the durability boundary.
type SendConsumer struct {
	service    *MessageService
	natsClient *messagebroker.NATSClient
	logger     *slog.Logger
	sub        *nats.Subscription
}

func NewSendConsumer(service *MessageService, natsClient *messagebroker.NATSClient, logger *slog.Logger) *SendConsumer {
	return &SendConsumer{
		service:    service,
		natsClient: natsClient,
		logger:     logger.With("component", "send_consumer"),
	}
}

// Start subscribes to the send subject within the intake queue group.
// Request handling derives from ctx, so cancelling it aborts in-flight sends.
func (c *SendConsumer) Start(ctx context.Context) error {
	sub, err := c.natsClient.QueueSubscribe(SendSubject, SendQueueGroup, func(msg *nats.Msg) {
		c.handleRequest(ctx, msg.Data)
	})
	if err != nil {
		return err
	}
	c.sub = sub
	c.logger.Info("send consumer started", "subject", SendSubject, "queue_group", SendQueueGroup)
	return nil
}

// handleRequest processes one raw send request payload.
func (c *SendConsumer) handleRequest(ctx context.Context, data []byte) {
	var req SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Error("failed to unmarshal send request", "error", err, "subject", SendSubject)
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, sendRequestTimeout)
	defer cancel()

	params := SendMessageParams{
		TemplateKey:    req.TemplateKey,
		RecipientType:  req.RecipientType,
		RecipientID:    req.RecipientID,
		RecipientEmail: req.RecipientEmail,
		RecipientPhone: req.RecipientPhone,
		Variables:      req.Variables,
		ScheduledFor:   req.ScheduledFor,
		Metadata:       req.Metadata,
	}
	if req.Priority != nil {
		priority := domain.ParsePriority(*req.Priority)
		params.Priority = &priority
	}

	result := c.service.SendMessage(reqCtx, params)
	if !result.Success {
		c.logger.WarnContext(reqCtx, "send request enqueued nothing",
			"template_key", req.TemplateKey,
			"errors", result.Errors)
	}
}

// Stop unsubscribes from the send subject.
func (c *SendConsumer) Stop() {
	if c.sub != nil && c.sub.IsValid() {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Error("failed to unsubscribe send consumer", "error", err)
		}
	}
}
