package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/messaging/template"
)

func TestSendConsumerHandleRequest(t *testing.T) {
	t.Run("valid payload reaches the queue", func(t *testing.T) {
		templates := new(MockTemplateRepository)
		queue := new(MockQueueRepository)
		service := NewMessageService(templates, queue, template.NewEngine(), testLogger(), domain.DefaultMaxRetries)
		consumer := NewSendConsumer(service, nil, testLogger())

		tmpl := orderShippedTemplate()
		tmpl.Channels = []domain.Channel{domain.ChannelEmail}
		templates.On("GetActiveByKey", mock.Anything, "order_shipped").Return(tmpl, nil)

		var enqueued *domain.QueuedMessage
		queue.On("Enqueue", mock.Anything, mock.AnythingOfType("*domain.QueuedMessage")).
			Run(func(args mock.Arguments) { enqueued = args.Get(1).(*domain.QueuedMessage) }).
			Return(&domain.QueuedMessage{ID: "queued-1"}, nil)

		consumer.handleRequest(context.Background(), []byte(`{
			"template_key": "order_shipped",
			"recipient_type": "customer",
			"recipient_email": "amira@example.com",
			"priority": "critical",
			"variables": {"first_name": "Amira", "order_number": "ORD-1042"}
		}`))

		require.NotNil(t, enqueued)
		assert.Equal(t, domain.PriorityCritical, enqueued.Priority)
		assert.Equal(t, "Order ORD-1042 shipped", *enqueued.Subject)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		templates := new(MockTemplateRepository)
		queue := new(MockQueueRepository)
		service := NewMessageService(templates, queue, template.NewEngine(), testLogger(), domain.DefaultMaxRetries)
		consumer := NewSendConsumer(service, nil, testLogger())

		consumer.handleRequest(context.Background(), []byte("{not json"))

		templates.AssertNotCalled(t, "GetActiveByKey", mock.Anything, mock.Anything)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("cancelled consumer context aborts handling", func(t *testing.T) {
		templates := new(MockTemplateRepository)
		queue := new(MockQueueRepository)
		service := NewMessageService(templates, queue, template.NewEngine(), testLogger(), domain.DefaultMaxRetries)
		consumer := NewSendConsumer(service, nil, testLogger())

		tmpl := orderShippedTemplate()
		tmpl.Channels = []domain.Channel{domain.ChannelEmail}
		templates.On("GetActiveByKey", mock.Anything, "order_shipped").Return(tmpl, nil)

		var reqCtx context.Context
		queue.On("Enqueue", mock.Anything, mock.AnythingOfType("*domain.QueuedMessage")).
			Run(func(args mock.Arguments) { reqCtx = args.Get(0).(context.Context) }).
			Return(&domain.QueuedMessage{ID: "queued-1"}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		consumer.handleRequest(ctx, []byte(`{
			"template_key": "order_shipped",
			"recipient_type": "customer",
			"recipient_email": "amira@example.com"
		}`))

		require.NotNil(t, reqCtx)
		assert.ErrorIs(t, reqCtx.Err(), context.Canceled)
	})
}
