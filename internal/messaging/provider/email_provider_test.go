package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEmailProvider(t *testing.T, handler http.HandlerFunc) (*APIEmailProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewAPIEmailProvider(discardLogger(), APIEmailConfig{
		APIUrl:      server.URL,
		APIKey:      "test-key",
		FromAddress: "orders@example.com",
		FromName:    "Orders",
		ReplyTo:     "support@example.com",
	}, server.Client())
	return p, server
}

func TestAPIEmailProviderSend(t *testing.T) {
	t.Run("success returns provider message id", func(t *testing.T) {
		var captured emailAPIRequestBody
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"msg_123"}`))
		})

		resp := p.Send(context.Background(), SendEmailRequest{
			To:      []string{"customer@example.com"},
			Subject: "Your order shipped",
			HTML:    "<p>On its way.</p>",
			Tags:    map[string]string{"template_key": "order_shipped"},
		})

		assert.True(t, resp.Success)
		assert.Empty(t, resp.Error)
		assert.Equal(t, "msg_123", resp.MessageID)
		assert.Equal(t, "HTTP_200", resp.ProviderStatus)
		assert.Equal(t, "email_api", resp.Provider)

		assert.Equal(t, "Orders <orders@example.com>", captured.From)
		assert.Equal(t, "support@example.com", captured.ReplyTo)
		assert.Equal(t, "order_shipped", captured.Tags["template_key"])
	})

	t.Run("server error is retryable", func(t *testing.T) {
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"upstream unavailable"}`))
		})

		resp := p.Send(context.Background(), SendEmailRequest{
			To: []string{"customer@example.com"}, Subject: "s", HTML: "<p>b</p>",
		})

		assert.False(t, resp.Success)
		assert.True(t, resp.Retryable)
		assert.Contains(t, resp.Error, "status 502")
		assert.Contains(t, resp.Error, "upstream unavailable")
	})

	t.Run("rate limit is retryable", func(t *testing.T) {
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		resp := p.Send(context.Background(), SendEmailRequest{
			To: []string{"customer@example.com"}, Subject: "s", HTML: "<p>b</p>",
		})

		assert.False(t, resp.Success)
		assert.True(t, resp.Retryable)
	})

	t.Run("client error is not retryable", func(t *testing.T) {
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))
		})

		resp := p.Send(context.Background(), SendEmailRequest{
			To: []string{"not-an-address"}, Subject: "s", HTML: "<p>b</p>",
		})

		assert.False(t, resp.Success)
		assert.False(t, resp.Retryable)
		assert.Contains(t, resp.Error, "invalid recipient")
	})

	t.Run("missing api key fails without a network call", func(t *testing.T) {
		called := false
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		p.apiKey = ""

		resp := p.Send(context.Background(), SendEmailRequest{
			To: []string{"customer@example.com"}, Subject: "s", HTML: "<p>b</p>",
		})

		assert.False(t, called)
		assert.False(t, resp.Success)
		assert.False(t, resp.Retryable)
		assert.Contains(t, resp.Error, "API key")
	})

	t.Run("missing required fields are not retryable", func(t *testing.T) {
		p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		for name, req := range map[string]SendEmailRequest{
			"no recipient": {Subject: "s", HTML: "<p>b</p>"},
			"no subject":   {To: []string{"a@b.c"}, HTML: "<p>b</p>"},
			"no html":      {To: []string{"a@b.c"}, Subject: "s"},
		} {
			resp := p.Send(context.Background(), req)
			assert.False(t, resp.Success, name)
			assert.False(t, resp.Retryable, name)
			assert.NotEmpty(t, resp.Error, name)
		}
	})
}

func TestAPIEmailProviderSendBatch(t *testing.T) {
	var count int
	p, _ := newTestEmailProvider(t, func(w http.ResponseWriter, r *http.Request) {
		count++
		_, _ = w.Write([]byte(`{"id":"batch"}`))
	})

	responses := p.SendBatch(context.Background(), []SendEmailRequest{
		{To: []string{"a@example.com"}, Subject: "s", HTML: "<p>1</p>"},
		{To: []string{"b@example.com"}, Subject: "s", HTML: "<p>2</p>"},
		{Subject: "s", HTML: "<p>3</p>"}, // invalid, no recipient
	})

	require.Len(t, responses, 3)
	assert.True(t, responses[0].Success)
	assert.True(t, responses[1].Success)
	assert.False(t, responses[2].Success)
	assert.Equal(t, 2, count)
}
