package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MockEmailProvider is a test implementation of EmailProvider.
type MockEmailProvider struct {
	logger         *slog.Logger
	FailSend       bool          // simulate provider failure
	SimulatedDelay time.Duration // simulate network latency
	Sent           []SendEmailRequest
}

func NewMockEmailProvider(logger *slog.Logger, failSend bool, delay time.Duration) *MockEmailProvider {
	return &MockEmailProvider{
		logger:         logger.With("provider", "mock_email"),
		FailSend:       failSend,
		SimulatedDelay: delay,
	}
}

func (p *MockEmailProvider) Name() string { return "mock_email" }

func (p *MockEmailProvider) Send(ctx context.Context, req SendEmailRequest) *SendResponse {
	if p.SimulatedDelay > 0 {
		time.Sleep(p.SimulatedDelay)
	}
	if p.FailSend {
		p.logger.WarnContext(ctx, "mock email provider simulated failure")
		return &SendResponse{Provider: p.Name(), ProviderStatus: "FAILED_MOCK", Error: "mock provider simulated send failure", Retryable: true}
	}
	p.Sent = append(p.Sent, req)
	return &SendResponse{
		Success:        true,
		MessageID:      "mock-email-" + uuid.NewString(),
		Provider:       p.Name(),
		ProviderStatus: "SENT_MOCK_OK",
	}
}

func (p *MockEmailProvider) SendBatch(ctx context.Context, reqs []SendEmailRequest) []*SendResponse {
	responses := make([]*SendResponse, 0, len(reqs))
	for _, req := range reqs {
		responses = append(responses, p.Send(ctx, req))
	}
	return responses
}

func (p *MockEmailProvider) TestConfiguration(ctx context.Context, to string) *SendResponse {
	return p.Send(ctx, SendEmailRequest{To: []string{to}, Subject: "test", HTML: "<p>test</p>"})
}

// MockSMSProvider is a test implementation of SMSProvider.
type MockSMSProvider struct {
	logger         *slog.Logger
	FailSend       bool
	SimulatedDelay time.Duration
	Sent           []SendSMSRequest
}

func NewMockSMSProvider(logger *slog.Logger, failSend bool, delay time.Duration) *MockSMSProvider {
	return &MockSMSProvider{
		logger:         logger.With("provider", "mock_sms"),
		FailSend:       failSend,
		SimulatedDelay: delay,
	}
}

func (p *MockSMSProvider) Name() string { return "mock_sms" }

func (p *MockSMSProvider) Send(ctx context.Context, req SendSMSRequest) *SendResponse {
	if p.SimulatedDelay > 0 {
		time.Sleep(p.SimulatedDelay)
	}
	if !e164Re.MatchString(req.To) {
		return &SendResponse{Provider: p.Name(), Error: "destination is not in E.164 format"}
	}
	if p.FailSend {
		p.logger.WarnContext(ctx, "mock SMS provider simulated failure", "recipient", req.To)
		return &SendResponse{Provider: p.Name(), ProviderStatus: "FAILED_MOCK", Error: "mock provider simulated send failure", Retryable: true}
	}
	p.Sent = append(p.Sent, req)
	return &SendResponse{
		Success:        true,
		MessageID:      "mock-sms-" + uuid.NewString(),
		Provider:       p.Name(),
		ProviderStatus: "SENT_MOCK_OK",
	}
}

func (p *MockSMSProvider) TestConfiguration(ctx context.Context, to string) *SendResponse {
	return p.Send(ctx, SendSMSRequest{To: to, Body: "test"})
}
