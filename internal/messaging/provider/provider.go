package provider

import "context"

// SendResponse is the discriminated result shared by every adapter. Expected
// failure modes (missing credentials, invalid input, provider rejection) are
// reported here rather than as errors, so the queue processor's handling
// stays uniform across channels.
type SendResponse struct {
	Success        bool           `json:"success"`
	MessageID      string         `json:"message_id,omitempty"` // provider-side id, set on success
	ProviderStatus string         `json:"provider_status,omitempty"`
	Error          string         `json:"error,omitempty"`
	Provider       string         `json:"provider"`
	Data           map[string]any `json:"data,omitempty"`

	// Retryable distinguishes transient provider failures from validation
	// and configuration failures that can never succeed without caller
	// intervention. The processor fails non-retryable messages terminally
	// instead of spending retry budget.
	Retryable bool `json:"-"`
}

// SendEmailRequest carries one outbound email.
type SendEmailRequest struct {
	To       []string
	Subject  string
	HTML     string
	Text     string
	From     string // optional, adapter default applies
	ReplyTo  string // optional
	Tags     map[string]string
	Metadata map[string]any
}

// SendSMSRequest carries one outbound SMS.
type SendSMSRequest struct {
	To             string
	Body           string
	From           string // optional, adapter default applies
	StatusCallback string // optional delivery webhook URL
	Metadata       map[string]any
}

// EmailProvider is the adapter contract for email delivery services.
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, req SendEmailRequest) *SendResponse
	// SendBatch sends N emails by looping single sends; no native batch API
	// is assumed of the provider.
	SendBatch(ctx context.Context, reqs []SendEmailRequest) []*SendResponse
	// TestConfiguration sends a canned message to verify credentials.
	// Operational tooling, not part of the send path.
	TestConfiguration(ctx context.Context, to string) *SendResponse
}

// SMSProvider is the adapter contract for SMS gateways.
type SMSProvider interface {
	Name() string
	Send(ctx context.Context, req SendSMSRequest) *SendResponse
	TestConfiguration(ctx context.Context, to string) *SendResponse
}
