package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// APIEmailProvider sends email through a transactional email HTTP API
// authenticated with a bearer API key.
type APIEmailProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string

	fromAddress string
	fromName    string
	replyTo     string
}

// APIEmailConfig holds the adapter's credential and default-sender surface.
type APIEmailConfig struct {
	APIUrl      string
	APIKey      string
	FromAddress string
	FromName    string
	ReplyTo     string
}

func NewAPIEmailProvider(logger *slog.Logger, cfg APIEmailConfig, httpClient *http.Client) *APIEmailProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIEmailProvider{
		logger:      logger.With("provider", "email_api"),
		httpClient:  httpClient,
		apiURL:      cfg.APIUrl,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		replyTo:     cfg.ReplyTo,
	}
}

func (p *APIEmailProvider) Name() string { return "email_api" }

type emailAPIRequestBody struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

type emailAPISuccessResponse struct {
	ID string `json:"id"`
}

type emailAPIErrorResponse struct {
	Message string `json:"message"`
}

func (p *APIEmailProvider) Send(ctx context.Context, req SendEmailRequest) *SendResponse {
	if resp := p.validate(req); resp != nil {
		return resp
	}

	from := req.From
	if from == "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress)
	}
	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = p.replyTo
	}

	body := emailAPIRequestBody{
		From:    from,
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTML,
		Text:    req.Text,
		ReplyTo: replyTo,
		Tags:    req.Tags,
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBytes))
	if err != nil {
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "email API request failed", "error", err)
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("email API request failed: %v", err), Retryable: true}
	}
	defer httpResp.Body.Close()

	respBody, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return &SendResponse{
			Provider:       p.Name(),
			ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			Error:          fmt.Sprintf("failed to read email API response (status %d): %v", httpResp.StatusCode, readErr),
			Retryable:      true,
		}
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		var success emailAPISuccessResponse
		if err := json.Unmarshal(respBody, &success); err != nil {
			p.logger.WarnContext(ctx, "email accepted but response unparseable", "status_code", httpResp.StatusCode, "error", err)
		}
		p.logger.InfoContext(ctx, "email submitted", "provider_message_id", success.ID, "recipient_count", len(req.To))
		return &SendResponse{
			Success:        true,
			MessageID:      success.ID,
			Provider:       p.Name(),
			ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
		}
	}

	errMsg := fmt.Sprintf("email API error: status %d", httpResp.StatusCode)
	var apiErr emailAPIErrorResponse
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
		errMsg = fmt.Sprintf("email API error: status %d, message: %s", httpResp.StatusCode, apiErr.Message)
	}
	p.logger.WarnContext(ctx, "email send rejected", "status_code", httpResp.StatusCode, "error", errMsg)

	return &SendResponse{
		Provider:       p.Name(),
		ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
		Error:          errMsg,
		// 4xx means the request itself is bad and will not succeed unchanged.
		Retryable: httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests,
	}
}

func (p *APIEmailProvider) SendBatch(ctx context.Context, reqs []SendEmailRequest) []*SendResponse {
	responses := make([]*SendResponse, 0, len(reqs))
	for _, req := range reqs {
		responses = append(responses, p.Send(ctx, req))
	}
	return responses
}

func (p *APIEmailProvider) TestConfiguration(ctx context.Context, to string) *SendResponse {
	return p.Send(ctx, SendEmailRequest{
		To:      []string{to},
		Subject: "Email configuration test",
		HTML:    "<p>This is a test message confirming the email provider configuration.</p>",
		Tags:    map[string]string{"template_key": "config_test", "recipient_type": "operator"},
	})
}

// validate checks required fields and credentials before calling out. These
// failures are non-retryable.
func (p *APIEmailProvider) validate(req SendEmailRequest) *SendResponse {
	if p.apiKey == "" {
		return &SendResponse{Provider: p.Name(), Error: "email API key is not configured"}
	}
	if len(req.To) == 0 {
		return &SendResponse{Provider: p.Name(), Error: "email recipient is required"}
	}
	if req.Subject == "" {
		return &SendResponse{Provider: p.Name(), Error: "email subject is required"}
	}
	if req.HTML == "" {
		return &SendResponse{Provider: p.Name(), Error: "email html body is required"}
	}
	return nil
}
