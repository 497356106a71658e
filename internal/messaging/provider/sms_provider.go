package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"
)

// MaxSMSBodyLength is the provider-imposed ceiling on message length
// (concatenated segments included).
const MaxSMSBodyLength = 1600

// e164Re validates destination numbers: "+" followed by 1-14 digits.
var e164Re = regexp.MustCompile(`^\+[0-9]{1,14}$`)

// APISMSProvider sends SMS through an HTTP gateway API authenticated with a
// bearer API key. Destination format and body length are validated locally
// before any network call so malformed input never spends provider quota.
type APISMSProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string

	fromNumber     string
	webhookBaseURL string
}

// APISMSConfig holds the adapter's credential and sender surface.
type APISMSConfig struct {
	APIUrl         string
	APIKey         string
	FromNumber     string
	WebhookBaseURL string
}

func NewAPISMSProvider(logger *slog.Logger, cfg APISMSConfig, httpClient *http.Client) *APISMSProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APISMSProvider{
		logger:         logger.With("provider", "sms_api"),
		httpClient:     httpClient,
		apiURL:         cfg.APIUrl,
		apiKey:         cfg.APIKey,
		fromNumber:     cfg.FromNumber,
		webhookBaseURL: cfg.WebhookBaseURL,
	}
}

func (p *APISMSProvider) Name() string { return "sms_api" }

type smsAPIRequestBody struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Body           string `json:"body"`
	StatusCallback string `json:"status_callback,omitempty"`
}

type smsAPISuccessResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

type smsAPIErrorResponse struct {
	Message string `json:"message"`
}

func (p *APISMSProvider) Send(ctx context.Context, req SendSMSRequest) *SendResponse {
	if p.apiKey == "" {
		return &SendResponse{Provider: p.Name(), Error: "SMS API key is not configured"}
	}
	if !e164Re.MatchString(req.To) {
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("destination %q is not in E.164 format", req.To)}
	}
	if req.Body == "" {
		return &SendResponse{Provider: p.Name(), Error: "SMS body is required"}
	}
	if utf8.RuneCountInString(req.Body) > MaxSMSBodyLength {
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("SMS body exceeds %d characters", MaxSMSBodyLength)}
	}

	from := req.From
	if from == "" {
		from = p.fromNumber
	}
	statusCallback := req.StatusCallback
	if statusCallback == "" && p.webhookBaseURL != "" {
		statusCallback = p.webhookBaseURL + "/webhooks/sms/status"
	}

	body := smsAPIRequestBody{
		From:           from,
		To:             req.To,
		Body:           req.Body,
		StatusCallback: statusCallback,
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
		p.logger.ErrorContext(ctx, "SMS API request failed", "error", err)
		return &SendResponse{Provider: p.Name(), Error: fmt.Sprintf("SMS API request failed: %v", err), Retryable: true}
	}
	defer httpResp.Body.Close()

	respBody, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return &SendResponse{
			Provider:       p.Name(),
			ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			Error:          fmt.Sprintf("failed to read SMS API response (status %d): %v", httpResp.StatusCode, readErr),
			Retryable:      true,
		}
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		var success smsAPISuccessResponse
		if err := json.Unmarshal(respBody, &success); err != nil {
			p.logger.WarnContext(ctx, "SMS accepted but response unparseable", "status_code", httpResp.StatusCode, "error", err)
		}
		p.logger.InfoContext(ctx, "SMS submitted", "provider_message_id", success.MessageID, "recipient", req.To)
		return &SendResponse{
			Success:        true,
			MessageID:      success.MessageID,
			Provider:       p.Name(),
			ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
		}
	}

	errMsg := fmt.Sprintf("SMS API error: status %d", httpResp.StatusCode)
	var apiErr smsAPIErrorResponse
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
		errMsg = fmt.Sprintf("SMS API error: status %d, message: %s", httpResp.StatusCode, apiErr.Message)
	}
	p.logger.WarnContext(ctx, "SMS send rejected", "status_code", httpResp.StatusCode, "error", errMsg)

	return &SendResponse{
		Provider:       p.Name(),
		ProviderStatus: fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
		Error:          errMsg,
		Retryable:      httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests,
	}
}

func (p *APISMSProvider) TestConfiguration(ctx context.Context, to string) *SendResponse {
	return p.Send(ctx, SendSMSRequest{
		To:   to,
		Body: "This is a test message confirming the SMS provider configuration.",
	})
}
