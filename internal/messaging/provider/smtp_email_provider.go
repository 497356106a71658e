package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// SMTPEmailProvider delivers email over plain SMTP. It satisfies the same
// adapter contract as the API provider and is selected by configuration for
// deployments without a transactional email API.
type SMTPEmailProvider struct {
	logger *slog.Logger
	dialer *gomail.Dialer

	fromAddress string
	fromName    string
	replyTo     string
}

// SMTPEmailConfig holds SMTP credentials and sender defaults.
type SMTPEmailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	FromAddress string
	FromName    string
	ReplyTo     string
}

func NewSMTPEmailProvider(logger *slog.Logger, cfg SMTPEmailConfig) *SMTPEmailProvider {
	return &SMTPEmailProvider{
		logger:      logger.With("provider", "email_smtp"),
		dialer:      gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		replyTo:     cfg.ReplyTo,
	}
}

func (p *SMTPEmailProvider) Name() string { return "email_smtp" }

func (p *SMTPEmailProvider) Send(ctx context.Context, req SendEmailRequest) *SendResponse {
	if len(req.To) == 0 {
		return &SendResponse{Provider: p.Name(), Error: "email recipient is required"}
	}
	if req.Subject == "" {
		return &SendResponse{Provider: p.Name(), Error: "email subject is required"}
	}
	if req.HTML == "" {
		return &SendResponse{Provider: p.Name(), Error: "email html body is required"}
	}

	from := req.From
	if from == "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.fromAddress)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", req.To...)
	m.SetHeader("Subject", req.Subject)
	if req.ReplyTo != "" {
		m.SetHeader("Reply-To", req.ReplyTo)
	} else if p.replyTo != "" {
		m.SetHeader("Reply-To", p.replyTo)
	}
	m.SetBody("text/html", req.HTML)
	if req.Text != "" {
		m.AddAlternative("text/plain", req.Text)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		p.logger.ErrorContext(ctx, "SMTP send failed", "error", err)
		return &SendResponse{
			Provider:  p.Name(),
			Error:     fmt.Sprintf("SMTP send failed: %v", err),
			Retryable: true,
		}
	}

	// SMTP has no provider-side message id; synthesize one for audit.
	messageID := "smtp-" + uuid.NewString()
	p.logger.InfoContext(ctx, "email sent via SMTP", "message_id", messageID, "recipient_count", len(req.To))
	return &SendResponse{
		Success:        true,
		MessageID:      messageID,
		Provider:       p.Name(),
		ProviderStatus: "SMTP_ACCEPTED",
	}
}

func (p *SMTPEmailProvider) SendBatch(ctx context.Context, reqs []SendEmailRequest) []*SendResponse {
	responses := make([]*SendResponse, 0, len(reqs))
	for _, req := range reqs {
		responses = append(responses, p.Send(ctx, req))
	}
	return responses
}

func (p *SMTPEmailProvider) TestConfiguration(ctx context.Context, to string) *SendResponse {
	return p.Send(ctx, SendEmailRequest{
		To:      []string{to},
		Subject: "Email configuration test",
		HTML:    "<p>This is a test message confirming the SMTP configuration.</p>",
	})
}
