package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/craftpress/messaging/internal/messaging/domain"
)

type pgTemplateRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgTemplateRepository reads templates from the admin-owned
// message_templates table. The messaging core never writes to it.
func NewPgTemplateRepository(db PgxIface, logger *slog.Logger) domain.TemplateRepository {
	return &pgTemplateRepository{db: db, logger: logger.With("repository", "template")}
}

func (r *pgTemplateRepository) GetActiveByKey(ctx context.Context, templateKey string) (*domain.MessageTemplate, error) {
	query := `
		SELECT id, template_key, channels, user_types,
		       email_subject, email_body, sms_body, inbox_title, inbox_body,
		       inbox_action_url, inbox_action_label, inbox_action_icon,
		       default_priority, is_active, created_at, updated_at
		FROM message_templates
		WHERE template_key = $1 AND is_active = TRUE
	`

	tmpl := &domain.MessageTemplate{}
	var channels []string
	var priority int
	err := r.db.QueryRow(ctx, query, templateKey).Scan(
		&tmpl.ID, &tmpl.TemplateKey, &channels, &tmpl.UserTypes,
		&tmpl.EmailSubject, &tmpl.EmailBody, &tmpl.SMSBody, &tmpl.InboxTitle, &tmpl.InboxBody,
		&tmpl.InboxActionURL, &tmpl.InboxActionLabel, &tmpl.InboxActionIcon,
		&priority, &tmpl.IsActive, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		r.logger.ErrorContext(ctx, "error fetching template", "error", err, "template_key", templateKey)
		return nil, err
	}

	tmpl.DefaultPriority = domain.Priority(priority)
	tmpl.Channels = make([]domain.Channel, 0, len(channels))
	for _, ch := range channels {
		parsed, err := domain.ParseChannel(ch)
		if err != nil {
			// A bad channel value in admin data must not take the whole
			// template down; the orchestrator skips what it can't dispatch.
			r.logger.WarnContext(ctx, "template lists unknown channel", "template_key", templateKey, "channel", ch)
			continue
		}
		tmpl.Channels = append(tmpl.Channels, parsed)
	}
	return tmpl, nil
}
