package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/craftpress/messaging/internal/messaging/app"
	"github.com/craftpress/messaging/internal/messaging/domain"
	"github.com/craftpress/messaging/internal/messaging/provider"
)

// SendMessageRequest DTO for POST /messages
type SendMessageRequest struct {
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

// ProviderTestRequest DTO for POST /providers/{channel}/test
type ProviderTestRequest struct {
	To string `json:"to"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type MessageHandler struct {
	service   *app.MessageService
	processor *app.QueueProcessor
	email     provider.EmailProvider
	sms       provider.SMSProvider
	logger    *slog.Logger
}

func NewMessageHandler(
	service *app.MessageService,
	processor *app.QueueProcessor,
	email provider.EmailProvider,
	sms provider.SMSProvider,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		service:   service,
		processor: processor,
		email:     email,
		sms:       sms,
		logger:    logger.With("handler", "message"),
	}
}

// RegisterRoutes registers messaging routes with the given router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.handleSendMessage)
	r.Get("/queue/stats", h.handleQueueStats)
	r.Post("/providers/email/test", h.handleTestEmail)
	r.Post("/providers/sms/test", h.handleTestSMS)
}

func (h *MessageHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, logger, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateKey == "" || req.RecipientType == "" {
		h.jsonError(w, logger, "template_key and recipient_type are required", http.StatusBadRequest)
		return
	}

	params := app.SendMessageParams{
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

	result := h.service.SendMessage(ctx, params)

	status := http.StatusAccepted
	if !result.Success {
		// Nothing was enqueued; the errors list explains why.
		status = http.StatusUnprocessableEntity
	}
	h.respondJSON(w, logger, status, result)
}

func (h *MessageHandler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	stats, err := h.processor.QueueStats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch queue stats", "error", err)
		h.jsonError(w, logger, "failed to fetch queue stats", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, logger, http.StatusOK, stats)
}

func (h *MessageHandler) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req ProviderTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		h.jsonError(w, logger, "to address is required", http.StatusBadRequest)
		return
	}

	resp := h.email.TestConfiguration(ctx, req.To)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	h.respondJSON(w, logger, status, resp)
}

func (h *MessageHandler) handleTestSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req ProviderTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		h.jsonError(w, logger, "to number is required", http.StatusBadRequest)
		return
	}

	resp := h.sms.TestConfiguration(ctx, req.To)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadGateway
	}
	h.respondJSON(w, logger, status, resp)
}

func (h *MessageHandler) respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (h *MessageHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, msg string, status int) {
	h.respondJSON(w, logger, status, errorResponse{Error: msg})
}
