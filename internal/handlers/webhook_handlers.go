package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"resto_platform_backend/internal/jobs"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// WebhookHandler accepts payment processor callbacks and hands them to the
// job pipeline. The endpoint only validates shape and enqueues; applying the
// event happens in the worker so the processor gets a fast 2xx.
type WebhookHandler struct {
	enqueuer jobs.Enqueuer
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(eq jobs.Enqueuer) *WebhookHandler {
	return &WebhookHandler{enqueuer: eq}
}

// PaymentWebhook ingests one processor event.
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Unreadable webhook body", err.Error()))
		return
	}

	var event struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(body, &event); err != nil || event.EventID == "" || event.EventType == "" {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Webhook events need event_id and event_type", ""))
		return
	}

	payload := jobs.PaymentWebhookPayload{
		EventID:   event.EventID,
		EventType: event.EventType,
		Raw:       json.RawMessage(body),
	}
	if err := h.enqueuer.Enqueue(c.Request.Context(), jobs.TypePaymentWebhook, payload); err != nil {
		utils.LogError(err, "PaymentWebhook: Failed to enqueue event")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusServiceUnavailable, utils.ErrCodeInternalServerError, "Event could not be queued; retry later.", ""))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event_id": event.EventID, "status": "queued"})
}
