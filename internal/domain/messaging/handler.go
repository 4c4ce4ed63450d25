package messaging

import (
	"log/slog"
	"net/http"
	"time"

	"unicast/internal/common"
	"unicast/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the messaging domain.
type Handler struct {
	service *Service
}

// NewHandler creates a new messaging handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// sendRequest is the API request payload for the dispatch endpoints.
type sendRequest struct {
	RecipientIDs []string    `json:"recipientIds" binding:"required"`
	Channels     []Channel   `json:"channels" binding:"required"`
	Type         MessageType `json:"type"`
}

// scheduleRequest is the API request payload for deferred dispatch.
type scheduleRequest struct {
	RecipientIDs []string    `json:"recipientIds" binding:"required"`
	Channels     []Channel   `json:"channels" binding:"required"`
	Type         MessageType `json:"type" binding:"required"`
	SendAt       time.Time   `json:"sendAt" binding:"required"`
}

// cellError is the per-cell failure entry in the dispatch response.
type cellError struct {
	Recipient string  `json:"recipient"`
	Channel   Channel `json:"channel"`
	Error     string  `json:"error"`
}

// dispatchResponse is the batch outcome returned with HTTP 200 for any
// batch result, including one where every cell failed. Call-level
// precondition failures are the only error statuses.
type dispatchResponse struct {
	Success bool         `json:"success"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Results []CellResult `json:"results"`
	Errors  []cellError  `json:"errors,omitempty"`
}

func newDispatchResponse(result *BatchResult) dispatchResponse {
	resp := dispatchResponse{
		Success: true,
		Sent:    result.Sent,
		Failed:  result.Failed,
		Results: make([]CellResult, 0, result.Sent),
	}
	for _, c := range result.Cells {
		if c.Status == StatusSent {
			resp.Results = append(resp.Results, c)
			continue
		}
		resp.Errors = append(resp.Errors, cellError{
			Recipient: c.Recipient,
			Channel:   c.Channel,
			Error:     c.Error,
		})
	}
	return resp
}

// SendInvitations handles POST /api/events/:id/invitations
func (h *Handler) SendInvitations(c *gin.Context) {
	h.dispatch(c, TypeInvitation)
}

// SendReminders handles POST /api/events/:id/reminders
func (h *Handler) SendReminders(c *gin.Context) {
	h.dispatch(c, TypeReminder)
}

// Notify handles POST /api/events/:id/notify with the message type in the
// body (thank-you, update, custom).
func (h *Handler) Notify(c *gin.Context) {
	h.dispatch(c, "")
}

// dispatch binds the request, runs the batch, and writes the batch
// outcome. msgType overrides the body's type for the fixed-type routes.
func (h *Handler) dispatch(c *gin.Context, msgType MessageType) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msgType == "" {
		msgType = req.Type
	}

	dispatchReq := DispatchRequest{
		EventID:      c.Param("id"),
		RequesterID:  middleware.RequesterID(c),
		RecipientIDs: req.RecipientIDs,
		Channels:     req.Channels,
		Type:         msgType,
	}

	result, err := h.service.Dispatch(c.Request.Context(), dispatchReq)
	if err != nil {
		slog.Error("dispatch failed",
			"event_id", dispatchReq.EventID,
			"type", dispatchReq.Type,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, newDispatchResponse(result))
}

// Schedule handles POST /api/events/:id/schedule
func (h *Handler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	dispatchReq := DispatchRequest{
		EventID:      c.Param("id"),
		RequesterID:  middleware.RequesterID(c),
		RecipientIDs: req.RecipientIDs,
		Channels:     req.Channels,
		Type:         req.Type,
	}

	if err := h.service.Schedule(c.Request.Context(), dispatchReq, req.SendAt); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, gin.H{
		"status":  "scheduled",
		"sendAt":  req.SendAt,
		"eventId": dispatchReq.EventID,
	})
}

// ListMessages handles GET /api/events/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.service.ListMessages(c.Request.Context(), c.Param("id"), middleware.RequesterID(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"messages": msgs})
}

// ProviderWebhook handles POST /api/webhooks/:provider
// Receives delivery status callbacks from SendGrid and Twilio and applies
// the sent-to-delivered transition.
func (h *Handler) ProviderWebhook(c *gin.Context) {
	switch c.Param("provider") {
	case "sendgrid":
		h.sendgridWebhook(c)
	case "twilio":
		h.twilioWebhook(c)
	default:
		common.Error(c, http.StatusNotFound, "unknown provider")
	}
}

// sendgridWebhook processes a SendGrid event batch. Only delivered events
// are applied; everything else is acknowledged and ignored.
func (h *Handler) sendgridWebhook(c *gin.Context) {
	var events []struct {
		Event     string `json:"event"`
		MessageID string `json:"sg_message_id"`
	}
	if err := c.ShouldBindJSON(&events); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid webhook payload: "+err.Error())
		return
	}

	processed := 0
	for _, ev := range events {
		if ev.Event != "delivered" || ev.MessageID == "" {
			continue
		}
		if err := h.service.ConfirmDelivery(c.Request.Context(), ev.MessageID); err != nil {
			slog.Error("webhook processing failed", "provider", "sendgrid", "external_id", ev.MessageID, "error", err)
			continue
		}
		processed++
	}

	common.Success(c, http.StatusOK, gin.H{"processed": processed})
}

// twilioWebhook processes a Twilio status callback (form-encoded).
func (h *Handler) twilioWebhook(c *gin.Context) {
	sid := c.PostForm("MessageSid")
	status := c.PostForm("MessageStatus")

	if status != "delivered" {
		common.Success(c, http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.service.ConfirmDelivery(c.Request.Context(), sid); err != nil {
		slog.Error("webhook processing failed", "provider", "twilio", "external_id", sid, "error", err)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"status": "processed"})
}

// RegisterRoutes registers messaging routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events/:id/invitations", h.SendInvitations)
	rg.POST("/events/:id/reminders", h.SendReminders)
	rg.POST("/events/:id/notify", h.Notify)
	rg.POST("/events/:id/schedule", h.Schedule)
	rg.GET("/events/:id/messages", h.ListMessages)
}

// RegisterWebhookRoutes registers the provider callback routes. These sit
// outside the API-key group: providers authenticate with their own
// signature schemes at the gateway.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/:provider", h.ProviderWebhook)
}
