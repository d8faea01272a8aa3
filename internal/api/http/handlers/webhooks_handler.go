package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/service"
)

// WebhooksHandler accepts inbound webhook calls.
type WebhooksHandler struct {
	notifications *service.NotificationService
}

// NewWebhooksHandler constructs handler.
func NewWebhooksHandler(notifications *service.NotificationService) *WebhooksHandler {
	return &WebhooksHandler{notifications: notifications}
}

// Incoming handles POST /webhooks/incoming.
func (h *WebhooksHandler) Incoming(c *fiber.Ctx) error {
	h.notifications.ReceiveIncoming(c.UserContext(), c.Body())
	return c.JSON(fiber.Map{"received": true})
}
