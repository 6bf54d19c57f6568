package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"postqueue/internal/billing"
	"postqueue/internal/transfer"
)

type PaymentHandler struct {
	s billing.Service
}

func NewPaymentHandler(s billing.Service) *PaymentHandler {
	return &PaymentHandler{s: s}
}

// PaymentWebhook receives subscription lifecycle events from the payment
// provider. It is mounted outside the auth middleware; the provider is not
// a logged-in user.
func (h *PaymentHandler) PaymentWebhook(c *fiber.Ctx) error {
	var event transfer.SubscriptionEvent
	if err := c.BodyParser(&event); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse webhook payload",
		})
	}

	if err := h.s.HandleSubscription(c.Context(), &event); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process webhook",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}
