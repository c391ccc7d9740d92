package handlers

import (
	"fmt"
	"time"

	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentHandler receives gateway notifications.
type PaymentHandler struct {
	orders *services.OrderService
	logger *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(orders *services.OrderService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, logger: logger}
}

func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/payments/webhook", h.HandleWebhook)
}

// HandleWebhook verifies and applies a gateway notification. The raw body is passed on
// untouched since the signature covers its exact bytes.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	if err := h.orders.HandlePaymentEvent(c.UserContext(), payload, c.Get(payment.SignatureHeader)); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

// MockCheckoutHandler stands in for the hosted checkout page when payments run in mock
// mode. Completing or expiring a session emits a signed notification through the same
// path a real gateway would use.
type MockCheckoutHandler struct {
	orders *services.OrderService
	secret string
	logger *zap.Logger
}

// NewMockCheckoutHandler creates a new MockCheckoutHandler signing with secret.
func NewMockCheckoutHandler(orders *services.OrderService, secret string, logger *zap.Logger) *MockCheckoutHandler {
	return &MockCheckoutHandler{orders: orders, secret: secret, logger: logger}
}

func (h *MockCheckoutHandler) RegisterRoutes(router fiber.Router) {
	checkout := router.Group("/checkout")
	checkout.Get("/:session", h.HandleShow)
	checkout.Post("/:session/complete", h.emit(payment.EventSessionCompleted))
	checkout.Post("/:session/expire", h.emit(payment.EventSessionExpired))
}

func (h *MockCheckoutHandler) HandleShow(c *fiber.Ctx) error {
	session := c.Params("session")
	return c.JSON(fiber.Map{
		"session":  session,
		"complete": fmt.Sprintf("POST /checkout/%s/complete", session),
		"expire":   fmt.Sprintf("POST /checkout/%s/expire", session),
	})
}

func (h *MockCheckoutHandler) emit(t payment.EventType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := c.Params("session")
		body := payment.NewEventPayload("evt_mock_"+uuid.NewString(), t, session)
		signature := payment.Sign(body, h.secret, time.Now())
		if err := h.orders.HandlePaymentEvent(c.UserContext(), body, signature); err != nil {
			return respondError(c, h.logger, err)
		}
		h.logger.Info("mock checkout event emitted", zap.String("type", string(t)), zap.String("session", session))
		return c.JSON(fiber.Map{"message": "Event delivered", "type": t})
	}
}
