package handlers

import (
	"fmt"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service *services.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the order routes. router must already require authentication.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/mine", h.HandleGetMyOrders)
	orderRoutes.Post("/discount", h.HandleCheckDiscount)

	admin := middleware.AdminOnly()
	orderRoutes.Get("/", admin, h.HandleGetOrders)
	orderRoutes.Get("/count", admin, h.HandleCountOrders)
	orderRoutes.Patch("/:id/status", admin, h.HandleUpdateOrderStatus)
	orderRoutes.Delete("/:id", admin, h.HandleDeleteOrder)

	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Post("/:id/reorder", h.HandleReorder)
}

// HandleCreateOrder checks out the caller's cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}

	result, err := h.service.CreateOrder(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "Order created successfully",
		"order":        result.Order,
		"redirect_url": result.RedirectURL,
	})
}

// HandleGetMyOrders lists the caller's orders.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListUserOrders(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

// HandleGetOrders retrieves all orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(orders)
}

func (h *OrderHandler) HandleCountOrders(c *fiber.Ctx) error {
	n, err := h.service.CountOrders(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// HandleGetOrderByID retrieves one of the caller's orders with its products.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	details, err := h.service.GetOrder(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(details)
}

func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	order, err := h.service.CancelOrder(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message": "Order cancelled successfully",
		"order":   order,
	})
}

func (h *OrderHandler) HandleReorder(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	result, err := h.service.Reorder(c.UserContext(), middleware.UserID(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Re-Order Done Successfully",
		"cart":     result.Cart,
		"products": result.Products,
		"errors":   result.Errors,
	})
}

func (h *OrderHandler) HandleCheckDiscount(c *fiber.Ctx) error {
	var req struct {
		PromoCode string `json:"promo_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	discount, err := h.service.CheckPromoCode(req.PromoCode)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"discount": discount})
}

// HandleUpdateOrderStatus moves an order to the next status.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	var updateData struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&updateData); err != nil {
		return invalidBody(c, err)
	}
	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), id, updateData.Status)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %d status updated successfully to %s", id, order.Status),
		"order":   order,
	})
}

func (h *OrderHandler) HandleDeleteOrder(c *fiber.Ctx) error {
	id, err := orderIDParam(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.service.DeleteOrder(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Order deleted successfully"})
}
