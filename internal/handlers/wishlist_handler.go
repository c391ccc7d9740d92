package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WishlistHandler handles HTTP requests for the caller's wishlist.
type WishlistHandler struct {
	service *services.WishlistService
	logger  *zap.Logger
}

// NewWishlistHandler creates a new WishlistHandler.
func NewWishlistHandler(service *services.WishlistService, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{service: service, logger: logger}
}

type wishlistRequest struct {
	ProductID  string   `json:"product_id"`
	ProductIDs []string `json:"product_ids"`
}

func (h *WishlistHandler) RegisterRoutes(router fiber.Router) {
	wl := router.Group("/wishlist")
	wl.Get("/", h.HandleGet)
	wl.Post("/", h.HandleAdd)
	wl.Put("/", h.HandleReplace)
	wl.Post("/toggle", h.HandleToggle)
	wl.Delete("/:productId", h.HandleRemove)
}

func (h *WishlistHandler) HandleGet(c *fiber.Ctx) error {
	items, err := h.service.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"wishlist": items})
}

func (h *WishlistHandler) HandleAdd(c *fiber.Ctx) error {
	var req wishlistRequest
	if err := c.BodyParser(&req); err != nil || req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "product_id is required"})
	}
	items, err := h.service.Add(c.UserContext(), middleware.UserID(c), req.ProductID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"wishlist": items})
}

func (h *WishlistHandler) HandleToggle(c *fiber.Ctx) error {
	var req wishlistRequest
	if err := c.BodyParser(&req); err != nil || req.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "product_id is required"})
	}
	added, items, err := h.service.Toggle(c.UserContext(), middleware.UserID(c), req.ProductID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"added": added, "wishlist": items})
}

func (h *WishlistHandler) HandleReplace(c *fiber.Ctx) error {
	var req wishlistRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	items, err := h.service.Replace(c.UserContext(), middleware.UserID(c), req.ProductIDs)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"wishlist": items})
}

func (h *WishlistHandler) HandleRemove(c *fiber.Ctx) error {
	items, err := h.service.Remove(c.UserContext(), middleware.UserID(c), c.Params("productId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"wishlist": items})
}
