package services

import (
	"context"
	"fmt"

	"storefront/internal/models"
	"storefront/pkg/apperrors"

	"go.uber.org/zap"
)

// LineError explains why one line of a reorder could not be added in full.
type LineError struct {
	ProductID string `json:"product_id"`
	Message   string `json:"message"`
}

// ReorderResult is the cart after a reorder and the products involved.
type ReorderResult struct {
	Cart     []models.CartItem `json:"cart"`
	Products []models.Product  `json:"products"`
	Errors   []LineError       `json:"errors,omitempty"`
}

// Reorder copies the lines of a finished order into the user's cart. Each line is capped
// at what stock still allows on top of the quantity already in the cart; lines that cannot
// be added are reported while the rest proceed.
func (s *OrderService) Reorder(ctx context.Context, userID string, orderID uint) (*ReorderResult, error) {
	order, err := s.ownedOrder(ctx, userID, orderID, "You are not authorized to reorder this order")
	if err != nil {
		return nil, err
	}
	if !order.Status.Terminal() {
		return nil, apperrors.Conflict("Order is not delivered yet")
	}

	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fromRepo(err, "Could not load products")
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ReorderResult{Products: products}
	for _, item := range order.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			result.Errors = append(result.Errors, LineError{
				ProductID: item.ProductID,
				Message:   fmt.Sprintf("Product %s is no longer available", item.Name),
			})
			continue
		}

		room := product.Stock - cartQty(cart, product.ID)
		if room <= 0 {
			result.Errors = append(result.Errors, LineError{
				ProductID: product.ID,
				Message:   fmt.Sprintf("Product %s is out of stock", product.Name),
			})
			continue
		}
		qty := item.Quantity
		if qty > room {
			result.Errors = append(result.Errors, LineError{
				ProductID: product.ID,
				Message:   fmt.Sprintf("Only %d of %s could be added", room, product.Name),
			})
			qty = room
		}

		updated, err := s.carts.AddItem(ctx, userID, product.ID, qty)
		if err != nil {
			s.logger.Warn("reorder line failed",
				zap.Uint("order_id", order.ID), zap.String("product_id", product.ID), zap.Error(err))
			result.Errors = append(result.Errors, LineError{ProductID: product.ID, Message: apperrors.Message(err)})
			continue
		}
		cart = updated
	}
	result.Cart = cart
	return result, nil
}

func cartQty(cart []models.CartItem, productID string) int {
	if i := indexOf(cart, productID); i >= 0 {
		return cart[i].Qty
	}
	return 0
}
