package services

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/apperrors"
)

// CartService manages per-user carts on top of the catalog.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// Get returns the cart of userID; a missing cart is empty.
func (s *CartService) Get(ctx context.Context, userID string) ([]models.CartItem, error) {
	items, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependency, err, "Could not load cart")
	}
	return items, nil
}

// AddItem adds qty units of a product, merging with an existing line. The merged quantity
// may not exceed the current stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) ([]models.CartItem, error) {
	if qty <= 0 {
		return nil, apperrors.Validation("Quantity must be positive")
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fromRepo(err, "Product with ID %s not found", productID)
	}
	if product.Stock < 1 {
		return nil, apperrors.Conflict("Product %s is out of stock", product.Name)
	}

	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, productID)
	current := 0
	if idx >= 0 {
		current = items[idx].Qty
	}
	if current+qty > product.Stock {
		return nil, apperrors.Conflict("Only %d of %s left in stock", product.Stock, product.Name)
	}

	line := lineFor(product, current+qty)
	if idx >= 0 {
		items[idx] = line
	} else {
		items = append(items, line)
	}
	return items, s.save(ctx, userID, items)
}

// UpdateItem sets the quantity of an existing line. A quantity of zero or less removes it.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, qty int) ([]models.CartItem, error) {
	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, apperrors.NotFound("Product %s is not in the cart", productID)
	}
	if qty <= 0 {
		items = append(items[:idx], items[idx+1:]...)
		return items, s.save(ctx, userID, items)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fromRepo(err, "Product with ID %s not found", productID)
	}
	if qty > product.Stock {
		return nil, apperrors.Conflict("Only %d of %s left in stock", product.Stock, product.Name)
	}
	items[idx] = lineFor(product, qty)
	return items, s.save(ctx, userID, items)
}

// RemoveItem drops a line from the cart. Removing an absent product is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) ([]models.CartItem, error) {
	items, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if idx := indexOf(items, productID); idx >= 0 {
		items = append(items[:idx], items[idx+1:]...)
		if err := s.save(ctx, userID, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return apperrors.Wrap(apperrors.KindDependency, err, "Could not clear cart")
	}
	return nil
}

func (s *CartService) save(ctx context.Context, userID string, items []models.CartItem) error {
	if err := s.carts.Save(ctx, userID, items); err != nil {
		return apperrors.Wrap(apperrors.KindDependency, err, "Could not save cart")
	}
	return nil
}

func indexOf(items []models.CartItem, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func lineFor(p *models.Product, qty int) models.CartItem {
	return models.CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Qty:       qty,
		Image:     p.Image,
		Stock:     p.Stock,
	}
}
