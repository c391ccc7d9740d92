package services

import (
	"context"
	"errors"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// WishlistService manages the favorite products of a user.
type WishlistService struct {
	repo     repositories.WishlistRepository
	products repositories.ProductRepository
}

// NewWishlistService creates a new WishlistService.
func NewWishlistService(repo repositories.WishlistRepository, products repositories.ProductRepository) *WishlistService {
	return &WishlistService{repo: repo, products: products}
}

func (s *WishlistService) Get(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fromRepo(err, "Could not load wishlist")
	}
	return items, nil
}

// Add puts a product on the wishlist. Adding it twice is harmless.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) ([]models.WishlistItem, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fromRepo(err, "Product with ID %s not found", productID)
	}
	item := wishlistItemFor(userID, product)
	if err := s.repo.Add(ctx, &item); err != nil {
		return nil, fromRepo(err, "Could not update wishlist")
	}
	return s.Get(ctx, userID)
}

// Toggle adds the product if absent and removes it otherwise. It reports whether the
// product is on the list afterwards.
func (s *WishlistService) Toggle(ctx context.Context, userID, productID string) (bool, []models.WishlistItem, error) {
	_, err := s.repo.Find(ctx, userID, productID)
	switch {
	case err == nil:
		items, err := s.Remove(ctx, userID, productID)
		return false, items, err
	case errors.Is(err, repositories.ErrNotFound):
		items, err := s.Add(ctx, userID, productID)
		return err == nil, items, err
	default:
		return false, nil, fromRepo(err, "Could not load wishlist")
	}
}

func (s *WishlistService) Remove(ctx context.Context, userID, productID string) ([]models.WishlistItem, error) {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		return nil, fromRepo(err, "Product %s is not in the wishlist", productID)
	}
	return s.Get(ctx, userID)
}

// Replace sets the whole list to productIDs. Unknown and repeated ids are dropped.
func (s *WishlistService) Replace(ctx context.Context, userID string, productIDs []string) ([]models.WishlistItem, error) {
	seen := make(map[string]bool, len(productIDs))
	unique := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	products, err := s.products.GetByIDs(ctx, unique)
	if err != nil {
		return nil, fromRepo(err, "Could not load products")
	}
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	items := make([]models.WishlistItem, 0, len(products))
	for _, id := range unique {
		if p, ok := byID[id]; ok {
			items = append(items, wishlistItemFor(userID, p))
		}
	}
	if err := s.repo.Replace(ctx, userID, items); err != nil {
		return nil, fromRepo(err, "Could not update wishlist")
	}
	return s.Get(ctx, userID)
}

func wishlistItemFor(userID string, p *models.Product) models.WishlistItem {
	return models.WishlistItem{
		UserID:    userID,
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Stock:     p.Stock,
	}
}
