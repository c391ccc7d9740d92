package repositories

import (
	"context"

	"storefront/internal/models"
)

// WishlistRepository defines the interface for wishlist data access.
type WishlistRepository interface {
	List(ctx context.Context, userID string) ([]models.WishlistItem, error)
	Find(ctx context.Context, userID, productID string) (*models.WishlistItem, error)
	// Add stores the item; adding a product already on the list is a no-op.
	Add(ctx context.Context, item *models.WishlistItem) error
	Remove(ctx context.Context, userID, productID string) error
	// Replace swaps the whole list of userID for items.
	Replace(ctx context.Context, userID string, items []models.WishlistItem) error
}
