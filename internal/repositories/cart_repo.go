package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository stores one cart per user. A user without a cart reads as empty.
type CartRepository interface {
	Get(ctx context.Context, userID string) ([]models.CartItem, error)
	Save(ctx context.Context, userID string, items []models.CartItem) error
	Clear(ctx context.Context, userID string) error
}
