package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for catalog data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetByIDs returns the products that exist among ids; missing ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error

	// Reserve decrements stock by qty only if at least qty units remain, as a single
	// atomic operation. It returns ErrInsufficientStock otherwise.
	Reserve(ctx context.Context, id string, qty int) error
	// Restock increments stock by qty. Soft-deleted products are restocked too.
	Restock(ctx context.Context, id string, qty int) error
}
