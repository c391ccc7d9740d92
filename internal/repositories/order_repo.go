package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]models.Order, error)
	// Create persists the order with its items and assigns the next id from the datastore sequence.
	Create(ctx context.Context, order *models.Order) error
	// TransitionStatus moves the order from one status to another only if it is still in from.
	// It reports whether the update happened.
	TransitionStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error)
	SetPayment(ctx context.Context, id uint, paymentID, paymentURL string) error
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}
