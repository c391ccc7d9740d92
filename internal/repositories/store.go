package repositories

import "context"

// Store groups the repositories whose writes must commit or roll back together.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	// Transaction runs fn against a transactional view of the store. A non-nil error
	// from fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
