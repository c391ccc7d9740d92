package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockProductRepository is an in-memory implementation of ProductRepository.
type MockProductRepository struct {
	products map[string]models.Product
	deleted  map[string]bool
	mu       sync.RWMutex
}

// NewMockProductRepository creates a new instance of MockProductRepository.
func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		products: make(map[string]models.Product),
		deleted:  make(map[string]bool),
	}
}

// GetAll returns all live products ordered by name.
func (r *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.products))
	for id, p := range r.products {
		if !r.deleted[id] {
			productList = append(productList, p)
		}
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].Name < productList[j].Name })
	return productList, nil
}

// GetByID returns a product by its ID.
func (r *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok || r.deleted[id] {
		return nil, fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

func (r *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok && !r.deleted[id] {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create adds a new product.
func (r *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, ok := r.products[product.ID]; ok {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrDuplicate)
	}
	now := time.Now()
	product.CreatedAt, product.UpdatedAt = now, now
	r.products[product.ID] = *product
	return nil
}

// Update modifies an existing product.
func (r *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[product.ID]
	if !ok || r.deleted[product.ID] {
		return fmt.Errorf("product with ID %s: %w", product.ID, ErrNotFound)
	}
	current.Name = product.Name
	current.Description = product.Description
	current.Image = product.Image
	current.Price = product.Price
	current.Stock = product.Stock
	current.UpdatedAt = time.Now()
	r.products[product.ID] = current
	return nil
}

// Delete hides a product from reads while keeping it restockable.
func (r *MockProductRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok || r.deleted[id] {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	r.deleted[id] = true
	return nil
}

func (r *MockProductRepository) Reserve(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid reservation quantity %d for product %s", qty, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok || r.deleted[id] {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	if product.Stock < qty {
		return fmt.Errorf("product with ID %s: %w", id, ErrInsufficientStock)
	}
	product.Stock -= qty
	r.products[id] = product
	return nil
}

func (r *MockProductRepository) Restock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid restock quantity %d for product %s", qty, id)
	}
	return r.adjust(id, qty)
}

func (r *MockProductRepository) adjust(id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product with ID %s: %w", id, ErrNotFound)
	}
	product.Stock += delta
	r.products[id] = product
	return nil
}

// restore puts back a previous version of a product, used to undo writes.
func (r *MockProductRepository) restore(prev models.Product, wasDeleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[prev.ID] = prev
	r.deleted[prev.ID] = wasDeleted
}

func (r *MockProductRepository) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, id)
	delete(r.deleted, id)
}

func (r *MockProductRepository) snapshot(id string) (models.Product, bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	return p, r.deleted[id], ok
}
