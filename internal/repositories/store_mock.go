package repositories

import (
	"context"
	"sync"

	"storefront/internal/models"
)

// MockStore is an in-memory Store. Transactions are serialized and every write made
// through the transactional view is journaled so a failing callback is undone.
type MockStore struct {
	products *MockProductRepository
	orders   *MockOrderRepository
	txMu     sync.Mutex
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		products: NewMockProductRepository(),
		orders:   NewMockOrderRepository(),
	}
}

func (s *MockStore) Products() ProductRepository { return s.products }

func (s *MockStore) Orders() OrderRepository { return s.orders }

// ProductRepo exposes the concrete repository for seeding in tests.
func (s *MockStore) ProductRepo() *MockProductRepository { return s.products }

// OrderRepo exposes the concrete repository for inspection in tests.
func (s *MockStore) OrderRepo() *MockOrderRepository { return s.orders }

func (s *MockStore) Transaction(ctx context.Context, fn func(tx Store) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &mockTx{store: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(tx)
}

type mockTx struct {
	store   *MockStore
	journal []func()
}

func (t *mockTx) record(undo func()) { t.journal = append(t.journal, undo) }

func (t *mockTx) rollback() {
	for i := len(t.journal) - 1; i >= 0; i-- {
		t.journal[i]()
	}
	t.journal = nil
}

func (t *mockTx) Products() ProductRepository {
	return &journaledProducts{MockProductRepository: t.store.products, tx: t}
}

func (t *mockTx) Orders() OrderRepository {
	return &journaledOrders{MockOrderRepository: t.store.orders, tx: t}
}

func (t *mockTx) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

type journaledProducts struct {
	*MockProductRepository
	tx *mockTx
}

func (p *journaledProducts) Create(ctx context.Context, product *models.Product) error {
	if err := p.MockProductRepository.Create(ctx, product); err != nil {
		return err
	}
	id := product.ID
	p.tx.record(func() { p.MockProductRepository.remove(id) })
	return nil
}

func (p *journaledProducts) Update(ctx context.Context, product *models.Product) error {
	return p.withRestore(product.ID, func() error { return p.MockProductRepository.Update(ctx, product) })
}

func (p *journaledProducts) Delete(ctx context.Context, id string) error {
	return p.withRestore(id, func() error { return p.MockProductRepository.Delete(ctx, id) })
}

func (p *journaledProducts) Reserve(ctx context.Context, id string, qty int) error {
	if err := p.MockProductRepository.Reserve(ctx, id, qty); err != nil {
		return err
	}
	p.tx.record(func() { _ = p.MockProductRepository.adjust(id, qty) })
	return nil
}

func (p *journaledProducts) Restock(ctx context.Context, id string, qty int) error {
	if err := p.MockProductRepository.Restock(ctx, id, qty); err != nil {
		return err
	}
	p.tx.record(func() { _ = p.MockProductRepository.adjust(id, -qty) })
	return nil
}

func (p *journaledProducts) withRestore(id string, write func() error) error {
	prev, wasDeleted, existed := p.MockProductRepository.snapshot(id)
	if err := write(); err != nil {
		return err
	}
	if existed {
		p.tx.record(func() { p.MockProductRepository.restore(prev, wasDeleted) })
	}
	return nil
}

type journaledOrders struct {
	*MockOrderRepository
	tx *mockTx
}

func (o *journaledOrders) Create(ctx context.Context, order *models.Order) error {
	if err := o.MockOrderRepository.Create(ctx, order); err != nil {
		return err
	}
	id := order.ID
	o.tx.record(func() { o.MockOrderRepository.remove(id) })
	return nil
}

func (o *journaledOrders) TransitionStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	return o.withRestore(id, func() (bool, error) {
		return o.MockOrderRepository.TransitionStatus(ctx, id, from, to)
	})
}

func (o *journaledOrders) SetPayment(ctx context.Context, id uint, paymentID, paymentURL string) error {
	_, err := o.withRestore(id, func() (bool, error) {
		return true, o.MockOrderRepository.SetPayment(ctx, id, paymentID, paymentURL)
	})
	return err
}

func (o *journaledOrders) Delete(ctx context.Context, id uint) error {
	_, err := o.withRestore(id, func() (bool, error) {
		return true, o.MockOrderRepository.Delete(ctx, id)
	})
	return err
}

func (o *journaledOrders) withRestore(id uint, write func() (bool, error)) (bool, error) {
	prev, existed := o.MockOrderRepository.snapshot(id)
	changed, err := write()
	if err != nil || !changed {
		return changed, err
	}
	if existed {
		o.tx.record(func() { o.MockOrderRepository.put(prev) })
	}
	return true, nil
}
