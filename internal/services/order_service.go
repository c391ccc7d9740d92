package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/apperrors"
	"storefront/pkg/metrics"
	"storefront/pkg/payment"

	"go.uber.org/zap"
)

// OrderConfig holds the checkout settings of the store.
type OrderConfig struct {
	BaseURL        string        // storefront URL used for payment redirects
	Currency       string        // ISO currency code sent to the payment gateway
	ShippingAmount float64       // flat shipping fee added to every order
	SessionTTL     time.Duration // lifetime of a hosted payment session
}

// OrderService drives orders from checkout to delivery and keeps catalog stock
// consistent with them.
type OrderService struct {
	store   repositories.Store
	carts   *CartService
	gateway payment.Gateway
	events  *events.Publisher
	cfg     OrderConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(store repositories.Store, carts *CartService, gateway payment.Gateway,
	publisher *events.Publisher, cfg OrderConfig, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OrderService{
		store:   store,
		carts:   carts,
		gateway: gateway,
		events:  publisher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckoutRequest is the payload of a checkout.
type CheckoutRequest struct {
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required,oneof=cash credit"`
	PromoCode     string               `json:"promo_code"`
	Apartment     string               `json:"apartment"`
	Floor         string               `json:"floor"`
	Building      string               `json:"building"`
	Street        string               `json:"street" validate:"required"`
	Area          string               `json:"area"`
	City          string               `json:"city" validate:"required"`
	SecondPhone   string               `json:"second_phone"`
}

// CheckoutResult is the created order and where the client should go next.
type CheckoutResult struct {
	Order       *models.Order `json:"order"`
	RedirectURL string        `json:"redirect_url"`
}

// OrderDetails is an order together with the current catalog entries of its products.
type OrderDetails struct {
	Order    *models.Order    `json:"order"`
	Products []models.Product `json:"products"`
}

type cartLine struct {
	productID string
	qty       int
}

// CreateOrder turns the user's cart into a pending order. Stock for every line is
// reserved in the same transaction that writes the order, so either all lines are
// reserved and the order exists, or nothing changed.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, apperrors.Validation("No items in the cart")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	lines, err := mergeCart(cart)
	if err != nil {
		return nil, err
	}

	discount, _ := DiscountForCode(req.PromoCode)
	order := &models.Order{
		UserID:         userID,
		Discount:       discount,
		ShippingAmount: s.cfg.ShippingAmount,
		Status:         models.StatusPending,
		PaymentMethod:  req.PaymentMethod,
		Apartment:      req.Apartment,
		Floor:          req.Floor,
		Building:       req.Building,
		Street:         req.Street,
		Area:           req.Area,
		City:           req.City,
		SecondPhone:    req.SecondPhone,
	}

	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		order.Items = make([]models.OrderItem, 0, len(lines))
		priced := make([]PricedLine, 0, len(lines))
		for _, line := range lines {
			product, err := tx.Products().GetByID(ctx, line.productID)
			if err != nil {
				return fromRepo(err, "Product %s not found", line.productID)
			}
			if err := tx.Products().Reserve(ctx, product.ID, line.qty); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					metrics.ReservationFailures.Inc()
					return apperrors.Wrap(apperrors.KindConflict, err, "Product %s stock is not enough", product.Name)
				}
				return fromRepo(err, "Product %s not found", product.Name)
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  line.qty,
				Price:     product.Price,
			})
			priced = append(priced, PricedLine{Price: product.Price, Quantity: line.qty})
		}
		order.Total = OrderTotal(priced, discount, s.cfg.ShippingAmount)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fromRepo(err, "Could not create order")
		}
		return nil
	})
	if err != nil {
		s.logger.Info("checkout rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	metrics.OrdersTotal.WithLabelValues(string(models.StatusPending)).Inc()
	s.logger.Info("order created",
		zap.Uint("order_id", order.ID), zap.String("user_id", userID), zap.Float64("total", order.Total))

	redirect := s.orderURL(order.ID)
	if order.PaymentMethod == models.PaymentCredit {
		session, err := s.gateway.CreateSession(ctx, s.sessionRequest(order))
		if err != nil {
			s.logger.Error("payment session failed, releasing reservation",
				zap.Uint("order_id", order.ID), zap.Error(err))
			s.compensate(ctx, order, "payment session failed")
			return nil, apperrors.Wrap(apperrors.KindDependency, err,
				"Payment provider unavailable, order %d was cancelled", order.ID)
		}
		if err := s.store.Orders().SetPayment(ctx, order.ID, session.ID, session.URL); err != nil {
			s.logger.Error("could not link payment session to order",
				zap.Uint("order_id", order.ID), zap.String("payment_id", session.ID), zap.Error(err))
			s.compensate(ctx, order, "payment session could not be recorded")
			return nil, fromRepo(err, "Could not create order")
		}
		order.PaymentID = session.ID
		order.PaymentURL = session.URL
		redirect = session.URL
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logger.Warn("could not clear cart after checkout",
			zap.String("user_id", userID), zap.Uint("order_id", order.ID), zap.Error(err))
	}
	s.events.PublishOrder(ctx, events.OrderCreated, order, "")

	return &CheckoutResult{Order: order, RedirectURL: redirect}, nil
}

// mergeCart folds repeated lines of the same product and rejects non-positive quantities.
// Lines come back sorted by product id so concurrent checkouts lock catalog rows in the
// same order.
func mergeCart(cart []models.CartItem) ([]cartLine, error) {
	index := make(map[string]int, len(cart))
	lines := make([]cartLine, 0, len(cart))
	for _, item := range cart {
		if item.Qty <= 0 {
			return nil, apperrors.Validation("Invalid quantity for product %s", item.Name)
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].qty += item.Qty
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, cartLine{productID: item.ProductID, qty: item.Qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].productID < lines[j].productID })
	return lines, nil
}

func (s *OrderService) sessionRequest(order *models.Order) payment.SessionRequest {
	items := make([]payment.LineItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		items = append(items, payment.LineItem{
			Name:       item.Name,
			UnitAmount: UnitAmount(item.Price, order.Discount),
			Quantity:   int64(item.Quantity),
		})
	}
	if order.ShippingAmount > 0 {
		items = append(items, payment.LineItem{
			Name:       "Shipping",
			UnitAmount: UnitAmount(order.ShippingAmount, 0),
			Quantity:   1,
		})
	}
	return payment.SessionRequest{
		Reference:  fmt.Sprintf("%d", order.ID),
		Currency:   s.cfg.Currency,
		LineItems:  items,
		SuccessURL: s.orderURL(order.ID),
		CancelURL:  s.cfg.BaseURL + "/orders",
		ExpiresAt:  s.now().Add(s.cfg.SessionTTL),
	}
}

func (s *OrderService) orderURL(id uint) string {
	return fmt.Sprintf("%s/orders/%d", s.cfg.BaseURL, id)
}

// compensate cancels a freshly created order whose payment could not be set up and
// returns its stock. It runs on a context detached from the request.
func (s *OrderService) compensate(ctx context.Context, order *models.Order, reason string) {
	if _, err := s.cancelAndRestock(context.WithoutCancel(ctx), order, reason); err != nil {
		s.logger.Error("compensation failed, reserved stock is stranded",
			zap.Uint("order_id", order.ID), zap.Error(err))
	}
}

// GetOrder returns an order of userID with the catalog entries of its products.
func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID uint) (*OrderDetails, error) {
	order, err := s.ownedOrder(ctx, userID, orderID, "You are not authorized to view this order")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fromRepo(err, "Could not load products")
	}
	return &OrderDetails{Order: order, Products: products}, nil
}

// ListUserOrders returns the orders of userID, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.store.Orders().GetByUser(ctx, userID)
	if err != nil {
		return nil, fromRepo(err, "Could not retrieve orders")
	}
	return orders, nil
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.Orders().GetAll(ctx)
	if err != nil {
		return nil, fromRepo(err, "Could not retrieve orders")
	}
	return orders, nil
}

func (s *OrderService) CountOrders(ctx context.Context) (int64, error) {
	n, err := s.store.Orders().Count(ctx)
	if err != nil {
		return 0, fromRepo(err, "Could not count orders")
	}
	return n, nil
}

// DeleteOrder removes an order record. Stock is not touched.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uint) error {
	if err := s.store.Orders().Delete(ctx, orderID); err != nil {
		return fromRepo(err, "Order not found")
	}
	s.logger.Info("order deleted", zap.Uint("order_id", orderID))
	return nil
}

// CheckPromoCode returns the discount of code, rejecting unknown codes.
func (s *OrderService) CheckPromoCode(code string) (float64, error) {
	discount, ok := DiscountForCode(code)
	if !ok {
		return 0, apperrors.Validation("Invalid Promo Code")
	}
	return discount, nil
}

func (s *OrderService) ownedOrder(ctx context.Context, userID string, orderID uint, denied string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fromRepo(err, "Order not found")
	}
	if order.UserID != userID {
		return nil, apperrors.Unauthorized("%s", denied)
	}
	return order, nil
}
