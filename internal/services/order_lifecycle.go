package services

import (
	"context"
	"errors"

	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/apperrors"
	"storefront/pkg/metrics"
	"storefront/pkg/payment"

	"go.uber.org/zap"
)

// HandlePaymentEvent authenticates a gateway notification and applies it. Replays are
// harmless: every status change is conditional on the order still being pending.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			s.logger.Warn("rejected payment notification", zap.Error(err))
			metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
			return apperrors.Wrap(apperrors.KindValidation, err, "Invalid signature")
		}
		s.logger.Warn("undecodable payment notification", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_payload").Inc()
		return apperrors.Wrap(apperrors.KindValidation, err, "Invalid payload")
	}

	log := s.logger.With(zap.String("event_id", ev.ID), zap.String("type", string(ev.Type)),
		zap.String("payment_id", ev.SessionID))

	var result string
	switch ev.Type {
	case payment.EventSessionCompleted:
		result, err = s.confirmPayment(ctx, ev.SessionID, log)
	case payment.EventSessionExpired:
		result, err = s.expirePayment(ctx, ev.SessionID, log)
	default:
		log.Debug("ignoring payment notification")
		result = "ignored"
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(ev.Type), "error").Inc()
		return err
	}
	metrics.WebhookEvents.WithLabelValues(string(ev.Type), result).Inc()
	return nil
}

// orderForPayment returns nil without error when no order carries paymentID.
func (s *OrderService) orderForPayment(ctx context.Context, paymentID string, log *zap.Logger) (*models.Order, error) {
	order, err := s.store.Orders().GetByPaymentID(ctx, paymentID)
	if errors.Is(err, repositories.ErrNotFound) {
		log.Warn("payment notification for unknown session")
		return nil, nil
	}
	if err != nil {
		return nil, fromRepo(err, "Could not load order")
	}
	return order, nil
}

func (s *OrderService) confirmPayment(ctx context.Context, paymentID string, log *zap.Logger) (string, error) {
	order, err := s.orderForPayment(ctx, paymentID, log)
	if err != nil || order == nil {
		return "unknown_session", err
	}
	moved, err := s.store.Orders().TransitionStatus(ctx, order.ID, models.StatusPending, models.StatusAccepted)
	if err != nil {
		return "", fromRepo(err, "Could not update order")
	}
	if !moved {
		current := order.Status
		if latest, err := s.store.Orders().GetByID(ctx, order.ID); err == nil {
			current = latest.Status
		}
		if current == models.StatusCancelled {
			log.Error("payment completed for a cancelled order, refund required",
				zap.Uint("order_id", order.ID), zap.String("status", string(current)))
			return "paid_after_cancel", nil
		}
		log.Info("payment already applied", zap.Uint("order_id", order.ID), zap.String("status", string(current)))
		return "duplicate", nil
	}
	order.Status = models.StatusAccepted
	metrics.OrdersTotal.WithLabelValues(string(models.StatusAccepted)).Inc()
	log.Info("order paid", zap.Uint("order_id", order.ID))
	s.events.PublishOrder(ctx, events.OrderAccepted, order, "")
	return "applied", nil
}

func (s *OrderService) expirePayment(ctx context.Context, paymentID string, log *zap.Logger) (string, error) {
	order, err := s.orderForPayment(ctx, paymentID, log)
	if err != nil || order == nil {
		return "unknown_session", err
	}
	moved, err := s.cancelAndRestock(ctx, order, "payment session expired")
	if err != nil {
		return "", err
	}
	if !moved {
		log.Info("expiry already applied", zap.Uint("order_id", order.ID), zap.String("status", string(order.Status)))
		return "duplicate", nil
	}
	log.Info("order expired", zap.Uint("order_id", order.ID))
	return "applied", nil
}

// CancelOrder cancels a pending order of userID and returns its stock.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uint) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, userID, orderID, "You are not authorized to cancel this order")
	if err != nil {
		return nil, err
	}
	if order.Status != models.StatusPending {
		return nil, apperrors.Conflict("Order can't be cancelled")
	}
	moved, err := s.cancelAndRestock(ctx, order, "cancelled by customer")
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, apperrors.Conflict("Order can't be cancelled")
	}
	return order, nil
}

// UpdateOrderStatus moves an order one step along the status graph. Cancelling through
// this path returns the stock like any other cancellation.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.Validation("Invalid order status: %s", status)
	}
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fromRepo(err, "Order not found")
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, apperrors.Conflict("Order can't move from %s to %s", order.Status, status)
	}

	if status == models.StatusCancelled {
		moved, err := s.cancelAndRestock(ctx, order, "cancelled by administrator")
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, apperrors.Conflict("Order status changed, please retry")
		}
		return order, nil
	}

	moved, err := s.store.Orders().TransitionStatus(ctx, order.ID, order.Status, status)
	if err != nil {
		return nil, fromRepo(err, "Could not update order")
	}
	if !moved {
		return nil, apperrors.Conflict("Order status changed, please retry")
	}
	from := order.Status
	order.Status = status
	metrics.OrdersTotal.WithLabelValues(string(status)).Inc()
	s.logger.Info("order status updated",
		zap.Uint("order_id", order.ID), zap.String("from", string(from)), zap.String("to", string(status)))

	evType := events.OrderStatus
	if status == models.StatusAccepted {
		evType = events.OrderAccepted
	}
	s.events.PublishOrder(ctx, evType, order, "")
	return order, nil
}

// cancelAndRestock moves order from pending to cancelled and returns every line to the
// catalog in one transaction. It reports false when the order had already left pending.
func (s *OrderService) cancelAndRestock(ctx context.Context, order *models.Order, reason string) (bool, error) {
	moved := false
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		ok, err := tx.Orders().TransitionStatus(ctx, order.ID, models.StatusPending, models.StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := restock(ctx, tx, order); err != nil {
			return err
		}
		moved = true
		return nil
	})
	if err != nil {
		return false, fromRepo(err, "Could not cancel order")
	}
	if !moved {
		return false, nil
	}

	order.Status = models.StatusCancelled
	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	metrics.OrdersTotal.WithLabelValues(string(models.StatusCancelled)).Inc()
	metrics.RestockedUnits.Add(float64(units))
	s.logger.Info("order cancelled",
		zap.Uint("order_id", order.ID), zap.String("reason", reason), zap.Int("restocked_units", units))
	s.events.PublishOrder(ctx, events.OrderCancelled, order, reason)
	s.events.PublishOrder(ctx, events.OrderRestocked, order, reason)
	return true, nil
}

// restock returns every line of order to the catalog inside tx. Any failure aborts tx.
func restock(ctx context.Context, tx repositories.Store, order *models.Order) error {
	for _, item := range order.Items {
		if err := tx.Products().Restock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
