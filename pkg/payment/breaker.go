package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"storefront/pkg/metrics"
)

// ErrGatewayUnavailable is returned while the breaker is open.
var ErrGatewayUnavailable = errors.New("payment: gateway temporarily unavailable")

// BreakerGateway fails session creation fast once the provider keeps failing.
// Notifications are parsed locally and bypass the breaker.
type BreakerGateway struct {
	inner Gateway
	cb    *gobreaker.CircuitBreaker
	name  string
}

// NewBreakerGateway wraps inner with a circuit breaker named name.
func NewBreakerGateway(inner Gateway, name string, logger *zap.Logger) *BreakerGateway {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))
			logger.Warn("Circuit breaker state changed",
				zap.String("circuit", cbName),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return &BreakerGateway{inner: inner, cb: cb, name: name}
}

func (g *BreakerGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.CreateSession(ctx, req)
	})
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(g.name).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w (circuit %s: %v)", ErrGatewayUnavailable, g.name, err)
		}
		return nil, err
	}
	return res.(*Session), nil
}

func (g *BreakerGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	return g.inner.ParseEvent(payload, signature)
}

// State returns the breaker state name ("closed", "open", "half-open").
func (g *BreakerGateway) State() string {
	return g.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
