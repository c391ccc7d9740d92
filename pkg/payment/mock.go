package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-process gateway for local development and tests. It hands out
// session ids without contacting a provider and verifies notifications with the same
// signature scheme as Stripe.
type MockGateway struct {
	baseURL       string
	webhookSecret string

	mu       sync.Mutex
	requests []SessionRequest
	failWith error
}

// NewMockGateway creates a mock gateway whose checkout URLs live under baseURL.
func NewMockGateway(baseURL, webhookSecret string) *MockGateway {
	return &MockGateway{
		baseURL:       strings.TrimRight(baseURL, "/"),
		webhookSecret: webhookSecret,
	}
}

// FailWith makes every following CreateSession call return err. Pass nil to recover.
func (g *MockGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

// Requests returns the session requests received so far.
func (g *MockGateway) Requests() []SessionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SessionRequest, len(g.requests))
	copy(out, g.requests)
	return out
}

func (g *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return nil, g.failWith
	}
	g.requests = append(g.requests, req)

	id := "cs_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Session{
		ID:  id,
		URL: fmt.Sprintf("%s/checkout/%s", g.baseURL, id),
	}, nil
}

func (g *MockGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	return parseSignedEvent(payload, signature, g.webhookSecret)
}
