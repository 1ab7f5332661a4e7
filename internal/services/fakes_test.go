package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/stripe/stripe-go/v74"
)

// fakeGateway records calls and serves subscriptions from memory.
type fakeGateway struct {
	mu            sync.Mutex
	customers     int
	checkouts     []CheckoutSessionInput
	portals       []string
	subscriptions map[string]*stripe.Subscription
	cancelCalls   map[string]bool
	err           error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		subscriptions: make(map[string]*stripe.Subscription),
		cancelCalls:   make(map[string]bool),
	}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _, _ string, _ map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.customers++
	return fmt.Sprintf("cus_%d", g.customers), nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, input CheckoutSessionInput) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.checkouts = append(g.checkouts, input)
	id := fmt.Sprintf("cs_test_%d", len(g.checkouts))
	return &CheckoutSession{SessionID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.portals = append(g.portals, customerID)
	return "https://billing.stripe.test/" + customerID, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	return sub, nil
}

func (g *fakeGateway) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*stripe.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls[id] = cancel
	sub, ok := g.subscriptions[id]
	if !ok {
		sub = &stripe.Subscription{ID: id}
	}
	sub.CancelAtPeriodEnd = cancel
	return sub, nil
}
