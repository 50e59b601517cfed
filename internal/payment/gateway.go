package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoGateway  = errors.New("no payment gateway configured for method")
	ErrNoRedirect = errors.New("payment gateway returned no redirect url")
)

// SessionRequest is everything a gateway needs to open a hosted payment page.
type SessionRequest struct {
	Payment   *Payment
	PlanName  string
	Customer  Customer
	Callbacks Callbacks
}

// Session is an opened hosted payment page.
type Session struct {
	RedirectURL string
	Reference   string
}

// Gateway is an external payment processor reached by redirect.
type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	Verify(ctx context.Context, p *Payment, cb Callback) (*Verification, error)
}

// Router picks the gateway registered for a payment method.
type Router struct {
	mu       sync.RWMutex
	gateways map[Method]Gateway
}

func NewRouter() *Router {
	return &Router{gateways: make(map[Method]Gateway)}
}

// Register binds gw to methods. Only gateway-channel methods are accepted.
func (r *Router) Register(gw Gateway, methods ...Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range methods {
		ch, err := m.Channel()
		if err != nil {
			return err
		}
		if ch != ChannelGateway {
			return fmt.Errorf("%s settles directly and cannot use gateway %s", m, gw.Name())
		}
		r.gateways[m] = gw
	}
	return nil
}

func (r *Router) For(m Method) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, ok := r.gateways[m]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoGateway, m)
	}
	return gw, nil
}

// Methods returns the methods that currently have a gateway.
func (r *Router) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Method, 0, len(r.gateways))
	for _, m := range Methods() {
		if _, ok := r.gateways[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
