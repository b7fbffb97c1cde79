package location

import (
	"errors"
	"sync"

	"backend-trekhub/internal/shared/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// Provider supplies GPS fixes to subscribers. Implementations serialize
// their own dispatch; handlers never run concurrently for one provider.
type Provider interface {
	Subscribe(handler func(geo.Fix)) (Subscription, error)
}

type Subscription interface {
	Unsubscribe()
}

// PushProvider is fed by the API: every pushed fix is delivered, in order,
// to all current subscribers.
type PushProvider struct {
	mu       sync.Mutex
	dispatch sync.Mutex
	nextID   int
	handlers map[int]func(geo.Fix)
	denied   bool
	closed   bool
}

func NewPushProvider() *PushProvider {
	return &PushProvider{handlers: map[int]func(geo.Fix){}}
}

func (p *PushProvider) Subscribe(handler func(geo.Fix)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return nil, ErrPermissionDenied
	}
	if p.closed {
		return nil, ErrUnavailable
	}
	p.nextID++
	id := p.nextID
	p.handlers[id] = handler
	return &pushSubscription{provider: p, id: id}, nil
}

// Push delivers f to every subscriber and reports how many received it.
func (p *PushProvider) Push(f geo.Fix) int {
	p.dispatch.Lock()
	defer p.dispatch.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	handlers := make([]func(geo.Fix), 0, len(p.handlers))
	for id := 1; id <= p.nextID; id++ {
		if h, ok := p.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(f)
	}
	return len(handlers)
}

// Deny makes later subscriptions fail with ErrPermissionDenied.
func (p *PushProvider) Deny() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied = true
}

// Close drops all subscribers; later subscriptions fail with ErrUnavailable.
func (p *PushProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.handlers = map[int]func(geo.Fix){}
}

func (p *PushProvider) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

type pushSubscription struct {
	provider *PushProvider
	id       int
	once     sync.Once
}

func (s *pushSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		defer s.provider.mu.Unlock()
		delete(s.provider.handlers, s.id)
	})
}
