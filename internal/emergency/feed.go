package emergency

import (
	"sync"

	"backend-trekhub/internal/location"
)

type BatterySource interface {
	SubscribeBattery(func(percent int)) (location.Subscription, error)
}

type MotionSource interface {
	SubscribeMotion(func(Acceleration)) (location.Subscription, error)
}

// DeviceFeed relays battery and motion readings pushed by the API to
// whoever is subscribed. Readings pushed with no subscriber are dropped.
type DeviceFeed struct {
	battery broadcaster[int]
	motion  broadcaster[Acceleration]
}

func NewDeviceFeed() *DeviceFeed { return &DeviceFeed{} }

func (f *DeviceFeed) SubscribeBattery(fn func(int)) (location.Subscription, error) {
	return f.battery.subscribe(fn), nil
}

func (f *DeviceFeed) SubscribeMotion(fn func(Acceleration)) (location.Subscription, error) {
	return f.motion.subscribe(fn), nil
}

// PushBattery reports how many listeners received the reading.
func (f *DeviceFeed) PushBattery(percent int) int { return f.battery.push(percent) }

func (f *DeviceFeed) PushMotion(a Acceleration) int { return f.motion.push(a) }

func (f *DeviceFeed) Listeners() int {
	return f.battery.len() + f.motion.len()
}

type broadcaster[T any] struct {
	mu       sync.Mutex
	dispatch sync.Mutex
	nextID   int
	handlers map[int]func(T)
}

func (b *broadcaster[T]) subscribe(fn func(T)) location.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = map[int]func(T){}
	}
	b.nextID++
	id := b.nextID
	b.handlers[id] = fn
	return &feedSubscription{cancel: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}}
}

func (b *broadcaster[T]) push(v T) int {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.Lock()
	handlers := make([]func(T), 0, len(b.handlers))
	for id := 1; id <= b.nextID; id++ {
		if h, ok := b.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
	return len(handlers)
}

func (b *broadcaster[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

type feedSubscription struct {
	once   sync.Once
	cancel func()
}

func (s *feedSubscription) Unsubscribe() { s.once.Do(s.cancel) }
