package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock schedules cancellable callbacks. Services take a Clock so tests can
// drive timers without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop reports whether the call prevented the callback from running.
	Stop() bool
}

type libClock struct{ c bclock.Clock }

// Real returns a Clock backed by the system time.
func Real() Clock { return libClock{c: bclock.New()} }

func (l libClock) Now() time.Time { return l.c.Now() }

func (l libClock) AfterFunc(d time.Duration, f func()) Timer { return l.c.AfterFunc(d, f) }

// Fake is a manually advanced Clock over a mock clock. Advance walks the
// scheduled deadlines in order and returns only after every callback due
// by the target time has finished, including ones armed along the way.
type Fake struct {
	mock *bclock.Mock

	mu    sync.Mutex
	armed map[*fakeTimer]struct{}
}

type fakeTimer struct {
	fake     *Fake
	timer    *bclock.Timer
	deadline time.Time
	once     sync.Once
	finished chan struct{}
}

func NewFake(start time.Time) *Fake {
	m := bclock.NewMock()
	m.Set(start)
	return &Fake{mock: m, armed: map[*fakeTimer]struct{}{}}
}

func (f *Fake) Now() time.Time { return f.mock.Now() }

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{fake: f, deadline: f.mock.Now().Add(d), finished: make(chan struct{})}
	f.mu.Lock()
	f.armed[t] = struct{}{}
	f.mu.Unlock()
	t.timer = f.mock.AfterFunc(d, func() {
		defer t.finish()
		f.forget(t)
		fn()
	})
	return t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	target := f.mock.Now().Add(d)
	for {
		deadline, due := f.nextDue(target)
		if len(due) == 0 {
			break
		}
		if now := f.mock.Now(); deadline.Before(now) {
			deadline = now
		}
		f.mock.Set(deadline)
		for _, t := range due {
			<-t.finished
		}
	}
	f.mock.Set(target)
}

// Pending returns the number of scheduled callbacks that have neither fired
// nor been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

func (f *Fake) nextDue(target time.Time) (time.Time, []*fakeTimer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deadline time.Time
	var due []*fakeTimer
	for t := range f.armed {
		switch {
		case t.deadline.After(target):
		case len(due) == 0 || t.deadline.Before(deadline):
			deadline, due = t.deadline, []*fakeTimer{t}
		case t.deadline.Equal(deadline):
			due = append(due, t)
		}
	}
	return deadline, due
}

func (f *Fake) forget(t *fakeTimer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, t)
}

func (t *fakeTimer) finish() { t.once.Do(func() { close(t.finished) }) }

func (t *fakeTimer) Stop() bool {
	if !t.timer.Stop() {
		return false
	}
	t.fake.forget(t)
	t.finish()
	return true
}
