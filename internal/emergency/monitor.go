package emergency

import (
	"context"
	"errors"
	"sync"
	"time"

	"backend-trekhub/internal/clock"
	"backend-trekhub/internal/location"
	"backend-trekhub/internal/shared/geo"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotMonitoring = errors.New("emergency monitoring is not active")
	ErrAlertPending  = errors.New("an emergency alert is already counting down")
)

type Config struct {
	NoMovementWindow   time.Duration
	MovementThresholdM float64
	LowBatteryPercent  int
	FallThreshold      float64
	MotionHistorySize  int
	Countdown          time.Duration
	OffTrailDistanceM  float64
	CheckInInterval    time.Duration
	NotifyTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		NoMovementWindow:   30 * time.Minute,
		MovementThresholdM: 5,
		LowBatteryPercent:  20,
		FallThreshold:      20,
		MotionHistorySize:  100,
		Countdown:          30 * time.Second,
		OffTrailDistanceM:  500,
		CheckInInterval:    time.Hour,
		NotifyTimeout:      10 * time.Second,
	}
}

type Option func(*Monitor)

func WithConfig(cfg Config) Option { return func(m *Monitor) { m.cfg = cfg } }
func WithClock(c clock.Clock) Option { return func(m *Monitor) { m.clock = c } }
func WithLogger(l *logrus.Entry) Option { return func(m *Monitor) { m.log = l } }
func WithNotifier(n Notifier) Option { return func(m *Monitor) { m.notifier = n } }
func WithSink(s EventSink) Option { return func(m *Monitor) { m.sink = s } }
func WithBattery(src BatterySource) Option { return func(m *Monitor) { m.battery = src } }
func WithMotion(src MotionSource) Option { return func(m *Monitor) { m.motion = src } }

// WithLocation makes the monitor a second read-only consumer of the
// provider feeding the recorder.
func WithLocation(p location.Provider) Option { return func(m *Monitor) { m.provider = p } }

// Monitor watches one hiking session for anomalies. It is inert until
// Sync reports an active hike with at least one emergency contact.
type Monitor struct {
	sessionID string
	cfg       Config
	clock     clock.Clock
	log       *logrus.Entry
	notifier  Notifier
	sink      EventSink
	battery   BatterySource
	motion    MotionSource
	provider  location.Provider

	lifecycle sync.Mutex

	mu             sync.Mutex
	state          State
	contacts       []Contact
	route          []geo.Fix
	lastFix        *geo.Fix
	current        *geo.Fix
	history        []Acceleration
	batteryLatched bool
	subs           []location.Subscription

	noMovement timerSlot
	checkIn    timerSlot
	countdown  timerSlot
}

type timerSlot struct {
	seq   uint64
	timer clock.Timer
}

func (s *timerSlot) disarm() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func NewMonitor(sessionID string, opts ...Option) *Monitor {
	m := &Monitor{
		sessionID: sessionID,
		cfg:       DefaultConfig(),
		clock:     clock.Real(),
		state:     State{BatteryPercent: 100},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.WithField("session_id", sessionID)
	}
	return m
}

// Sync activates monitoring when hiking with contacts configured and tears
// it down otherwise.
func (m *Monitor) Sync(isHiking bool, contacts []Contact) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	m.contacts = append([]Contact(nil), contacts...)
	active := m.state.Monitoring
	m.mu.Unlock()

	want := isHiking && len(contacts) > 0
	switch {
	case want && !active:
		m.start()
	case !want && active:
		m.stop()
	}
}

// Stop cancels every timer and detaches all device listeners.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	active := m.state.Monitoring
	m.mu.Unlock()
	if active {
		m.stop()
	}
}

func (m *Monitor) start() {
	subs := m.attach()

	m.mu.Lock()
	now := m.clock.Now()
	battery := m.state.BatteryPercent
	m.state = State{
		Monitoring:     true,
		LastMovement:   now,
		LastCheckIn:    now,
		BatteryPercent: battery,
	}
	m.lastFix = nil
	m.history = nil
	m.batteryLatched = false
	m.subs = subs
	m.arm(&m.noMovement, m.cfg.NoMovementWindow, m.noMovementFired)
	m.arm(&m.checkIn, m.cfg.CheckInInterval, m.checkInFired)
	// a level reported before monitoring began is judged now
	var events []Event
	if battery <= m.cfg.LowBatteryPercent {
		m.batteryLatched = true
		events = m.raiseLocked(AlertLowBattery)
	}
	m.mu.Unlock()

	m.log.WithField("listeners", len(subs)).Info("emergency monitoring started")
	m.emit(events)
}

// attach subscribes to whichever device sources exist. A missing or failing
// source only removes the alerts it feeds.
func (m *Monitor) attach() []location.Subscription {
	var subs []location.Subscription
	if m.provider != nil {
		if sub, err := m.provider.Subscribe(m.OnLocation); err != nil {
			m.log.WithError(err).Warn("location unavailable for emergency monitoring")
		} else {
			subs = append(subs, sub)
		}
	}
	if m.battery != nil {
		if sub, err := m.battery.SubscribeBattery(m.OnBattery); err != nil {
			m.log.WithError(err).Warn("battery status unavailable")
		} else {
			subs = append(subs, sub)
		}
	}
	if m.motion != nil {
		if sub, err := m.motion.SubscribeMotion(m.OnMotion); err != nil {
			m.log.WithError(err).Warn("device motion unavailable")
		} else {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (m *Monitor) stop() {
	m.mu.Lock()
	m.noMovement.disarm()
	m.checkIn.disarm()
	m.countdown.disarm()
	subs := m.subs
	m.subs = nil
	m.state = State{BatteryPercent: m.state.BatteryPercent}
	m.lastFix = nil
	m.current = nil
	m.history = nil
	m.batteryLatched = false
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	m.log.Info("emergency monitoring stopped")
}

// arm schedules fire on slot, replacing whatever the slot held. fire runs
// with m.mu held and returns work to run after the lock is released.
func (m *Monitor) arm(slot *timerSlot, d time.Duration, fire func() func()) {
	slot.disarm()
	seq := slot.seq
	slot.timer = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		if slot.seq != seq || !m.state.Monitoring {
			m.mu.Unlock()
			return
		}
		slot.timer = nil
		after := fire()
		m.mu.Unlock()
		if after != nil {
			after()
		}
	})
}

func (m *Monitor) noMovementFired() func() {
	m.log.WithField("window", m.cfg.NoMovementWindow).Warn("no movement detected")
	return m.emitAfter(m.raiseLocked(AlertNoMovement))
}

func (m *Monitor) checkInFired() func() {
	now := m.clock.Now()
	m.state.LastCheckIn = now
	m.arm(&m.checkIn, m.cfg.CheckInInterval, m.checkInFired)
	ev := m.eventLocked(EventCheckIn, "")
	ev.Contacts = append([]Contact(nil), m.contacts...)
	return m.emitAfter([]Event{ev})
}

// OnLocation feeds the movement and off-trail checks.
func (m *Monitor) OnLocation(f geo.Fix) {
	m.mu.Lock()
	if !m.state.Monitoring {
		m.mu.Unlock()
		return
	}
	fix := f
	m.current = &fix
	if m.lastFix != nil && geo.Distance(*m.lastFix, f) > m.cfg.MovementThresholdM {
		m.state.LastMovement = m.clock.Now()
		m.state.NoMovementDetected = false
		m.arm(&m.noMovement, m.cfg.NoMovementWindow, m.noMovementFired)
	}
	m.lastFix = &fix

	var events []Event
	if len(m.route) > 0 && !m.state.OffTrailDetected &&
		geo.DistanceToPath(f, m.route) > m.cfg.OffTrailDistanceM {
		events = m.raiseLocked(AlertOffTrail)
	}
	m.mu.Unlock()
	m.emit(events)
}

// OnBattery raises low_battery once per dip below the threshold.
func (m *Monitor) OnBattery(percent int) {
	m.mu.Lock()
	m.state.BatteryPercent = percent
	if !m.state.Monitoring {
		m.mu.Unlock()
		return
	}
	var events []Event
	if percent > m.cfg.LowBatteryPercent {
		m.batteryLatched = false
	} else if !m.batteryLatched && !m.state.EmergencyTriggered {
		m.batteryLatched = true
		events = m.raiseLocked(AlertLowBattery)
	}
	m.mu.Unlock()
	m.emit(events)
}

func (m *Monitor) OnMotion(a Acceleration) {
	m.mu.Lock()
	if !m.state.Monitoring {
		m.mu.Unlock()
		return
	}
	m.history = append(m.history, a)
	if limit := m.cfg.MotionHistorySize; limit > 0 && len(m.history) > limit {
		m.history = append(m.history[:0], m.history[len(m.history)-limit:]...)
	}
	var events []Event
	if a.Magnitude() > m.cfg.FallThreshold && !m.state.FallDetected {
		events = m.raiseLocked(AlertFall)
	}
	m.mu.Unlock()
	m.emit(events)
}

// SetRoute sets the planned path used for off-trail detection.
func (m *Monitor) SetRoute(route []geo.Fix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = append([]geo.Fix(nil), route...)
}

func (m *Monitor) TriggerManual() error {
	m.mu.Lock()
	if !m.state.Monitoring {
		m.mu.Unlock()
		return ErrNotMonitoring
	}
	if m.state.PendingAlert != "" {
		m.mu.Unlock()
		return ErrAlertPending
	}
	events := m.raiseLocked(AlertManual)
	m.mu.Unlock()
	m.emit(events)
	return nil
}

// Cancel is the hiker's "I'm OK". It aborts a pending countdown and clears
// the anomaly flags. It reports whether there was anything to cancel.
func (m *Monitor) Cancel() bool {
	m.mu.Lock()
	if !m.state.EmergencyTriggered && m.state.PendingAlert == "" {
		m.mu.Unlock()
		return false
	}
	pending := m.state.PendingAlert
	m.countdown.disarm()
	m.state.EmergencyTriggered = false
	m.state.FallDetected = false
	m.state.NoMovementDetected = false
	m.state.OffTrailDetected = false
	m.state.PendingAlert = ""
	m.state.CountdownEndsAt = time.Time{}
	if m.state.Monitoring {
		m.state.LastMovement = m.clock.Now()
		m.arm(&m.noMovement, m.cfg.NoMovementWindow, m.noMovementFired)
	}
	ev := m.eventLocked(EventAlertCancelled, pending)
	m.mu.Unlock()

	m.log.WithField("alert_type", pending).Info("emergency alert cancelled")
	m.emit([]Event{ev})
	return true
}

// raiseLocked starts the countdown for alert. While one countdown is
// pending further alerts are dropped.
func (m *Monitor) raiseLocked(alert AlertType) []Event {
	if m.state.PendingAlert != "" {
		m.log.WithFields(logrus.Fields{
			"alert_type": alert,
			"pending":    m.state.PendingAlert,
		}).Debug("alert suppressed while countdown pending")
		return nil
	}
	switch alert {
	case AlertFall:
		m.state.FallDetected = true
	case AlertNoMovement:
		m.state.NoMovementDetected = true
	case AlertOffTrail:
		m.state.OffTrailDetected = true
	}
	m.state.EmergencyTriggered = true
	m.state.AlertsSent++
	m.state.PendingAlert = alert
	m.state.CountdownEndsAt = m.clock.Now().Add(m.cfg.Countdown)
	m.arm(&m.countdown, m.cfg.Countdown, m.countdownExpired)

	m.log.WithField("alert_type", alert).Warn("emergency alert raised")
	ev := m.eventLocked(EventAlertRaised, alert)
	ev.Message = Message(alert, m.current, m.state.BatteryPercent)
	return []Event{ev}
}

func (m *Monitor) countdownExpired() func() {
	alert := m.state.PendingAlert
	m.state.PendingAlert = ""
	m.state.CountdownEndsAt = time.Time{}

	n := Notification{
		SessionID: m.sessionID,
		Alert:     alert,
		Message:   Message(alert, m.current, m.state.BatteryPercent),
		Contacts:  append([]Contact(nil), m.contacts...),
		Location:  copyFix(m.current),
		SentAt:    m.clock.Now(),
	}
	notifier := m.notifier
	timeout := m.cfg.NotifyTimeout

	return func() {
		ev := Event{
			Kind:      EventAlertSent,
			SessionID: n.SessionID,
			Alert:     n.Alert,
			Message:   n.Message,
			Contacts:  n.Contacts,
			Location:  n.Location,
			At:        n.SentAt,
		}
		if notifier != nil {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			err := notifier.Notify(ctx, n)
			cancel()
			if err != nil {
				ev.Kind = EventAlertFailed
				ev.Error = err.Error()
				m.log.WithError(err).WithField("alert_type", alert).Error("emergency notification failed")
			}
		}
		if ev.Kind == EventAlertSent {
			m.log.WithFields(logrus.Fields{
				"alert_type": alert,
				"contacts":   len(n.Contacts),
			}).Warn("emergency notification sent")
		}
		m.emit([]Event{ev})
	}
}

func (m *Monitor) eventLocked(kind EventKind, alert AlertType) Event {
	return Event{
		Kind:      kind,
		SessionID: m.sessionID,
		Alert:     alert,
		Location:  copyFix(m.current),
		At:        m.clock.Now(),
	}
}

func (m *Monitor) emitAfter(events []Event) func() {
	if len(events) == 0 {
		return nil
	}
	return func() { m.emit(events) }
}

func (m *Monitor) emit(events []Event) {
	if m.sink == nil {
		return
	}
	for _, ev := range events {
		m.sink(ev)
	}
}

// State returns a copy of the monitor flags.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) Contacts() []Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Contact(nil), m.contacts...)
}

// MotionHistory returns the retained acceleration samples, oldest first.
func (m *Monitor) MotionHistory() []Acceleration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Acceleration(nil), m.history...)
}

func copyFix(f *geo.Fix) *geo.Fix {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
