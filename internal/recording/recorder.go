package recording

import (
	"strings"
	"sync"
	"time"

	"backend-trekhub/internal/clock"
	"backend-trekhub/internal/location"
	"backend-trekhub/internal/shared/geo"

	"github.com/sirupsen/logrus"
)

type Config struct {
	// MaxAccuracyM drops fixes whose reported horizontal accuracy is worse
	// than this many metres. Zero accepts any accuracy.
	MaxAccuracyM float64
}

func DefaultConfig() Config {
	return Config{MaxAccuracyM: 50}
}

type Option func(*Recorder)

func WithConfig(cfg Config) Option { return func(r *Recorder) { r.cfg = cfg } }

func WithClock(c clock.Clock) Option { return func(r *Recorder) { r.clock = c } }

func WithLogger(l *logrus.Entry) Option { return func(r *Recorder) { r.log = l } }

// WithAcceptHook runs fn after every accepted fix, outside the recorder lock.
func WithAcceptHook(fn func(geo.Fix, Stats)) Option {
	return func(r *Recorder) { r.onAccept = fn }
}

// Recorder owns one recording session.
type Recorder struct {
	id       string
	provider location.Provider
	cfg      Config
	clock    clock.Clock
	log      *logrus.Entry
	onAccept func(geo.Fix, Stats)

	// lifecycle serializes Start/Stop so the provider is never subscribed twice.
	lifecycle sync.Mutex

	mu            sync.Mutex
	state         State
	name          string
	description   string
	startedAt     time.Time
	endedAt       time.Time
	pausedAt      time.Time
	pausedFor     time.Duration
	fixes         []geo.Fix
	segmentStarts []int
	anchor        bool
	totals        Stats
	rejects       map[RejectReason]int
	sub           location.Subscription
}

func NewRecorder(id string, provider location.Provider, opts ...Option) *Recorder {
	r := &Recorder{
		id:       id,
		provider: provider,
		cfg:      DefaultConfig(),
		clock:    clock.Real(),
		state:    StateIdle,
		rejects:  map[RejectReason]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.WithField("session_id", id)
	}
	return r
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start moves an idle recorder to Recording and subscribes to the provider.
func (r *Recorder) Start(name, description string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "trail name is required"}
	}

	r.mu.Lock()
	state := r.state
	r.mu.Unlock()
	if state != StateIdle {
		return &ValidationError{Field: "state", Message: "session is already " + string(state)}
	}

	sub, err := r.provider.Subscribe(func(f geo.Fix) { r.OnLocationUpdate(f) })
	if err != nil {
		r.log.WithError(err).Warn("location provider refused subscription")
		return &LocationUnavailableError{Err: err}
	}

	r.mu.Lock()
	r.state = StateRecording
	r.name = name
	r.description = strings.TrimSpace(description)
	r.startedAt = r.clock.Now()
	r.fixes = nil
	r.segmentStarts = nil
	r.anchor = true
	r.totals = Stats{}
	r.rejects = map[RejectReason]int{}
	r.sub = sub
	r.mu.Unlock()

	r.log.WithField("name", name).Info("recording started")
	return nil
}

func (r *Recorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return &ValidationError{Field: "state", Message: "cannot pause while " + string(r.state)}
	}
	r.state = StatePaused
	r.pausedAt = r.clock.Now()
	r.log.Info("recording paused")
	return nil
}

// Resume re-opens fix acceptance. The next accepted fix starts a new segment
// and adds no distance or duration, so the paused interval never counts.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return &ValidationError{Field: "state", Message: "cannot resume while " + string(r.state)}
	}
	r.state = StateRecording
	r.anchor = true
	r.pausedFor += r.clock.Now().Sub(r.pausedAt)
	r.log.Info("recording resumed")
	return nil
}

// Stop finalizes the session, releases the provider and returns the result.
func (r *Recorder) Stop() (Recording, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.state != StateRecording && r.state != StatePaused {
		state := r.state
		r.mu.Unlock()
		return Recording{}, &ValidationError{Field: "state", Message: "cannot stop while " + string(state)}
	}
	if r.state == StatePaused {
		r.pausedFor += r.clock.Now().Sub(r.pausedAt)
	}
	r.state = StateStopped
	r.endedAt = r.clock.Now()
	sub := r.sub
	r.sub = nil
	rec := r.snapshotLocked()
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	r.log.WithFields(logrus.Fields{
		"points":     rec.Stats.PointCount,
		"distance_m": rec.Stats.DistanceM,
		"rejected":   rec.Stats.Rejected,
	}).Info("recording stopped")
	return rec, nil
}

// OnLocationUpdate ingests one fix. Only Recording accepts fixes.
func (r *Recorder) OnLocationUpdate(f geo.Fix) Outcome {
	r.mu.Lock()
	reason := r.checkLocked(f)
	if reason != "" {
		r.rejects[reason]++
		r.totals.Rejected++
		stats := r.statsLocked()
		r.mu.Unlock()

		r.log.WithFields(logrus.Fields{
			"reason": reason,
			"lat":    f.Lat,
			"lng":    f.Lng,
		}).Debug("gps fix rejected")
		return Outcome{Reason: reason, Stats: stats}
	}

	r.acceptLocked(f)
	stats := r.statsLocked()
	hook := r.onAccept
	r.mu.Unlock()

	if hook != nil {
		hook(f, stats)
	}
	return Outcome{Accepted: true, Stats: stats}
}

func (r *Recorder) checkLocked(f geo.Fix) RejectReason {
	if r.state != StateRecording {
		return RejectNotRecording
	}
	if err := geo.ValidateFix(f); err != nil {
		return RejectInvalid
	}
	if n := len(r.fixes); n > 0 && !f.Timestamp.After(r.fixes[n-1].Timestamp) {
		return RejectOutOfOrder
	}
	if r.cfg.MaxAccuracyM > 0 && f.AccuracyM != nil && *f.AccuracyM > r.cfg.MaxAccuracyM {
		return RejectLowAccuracy
	}
	return ""
}

func (r *Recorder) acceptLocked(f geo.Fix) {
	if r.anchor || len(r.fixes) == 0 {
		r.segmentStarts = append(r.segmentStarts, len(r.fixes))
		r.anchor = false
		r.fixes = append(r.fixes, f)
		return
	}

	last := r.fixes[len(r.fixes)-1]
	d := geo.Distance(last, f)
	dt := f.Timestamp.Sub(last.Timestamp).Seconds()

	r.totals.DistanceM += d
	r.totals.DurationSec += dt
	if speed := geo.AverageSpeed(d, dt); speed > r.totals.MaxSpeedMps {
		r.totals.MaxSpeedMps = speed
	}
	if delta := geo.ElevationDelta(last, f); delta > 0 {
		r.totals.ElevationGainM += delta
	} else {
		r.totals.ElevationLossM -= delta
	}
	r.fixes = append(r.fixes, f)
}

// Stats returns the current aggregates. It never fails.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

func (r *Recorder) statsLocked() Stats {
	s := r.totals
	s.State = r.state
	s.PointCount = len(r.fixes)
	s.AverageSpeedMps = geo.AverageSpeed(s.DistanceM, s.DurationSec)
	return s
}

// Snapshot copies the session as it is now.
func (r *Recorder) Snapshot() Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// PausedFor reports the wall-clock time spent paused.
func (r *Recorder) PausedFor() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StatePaused {
		return r.pausedFor + r.clock.Now().Sub(r.pausedAt)
	}
	return r.pausedFor
}

func (r *Recorder) snapshotLocked() Recording {
	fixes := make([]geo.Fix, len(r.fixes))
	copy(fixes, r.fixes)
	starts := make([]int, len(r.segmentStarts))
	copy(starts, r.segmentStarts)
	rejects := make(map[RejectReason]int, len(r.rejects))
	for k, v := range r.rejects {
		rejects[k] = v
	}
	return Recording{
		ID:            r.id,
		Name:          r.name,
		Description:   r.description,
		StartedAt:     r.startedAt,
		EndedAt:       r.endedAt,
		Fixes:         fixes,
		SegmentStarts: starts,
		Stats:         r.statsLocked(),
		Rejects:       rejects,
	}
}
