package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-trekhub/internal/clock"
	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/db"
	"backend-trekhub/internal/emergency"
	"backend-trekhub/internal/gpxio"
	"backend-trekhub/internal/location"
	"backend-trekhub/internal/profile"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/rewards"
	"backend-trekhub/internal/shared/geo"
	"backend-trekhub/internal/stream"
	"backend-trekhub/internal/trails"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another hiker")
	ErrNotFinished     = errors.New("session has not finished")
)

const statsKeyPrefix = "recording:stats:"

type TrailStore interface {
	Get(ctx context.Context, id string) (trails.Trail, error)
	Create(ctx context.Context, t trails.Trail) (trails.Trail, error)
}

type ProfileStore interface {
	Get(ctx context.Context, hikerID string) (profile.Profile, error)
	RecordCompletion(ctx context.Context, hikerID string, distanceM, durationSec float64) (profile.Profile, error)
}

type Option func(*Service)

func WithRedis(c *redis.Client) Option { return func(s *Service) { s.redis = c } }
func WithTrails(t TrailStore) Option { return func(s *Service) { s.trails = t } }
func WithProfiles(p ProfileStore) Option { return func(s *Service) { s.profiles = p } }
func WithLedger(l rewards.Ledger) Option { return func(s *Service) { s.ledger = l } }
func WithNotifier(n emergency.Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithPolicy(p completion.Policy) Option { return func(s *Service) { s.policy = p } }
func WithRecorderConfig(c recording.Config) Option { return func(s *Service) { s.recorderCfg = c } }
func WithEmergencyConfig(c emergency.Config) Option { return func(s *Service) { s.emergencyCfg = c } }
func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }
func WithStatsTTL(ttl time.Duration) Option { return func(s *Service) { s.statsTTL = ttl } }

// Service runs live recording sessions. Each session pairs a recorder with
// an emergency monitor; finished sessions are written to Postgres.
type Service struct {
	db           db.TxQuerier
	hub          *stream.Hub
	redis        *redis.Client
	trails       TrailStore
	profiles     ProfileStore
	ledger       rewards.Ledger
	notifier     emergency.Notifier
	policy       completion.Policy
	recorderCfg  recording.Config
	emergencyCfg emergency.Config
	clock        clock.Clock
	statsTTL     time.Duration
	log          *logrus.Entry

	mu   sync.RWMutex
	live map[string]*liveSession
}

type liveSession struct {
	session  Session
	fitness  *completion.Fitness
	provider *location.PushProvider
	device   *emergency.DeviceFeed
	recorder *recording.Recorder
	monitor  *emergency.Monitor

	// cacheMu orders stats cache writes; each writer reads the recorder
	// under it, so the last write always carries the newest aggregates.
	cacheMu sync.Mutex

	// stopMu guards final and done. final holds a stopped recording whose
	// write failed, so a retried stop persists the same result.
	stopMu sync.Mutex
	final  *StopResult
	done   bool
}

func NewService(db db.TxQuerier, hub *stream.Hub, opts ...Option) *Service {
	s := &Service{
		db:           db,
		hub:          hub,
		policy:       completion.DefaultPolicy(),
		recorderCfg:  recording.DefaultConfig(),
		emergencyCfg: emergency.DefaultConfig(),
		clock:        clock.Real(),
		statsTTL:     10 * time.Minute,
		log:          logrus.WithField("component", "tracking"),
		live:         map[string]*liveSession{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) StartSession(ctx context.Context, hikerID string, req StartRequest) (Session, error) {
	difficulty := completion.ParseDifficulty(req.Difficulty)
	var route []geo.Fix
	if req.TrailID != "" && s.trails != nil {
		trail, err := s.trails.Get(ctx, req.TrailID)
		if err != nil {
			return Session{}, err
		}
		difficulty = trail.Difficulty
		route = trail.Route
		if req.Name == "" {
			req.Name = trail.Name
		}
	}

	var contacts []emergency.Contact
	var fitness *completion.Fitness
	if s.profiles != nil {
		p, err := s.profiles.Get(ctx, hikerID)
		if err != nil {
			s.log.WithError(err).WithField("hiker_id", hikerID).Warn("profile unavailable, monitoring without contacts")
		} else {
			contacts = p.Contacts
			f := p.Fitness()
			fitness = &f
		}
	}

	id := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"session_id": id, "hiker_id": hikerID})
	l := &liveSession{
		fitness:  fitness,
		provider: location.NewPushProvider(),
		device:   emergency.NewDeviceFeed(),
	}
	if req.LocationDenied {
		l.provider.Deny()
	}
	l.monitor = emergency.NewMonitor(id,
		emergency.WithConfig(s.emergencyCfg),
		emergency.WithClock(s.clock),
		emergency.WithLogger(log),
		emergency.WithNotifier(s.notifier),
		emergency.WithSink(s.emergencySink(id, log)),
		emergency.WithBattery(l.device),
		emergency.WithMotion(l.device),
	)
	l.recorder = recording.NewRecorder(id, l.provider,
		recording.WithConfig(s.recorderCfg),
		recording.WithClock(s.clock),
		recording.WithLogger(log),
		recording.WithAcceptHook(func(f geo.Fix, st recording.Stats) {
			l.monitor.OnLocation(f)
			s.publish(id, "point", PointFrame{Fix: f, Stats: st})
		}),
	)
	if err := l.recorder.Start(req.Name, req.Description); err != nil {
		return Session{}, err
	}

	snap := l.recorder.Snapshot()
	l.session = Session{
		ID:          id,
		HikerID:     hikerID,
		TrailID:     req.TrailID,
		Name:        snap.Name,
		Description: snap.Description,
		Difficulty:  difficulty,
		StartedAt:   snap.StartedAt,
	}
	if err := s.insertSession(ctx, l.session); err != nil {
		_, _ = l.recorder.Stop()
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	l.monitor.SetRoute(route)
	l.monitor.Sync(true, contacts)

	s.mu.Lock()
	s.live[id] = l
	s.mu.Unlock()

	view := l.view()
	s.publish(id, "started", view)
	return view, nil
}

func (l *liveSession) view() Session {
	v := l.session
	v.State = l.recorder.State()
	v.Monitoring = l.monitor.State().Monitoring
	return v
}

// lookup finds a live session. An empty hikerID skips the ownership check.
func (s *Service) lookup(sessionID, hikerID string) (*liveSession, error) {
	s.mu.RLock()
	l, ok := s.live[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if hikerID != "" && l.session.HikerID != hikerID {
		return nil, ErrForbidden
	}
	return l, nil
}

func (s *Service) Pause(ctx context.Context, sessionID, hikerID string) (Session, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return Session{}, err
	}
	if err := l.recorder.Pause(); err != nil {
		return Session{}, err
	}
	s.syncStats(ctx, l)
	view := l.view()
	s.publish(sessionID, "paused", view)
	return view, nil
}

func (s *Service) Resume(ctx context.Context, sessionID, hikerID string) (Session, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return Session{}, err
	}
	if err := l.recorder.Resume(); err != nil {
		return Session{}, err
	}
	s.syncStats(ctx, l)
	view := l.view()
	s.publish(sessionID, "resumed", view)
	return view, nil
}

// AddPoint feeds one fix to the session. Rejected fixes are not errors;
// the outcome carries the reason.
func (s *Service) AddPoint(ctx context.Context, sessionID, hikerID string, f geo.Fix) (recording.Outcome, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return recording.Outcome{}, err
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = s.clock.Now()
	}
	out := l.recorder.OnLocationUpdate(f)
	s.syncStats(ctx, l)
	return out, nil
}

// Stop finishes the recording, verifies completion and persists it.
// Completed hikes are handed to the reward ledger and the hiker profile;
// failures there are logged and do not undo the stop.
func (s *Service) Stop(ctx context.Context, sessionID, hikerID string) (StopResult, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return StopResult{}, err
	}
	l.stopMu.Lock()
	defer l.stopMu.Unlock()
	if l.done {
		return StopResult{}, ErrSessionNotFound
	}

	if l.final == nil {
		rec, err := l.recorder.Stop()
		if err != nil {
			return StopResult{}, err
		}
		l.monitor.Sync(false, nil)
		res := completion.Verify(rec, s.policy, completion.Input{Difficulty: l.session.Difficulty, Fitness: l.fitness})
		l.final = &StopResult{Recording: rec, Completion: res}
	}

	log := s.log.WithField("session_id", sessionID)
	if err := s.persist(ctx, l.session, l.final.Recording, l.final.Completion); err != nil {
		log.WithError(err).Error("persist recording failed")
		return StopResult{}, fmt.Errorf("persist recording: %w", err)
	}

	result := *l.final
	l.done = true
	s.mu.Lock()
	delete(s.live, sessionID)
	s.mu.Unlock()
	l.provider.Close()
	s.syncStats(ctx, l)

	if result.Completion.Completed {
		if s.ledger != nil {
			claim, err := rewards.ClaimFor(sessionID, l.session.HikerID, l.session.TrailID, result.Completion)
			if err == nil {
				claim, err = s.ledger.Submit(ctx, claim)
			}
			if err != nil {
				log.WithError(err).Warn("reward claim not submitted")
			} else {
				result.Claim = &claim
			}
		}
		if s.profiles != nil {
			if _, err := s.profiles.RecordCompletion(ctx, l.session.HikerID, result.Recording.Stats.DistanceM, result.Recording.Stats.DurationSec); err != nil {
				log.WithError(err).Warn("profile totals not updated")
			}
		}
	}

	log.WithFields(logrus.Fields{
		"completed":  result.Completion.Completed,
		"percentage": result.Completion.CompletionPercentage,
	}).Info("session finished")
	s.publish(sessionID, "stopped", result.Completion)
	return result, nil
}

func (s *Service) Summary(ctx context.Context, sessionID string) (Summary, error) {
	if l, err := s.lookup(sessionID, ""); err == nil {
		snap := l.recorder.Snapshot()
		return Summary{
			SessionID:   sessionID,
			HikerID:     l.session.HikerID,
			TrailID:     l.session.TrailID,
			Name:        snap.Name,
			Description: snap.Description,
			StartedAt:   snap.StartedAt,
			EndedAt:     snap.EndedAt,
			Stats:       snap.Stats,
			Live:        true,
		}, nil
	}
	return s.loadSummary(ctx, sessionID)
}

// Stats answers from the recorder when the session runs here. The shared
// cache serves sessions running on another instance.
func (s *Service) Stats(ctx context.Context, sessionID string) (recording.Stats, error) {
	if l, err := s.lookup(sessionID, ""); err == nil {
		return l.recorder.Stats(), nil
	}
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, statsKeyPrefix+sessionID).Bytes()
		switch {
		case err == nil:
			var st recording.Stats
			if jsonErr := json.Unmarshal(raw, &st); jsonErr == nil {
				return st, nil
			}
		case !errors.Is(err, redis.Nil):
			s.log.WithError(err).Warn("stats cache read failed")
		}
	}
	sum, err := s.Summary(ctx, sessionID)
	if err != nil {
		return recording.Stats{}, err
	}
	return sum.Stats, nil
}

// PublishTrail shares a finished session of the hiker's as a new trail.
// The route is the recorded track; totals come from the stored summary.
func (s *Service) PublishTrail(ctx context.Context, sessionID, hikerID string, req PublishRequest) (trails.Trail, error) {
	if s.trails == nil {
		return trails.Trail{}, errors.New("trail store not configured")
	}
	sum, err := s.loadSummary(ctx, sessionID)
	if err != nil {
		return trails.Trail{}, err
	}
	if sum.HikerID != hikerID {
		return trails.Trail{}, ErrForbidden
	}
	if sum.Completion == nil {
		return trails.Trail{}, ErrNotFinished
	}
	rec, err := s.loadPoints(ctx, sum)
	if err != nil {
		return trails.Trail{}, err
	}

	trail := trails.FromRecording(rec, hikerID, sum.Completion.Difficulty)
	if req.Name != "" {
		trail.Name = req.Name
	}
	if req.Description != "" {
		trail.Description = req.Description
	}
	trail.Location = req.Location
	created, err := s.trails.Create(ctx, trail)
	if err != nil {
		return trails.Trail{}, fmt.Errorf("publish trail: %w", err)
	}
	s.log.WithFields(logrus.Fields{"session_id": sessionID, "trail_id": created.ID}).Info("session published as trail")
	return created, nil
}

func (s *Service) Points(ctx context.Context, sessionID string) ([]geo.Fix, error) {
	if l, err := s.lookup(sessionID, ""); err == nil {
		return l.recorder.Snapshot().Fixes, nil
	}
	rec, err := s.loadRecording(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return rec.Fixes, nil
}

// Export renders the session as GPX, live or finished.
func (s *Service) Export(ctx context.Context, sessionID string) ([]byte, error) {
	var rec recording.Recording
	if l, err := s.lookup(sessionID, ""); err == nil {
		rec = l.recorder.Snapshot()
	} else {
		rec, err = s.loadRecording(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}
	return gpxio.Encode(rec)
}

func (s *Service) Battery(sessionID, hikerID string, percent int) (emergency.State, error) {
	if percent < 0 || percent > 100 {
		return emergency.State{}, &recording.ValidationError{Field: "percent", Message: "must be between 0 and 100"}
	}
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return emergency.State{}, err
	}
	l.device.PushBattery(percent)
	return l.monitor.State(), nil
}

func (s *Service) Motion(sessionID, hikerID string, samples []emergency.Acceleration) (emergency.State, error) {
	if len(samples) == 0 {
		return emergency.State{}, &recording.ValidationError{Field: "samples", Message: "at least one sample required"}
	}
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return emergency.State{}, err
	}
	for _, a := range samples {
		l.device.PushMotion(a)
	}
	return l.monitor.State(), nil
}

func (s *Service) EmergencyState(sessionID string) (emergency.State, error) {
	l, err := s.lookup(sessionID, "")
	if err != nil {
		return emergency.State{}, err
	}
	return l.monitor.State(), nil
}

func (s *Service) TriggerEmergency(sessionID, hikerID string) (emergency.State, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return emergency.State{}, err
	}
	if err := l.monitor.TriggerManual(); err != nil {
		return emergency.State{}, err
	}
	return l.monitor.State(), nil
}

// CancelEmergency reports whether there was anything to cancel.
func (s *Service) CancelEmergency(sessionID, hikerID string) (bool, emergency.State, error) {
	l, err := s.lookup(sessionID, hikerID)
	if err != nil {
		return false, emergency.State{}, err
	}
	cancelled := l.monitor.Cancel()
	return cancelled, l.monitor.State(), nil
}

// Close stops monitoring on every live session. Recordings stay in memory
// unpersisted.
func (s *Service) Close() {
	s.mu.RLock()
	sessions := make([]*liveSession, 0, len(s.live))
	for _, l := range s.live {
		sessions = append(sessions, l)
	}
	s.mu.RUnlock()

	for _, l := range sessions {
		l.monitor.Stop()
	}
	if len(sessions) > 0 {
		s.log.WithField("sessions", len(sessions)).Warn("shutting down with live sessions")
	}
}

func (s *Service) emergencySink(sessionID string, log *logrus.Entry) emergency.EventSink {
	return func(ev emergency.Event) {
		entry := log.WithFields(logrus.Fields{"event": ev.Kind, "alert_type": ev.Alert})
		if ev.Kind == emergency.EventAlertFailed {
			entry.WithField("error", ev.Error).Error("emergency alert delivery failed")
		} else {
			entry.Info("emergency event")
		}
		s.publish(sessionID, "emergency", ev)
	}
}

func (s *Service) publish(sessionID, kind string, data any) {
	if s.hub != nil {
		s.hub.Publish(sessionID, kind, data)
	}
}

func (s *Service) syncStats(ctx context.Context, l *liveSession) {
	if s.redis == nil {
		return
	}
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	s.cacheStats(ctx, l.session.ID, l.recorder.Stats())
}

func (s *Service) cacheStats(ctx context.Context, sessionID string, st recording.Stats) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, statsKeyPrefix+sessionID, payload, s.statsTTL).Err(); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("stats cache write failed")
	}
}
