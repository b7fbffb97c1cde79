package server

import (
	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/config"
	"backend-trekhub/internal/emergency"
	"backend-trekhub/internal/notify"
	"backend-trekhub/internal/profile"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/rewards"
	"backend-trekhub/internal/stream"
	"backend-trekhub/internal/tracking"
	"backend-trekhub/internal/trails"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Tracking *tracking.Service
	Notifier emergency.Notifier
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Notifier: newNotifier(cfg),
	}

	registerRoutes(s)
	return s
}

// newNotifier publishes alerts to Kafka when brokers are configured and
// only logs them otherwise.
func newNotifier(cfg config.Config) emergency.Notifier {
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		logrus.WithField("brokers", brokers).Info("emergency alerts go to kafka")
		return notify.NewKafkaNotifier(brokers, cfg.AlertTopic)
	}
	logrus.Warn("no kafka brokers configured, emergency alerts are only logged")
	return notify.NewLogNotifier(logrus.StandardLogger())
}

func policies(cfg config.Config) (completion.Policy, recording.Config, emergency.Config) {
	policy := completion.DefaultPolicy()
	if cfg.MinDistanceM > 0 {
		policy.MinDistanceM = cfg.MinDistanceM
	}
	if cfg.MinDuration > 0 {
		policy.MinDuration = cfg.MinDuration
	}
	if cfg.MinFixCount > 0 {
		policy.MinFixCount = cfg.MinFixCount
	}
	if cfg.TokensPerKm > 0 {
		policy.TokensPerKm = cfg.TokensPerKm
	}

	rec := recording.DefaultConfig()
	if limit, ok := cfg.FixAccuracyLimit(); ok {
		rec.MaxAccuracyM = limit
	}

	em := emergency.DefaultConfig()
	if cfg.NoMovementWait > 0 {
		em.NoMovementWindow = cfg.NoMovementWait
	}
	if cfg.AlertCountdown > 0 {
		em.Countdown = cfg.AlertCountdown
	}
	if cfg.CheckInEvery > 0 {
		em.CheckInInterval = cfg.CheckInEvery
	}
	return policy, rec, em
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	trailSvc := trails.NewService(s.DB)
	profileSvc := profile.NewService(s.DB)
	ledger := rewards.NewPostgresLedger(s.DB)
	policy, recCfg, emCfg := policies(s.Cfg)

	opts := []tracking.Option{
		tracking.WithTrails(trailSvc),
		tracking.WithProfiles(profileSvc),
		tracking.WithLedger(ledger),
		tracking.WithNotifier(s.Notifier),
		tracking.WithPolicy(policy),
		tracking.WithRecorderConfig(recCfg),
		tracking.WithEmergencyConfig(emCfg),
	}
	if s.Redis != nil {
		opts = append(opts, tracking.WithRedis(s.Redis))
	}
	if s.Cfg.StatsCacheTTL > 0 {
		opts = append(opts, tracking.WithStatsTTL(s.Cfg.StatsCacheTTL))
	}
	s.Tracking = tracking.NewService(s.DB, s.Stream, opts...)

	trails.RegisterRoutes(s.App.Group("/trails"), trailSvc, jwtMiddleware)
	profile.RegisterRoutes(s.App.Group("/profile"), profileSvc, jwtMiddleware)
	rewards.RegisterRoutes(s.App.Group("/rewards"), ledger, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// Close stops live monitoring and releases the notifier.
func (s *Server) Close() {
	s.Tracking.Close()
	if k, ok := s.Notifier.(*notify.KafkaNotifier); ok {
		if err := k.Close(); err != nil {
			logrus.WithError(err).Warn("kafka notifier close failed")
		}
	}
}
