package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"backend-trekhub/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

var errBind = errors.New("address already in use")

func TestRunStops(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name    string
		ctx     context.Context
		signal  bool
		listen  ListenFunc
		wantErr error
	}{
		{"on signal", context.Background(), true, func(*fiber.App, string) error { return nil }, nil},
		{"on cancelled context", cancelled, false, func(*fiber.App, string) error { select {} }, nil},
		{"when listen fails", context.Background(), false, func(*fiber.App, string) error { return errBind }, errBind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signals := make(chan os.Signal, 1)
			if tc.signal {
				signals <- syscall.SIGTERM
			}
			err := Run(tc.ctx, config.Config{ServerPort: ":0"}, nil, nil, signals, tc.listen)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRunServesTrackingRoutes(t *testing.T) {
	signals := make(chan os.Signal, 1)
	var status int
	listen := func(app *fiber.App, _ string) error {
		defer func() { signals <- syscall.SIGINT }()
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/tracking/sessions", nil))
		if err != nil {
			return err
		}
		status = resp.StatusCode
		return nil
	}
	if err := Run(context.Background(), config.Config{ServerPort: ":0", JWTSecret: "s"}, nil, nil, signals, listen); err != nil {
		t.Fatalf("run: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("session start without a token should be refused, got %d", status)
	}
}

func TestRunReportsShutdownFailure(t *testing.T) {
	old := shutdownFn
	shutdownFn = func(*fiber.App, context.Context) error { return errBind }
	defer func() { shutdownFn = old }()

	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGINT
	if err := Run(context.Background(), config.Config{ServerPort: ":0"}, nil, nil, signals, func(*fiber.App, string) error { return nil }); !errors.Is(err, errBind) {
		t.Fatalf("expected shutdown error, got %v", err)
	}
}

func TestRealMainLogsFailures(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	defer logrus.SetLevel(logrus.InfoLevel)

	deps := mainDeps{
		loadConfig:      func() config.Config { return config.Config{LogLevel: "warn"} },
		connectPostgres: func(config.Config) (*pgxpool.Pool, error) { return nil, errBind },
		connectRedis:    func(config.Config) *redis.Client { return nil },
		notify:          func(chan<- os.Signal, ...os.Signal) {},
		run: func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error {
			return errBind
		},
	}
	realMain(deps)

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	if len(messages) != 2 || messages[0] != "postgres connection failed" || messages[1] != "server exited with error" {
		t.Fatalf("unexpected log entries %v", messages)
	}
	if logrus.GetLevel() != logrus.WarnLevel {
		t.Fatalf("LOG_LEVEL should set the level, got %v", logrus.GetLevel())
	}
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	configureLogging("debug")
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level")
	}
	if _, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON output")
	}
	configureLogging("loud")
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown levels should fall back to info")
	}
}

func TestMainRunsDefaultDeps(t *testing.T) {
	oldProvider, oldRunner := mainDepsProvider, mainRunner
	defer func() { mainDepsProvider, mainRunner = oldProvider, oldRunner }()

	var got mainDeps
	mainRunner = func(d mainDeps) { got = d }
	main()
	if got.loadConfig == nil || got.connectPostgres == nil || got.connectRedis == nil || got.notify == nil || got.run == nil {
		t.Fatalf("main should hand the default deps to the runner")
	}
}
