package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"backend-trekhub/internal/emergency"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
)

var errBroker = errors.New("broker unavailable")

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	calls  int
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func notification() emergency.Notification {
	return emergency.Notification{
		SessionID: "session-1",
		Alert:     emergency.AlertFall,
		Message:   emergency.Message(emergency.AlertFall, nil, 80),
		Contacts:  []emergency.Contact{{Name: "Sam", Phone: "+6281100000"}, {Name: "Ari", Phone: "+6281100001"}},
		SentAt:    time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
	}
}

func TestKafkaNotifierPublishes(t *testing.T) {
	w := &fakeWriter{}
	n := NewKafkaNotifierWithWriter(w, NewBreaker("test", 3, time.Minute))

	if err := n.Notify(context.Background(), notification()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "session-1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	var decoded emergency.Notification
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Alert != emergency.AlertFall || len(decoded.Contacts) != 2 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
	found := false
	for _, h := range msg.Headers {
		if h.Key == "alert_type" && string(h.Value) == "fall" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alert_type header")
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer closed")
	}
}

func TestKafkaNotifierBreakerOpens(t *testing.T) {
	w := &fakeWriter{err: errBroker}
	n := NewKafkaNotifierWithWriter(w, NewBreaker("test", 2, 20*time.Millisecond))

	for i := 0; i < 2; i++ {
		if err := n.Notify(context.Background(), notification()); !errors.Is(err, errBroker) {
			t.Fatalf("expected broker error, got %v", err)
		}
	}
	err := n.Notify(context.Background(), notification())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if !strings.Contains(err.Error(), "breaker open") || n.BreakerState() != "open" {
		t.Fatalf("expected breaker state in error, got %v", err)
	}
	if w.calls != 2 {
		t.Fatalf("open circuit must not reach the broker, calls=%d", w.calls)
	}

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	time.Sleep(40 * time.Millisecond)
	if err := n.Notify(context.Background(), notification()); err != nil {
		t.Fatalf("trial call after reset timeout: %v", err)
	}
	if n.BreakerState() != "closed" {
		t.Fatalf("expected breaker closed after successful trial, got %s", n.BreakerState())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, 20*time.Millisecond)

	_, _ = b.Execute(func() (interface{}, error) { return nil, errBroker })
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open")
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := b.Execute(func() (interface{}, error) { return nil, errBroker }); !errors.Is(err, errBroker) {
		t.Fatalf("expected trial error, got %v", err)
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("failed trial should reopen the breaker")
	}
}

func TestLogNotifierLogsEveryContact(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	n := NewLogNotifier(logger)

	if err := n.Notify(context.Background(), notification()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.WarnLevel || entries[1].Data["contact"] != "Ari" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestNotifierInterfaces(t *testing.T) {
	var _ emergency.Notifier = (*KafkaNotifier)(nil)
	var _ emergency.Notifier = (*LogNotifier)(nil)
	var _ MessageWriter = (*kafka.Writer)(nil)
}
