package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend-trekhub/internal/emergency"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const DefaultTopic = "emergency-alerts"

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alert notifications for the delivery service
// that texts and e-mails emergency contacts.
type KafkaNotifier struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaNotifierWithWriter(writer, NewBreaker("kafka-alerts", 5, 30*time.Second))
}

func NewKafkaNotifierWithWriter(w MessageWriter, b *gobreaker.CircuitBreaker) *KafkaNotifier {
	return &KafkaNotifier{
		writer:  w,
		breaker: b,
		log:     logrus.WithField("component", "kafka_notifier"),
	}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n emergency.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(n.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("emergency_alert")},
			{Key: "alert_type", Value: []byte(n.Alert)},
			{Key: "session_id", Value: []byte(n.SessionID)},
		},
		Time: n.SentAt,
	}

	_, err = k.breaker.Execute(func() (interface{}, error) {
		return nil, k.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publish emergency alert (breaker %s): %w", k.breaker.State(), err)
	}
	k.log.WithFields(logrus.Fields{
		"session_id": n.SessionID,
		"alert_type": n.Alert,
		"contacts":   len(n.Contacts),
	}).Info("emergency alert published")
	return nil
}

// BreakerState reports "closed", "half-open" or "open".
func (k *KafkaNotifier) BreakerState() string {
	return k.breaker.State().String()
}

func (k *KafkaNotifier) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
