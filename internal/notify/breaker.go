package notify

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NewBreaker trips after maxFailures consecutive errors, stays open for
// openFor, then lets a single trial call through.
func NewBreaker(name string, maxFailures uint32, openFor time.Duration) *gobreaker.CircuitBreaker {
	log := logrus.WithField("breaker", name)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("breaker state changed")
		},
	})
}
