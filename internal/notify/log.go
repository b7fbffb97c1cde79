package notify

import (
	"context"

	"backend-trekhub/internal/emergency"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes alerts to the log instead of delivering them. Used
// when no broker is configured.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(l logrus.FieldLogger) *LogNotifier {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogNotifier{log: l}
}

func (l *LogNotifier) Notify(_ context.Context, n emergency.Notification) error {
	for _, c := range n.Contacts {
		l.log.WithFields(logrus.Fields{
			"session_id": n.SessionID,
			"alert_type": n.Alert,
			"contact":    c.Name,
			"phone":      c.Phone,
		}).Warn(n.Message)
	}
	return nil
}
