package emergency

import (
	"context"
	"fmt"
	"math"
	"time"

	"backend-trekhub/internal/shared/geo"
)

type AlertType string

const (
	AlertFall       AlertType = "fall"
	AlertNoMovement AlertType = "no_movement"
	AlertOffTrail   AlertType = "off_trail"
	AlertLowBattery AlertType = "low_battery"
	AlertManual     AlertType = "manual"
)

type EventKind string

const (
	EventAlertRaised    EventKind = "alert_raised"
	EventAlertCancelled EventKind = "alert_cancelled"
	EventAlertSent      EventKind = "alert_sent"
	EventAlertFailed    EventKind = "alert_failed"
	EventCheckIn        EventKind = "check_in"
)

type Contact struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	Priority     int    `json:"priority"`
}

// Acceleration is one device-motion sample including gravity.
type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (a Acceleration) Magnitude() float64 {
	return math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
}

// State mirrors the monitor's in-memory flags.
type State struct {
	Monitoring         bool      `json:"monitoring"`
	LastMovement       time.Time `json:"last_movement"`
	FallDetected       bool      `json:"fall_detected"`
	NoMovementDetected bool      `json:"no_movement_detected"`
	OffTrailDetected   bool      `json:"off_trail_detected"`
	AlertsSent         int       `json:"alerts_sent"`
	EmergencyTriggered bool      `json:"emergency_triggered"`
	PendingAlert       AlertType `json:"pending_alert,omitempty"`
	CountdownEndsAt    time.Time `json:"countdown_ends_at,omitempty"`
	LastCheckIn        time.Time `json:"last_check_in,omitempty"`
	BatteryPercent     int       `json:"battery_percent"`
}

type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Alert     AlertType `json:"alert,omitempty"`
	Message   string    `json:"message,omitempty"`
	Contacts  []Contact `json:"contacts,omitempty"`
	Location  *geo.Fix  `json:"location,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// EventSink receives monitor events. It is never called with the monitor
// lock held.
type EventSink func(Event)

// Notification is what the notification collaborator delivers to contacts.
type Notification struct {
	SessionID string    `json:"session_id"`
	Alert     AlertType `json:"alert"`
	Message   string    `json:"message"`
	Contacts  []Contact `json:"contacts"`
	Location  *geo.Fix  `json:"location,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Message renders the text sent to contacts for an alert.
func Message(alert AlertType, loc *geo.Fix, batteryPercent int) string {
	where := "Location unavailable"
	if loc != nil {
		where = fmt.Sprintf("Lat: %.6f, Lng: %.6f", loc.Lat, loc.Lng)
	}
	switch alert {
	case AlertFall:
		return fmt.Sprintf("🚨 EMERGENCY: Potential fall detected for hiker. Location: %s. Please check on them immediately.", where)
	case AlertNoMovement:
		return fmt.Sprintf("🚨 EMERGENCY: No movement detected for 30+ minutes. Location: %s. Please check on them.", where)
	case AlertOffTrail:
		return fmt.Sprintf("🚨 EMERGENCY: Hiker has gone significantly off-trail. Location: %s. Please check on them.", where)
	case AlertLowBattery:
		return fmt.Sprintf("🚨 WARNING: Hiker's device battery is critically low (%d%%). Last location: %s.", batteryPercent, where)
	case AlertManual:
		return fmt.Sprintf("🚨 EMERGENCY: Manual emergency alert triggered. Location: %s. Please provide assistance.", where)
	default:
		return "Emergency alert triggered"
	}
}
