package recording

import (
	"fmt"
	"time"

	"backend-trekhub/internal/shared/geo"
)

type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// RejectReason explains why a fix was dropped. Rejections are soft: they are
// counted and logged, never returned as errors.
type RejectReason string

const (
	RejectNotRecording RejectReason = "not_recording"
	RejectInvalid      RejectReason = "invalid_coordinate"
	RejectOutOfOrder   RejectReason = "non_increasing_timestamp"
	RejectLowAccuracy  RejectReason = "low_accuracy"
)

type Outcome struct {
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Stats    Stats        `json:"stats"`
}

type Stats struct {
	State           State   `json:"state"`
	PointCount      int     `json:"point_count"`
	DistanceM       float64 `json:"distance_m"`
	DurationSec     float64 `json:"duration_sec"`
	AverageSpeedMps float64 `json:"average_speed_mps"`
	MaxSpeedMps     float64 `json:"max_speed_mps"`
	ElevationGainM  float64 `json:"elevation_gain_m"`
	ElevationLossM  float64 `json:"elevation_loss_m"`
	Rejected        int     `json:"rejected"`
}

// Recording is a copy of a session's fixes and aggregates. Mutating it does
// not affect the recorder it came from.
type Recording struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       time.Time            `json:"ended_at,omitempty"`
	Fixes         []geo.Fix            `json:"fixes"`
	SegmentStarts []int                `json:"segment_starts"`
	Stats         Stats                `json:"stats"`
	Rejects       map[RejectReason]int `json:"rejects,omitempty"`
}

// Segments splits the fixes at every resume.
func (r Recording) Segments() [][]geo.Fix {
	if len(r.Fixes) == 0 {
		return nil
	}
	starts := r.SegmentStarts
	if len(starts) == 0 {
		starts = []int{0}
	}
	segments := make([][]geo.Fix, 0, len(starts))
	for i, start := range starts {
		end := len(r.Fixes)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		segments = append(segments, r.Fixes[start:end])
	}
	return segments
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LocationUnavailableError is returned by Start when the provider refuses
// the subscription.
type LocationUnavailableError struct {
	Err error
}

func (e *LocationUnavailableError) Error() string {
	return "location unavailable: " + e.Err.Error()
}

func (e *LocationUnavailableError) Unwrap() error { return e.Err }
