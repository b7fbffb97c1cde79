package tracking

import (
	"time"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/emergency"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/rewards"
	"backend-trekhub/internal/shared/geo"
)

type StartRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TrailID     string `json:"trail_id"`
	// Difficulty applies when no trail is given.
	Difficulty string `json:"difficulty"`
	// LocationDenied is set by clients whose OS refused location access.
	LocationDenied bool `json:"location_denied"`
}

type Session struct {
	ID          string                `json:"id"`
	HikerID     string                `json:"hiker_id"`
	TrailID     string                `json:"trail_id,omitempty"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Difficulty  completion.Difficulty `json:"difficulty"`
	State       recording.State       `json:"state"`
	StartedAt   time.Time             `json:"started_at"`
	Monitoring  bool                  `json:"monitoring"`
}

// PointFrame is pushed to stream watchers for every accepted fix.
type PointFrame struct {
	Fix   geo.Fix         `json:"fix"`
	Stats recording.Stats `json:"stats"`
}

type StopResult struct {
	Recording  recording.Recording `json:"recording"`
	Completion completion.Result   `json:"completion"`
	Claim      *rewards.Claim      `json:"claim,omitempty"`
}

type Summary struct {
	SessionID   string             `json:"session_id"`
	HikerID     string             `json:"hiker_id"`
	TrailID     string             `json:"trail_id,omitempty"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     time.Time          `json:"ended_at,omitempty"`
	Stats       recording.Stats    `json:"stats"`
	Completion  *completion.Result `json:"completion,omitempty"`
	Live        bool               `json:"live"`
}

type BatteryRequest struct {
	Percent int `json:"percent"`
}

// PublishRequest overrides the recording's name and description when a
// finished session is shared as a trail.
type PublishRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type MotionRequest struct {
	Samples []emergency.Acceleration `json:"samples"`
}
