package trails

import (
	"time"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/shared/geo"
)

type Trail struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Location       string                `json:"location"`
	Description    string                `json:"description"`
	Difficulty     completion.Difficulty `json:"difficulty"`
	DistanceM      float64               `json:"distance_m"`
	ElevationGainM float64               `json:"elevation_gain_m"`
	Route          []geo.Fix             `json:"route,omitempty"`
	CreatedBy      string                `json:"created_by"`
	SourceSession  string                `json:"source_session_id,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}
