package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const EarthRadiusM = 6371000.0

// Fix is one GPS sample. Altitude and accuracy are optional.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AltitudeM *float64  `json:"altitude_m,omitempty"`
	AccuracyM *float64  `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Float returns a pointer to v, for the optional Fix fields.
func Float(v float64) *float64 { return &v }

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidateFix rejects NaN/Inf and out-of-range coordinates.
func ValidateFix(f Fix) error {
	if math.IsNaN(f.Lat) || math.IsInf(f.Lat, 0) || f.Lat < -90 || f.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrInvalidCoordinate, f.Lat)
	}
	if math.IsNaN(f.Lng) || math.IsInf(f.Lng, 0) || f.Lng < -180 || f.Lng > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrInvalidCoordinate, f.Lng)
	}
	return nil
}

// Distance returns the haversine great-circle distance between two fixes
// in metres.
func Distance(a, b Fix) float64 {
	lat1, lng1, lat2, lng2 := a.Lat, a.Lng, b.Lat, b.Lng
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	// rounding can push h marginally above 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

func TotalDistance(fixes []Fix) float64 {
	total := 0.0
	for i := 1; i < len(fixes); i++ {
		total += Distance(fixes[i-1], fixes[i])
	}
	return total
}

// ElevationDelta returns the altitude change from a to b, or 0 when either
// fix has no altitude.
func ElevationDelta(a, b Fix) float64 {
	if a.AltitudeM == nil || b.AltitudeM == nil {
		return 0
	}
	return *b.AltitudeM - *a.AltitudeM
}

func ElevationGain(fixes []Fix) float64 {
	gain := 0.0
	for i := 1; i < len(fixes); i++ {
		if d := ElevationDelta(fixes[i-1], fixes[i]); d > 0 {
			gain += d
		}
	}
	return gain
}

// ElevationLoss is reported as a positive number of metres.
func ElevationLoss(fixes []Fix) float64 {
	loss := 0.0
	for i := 1; i < len(fixes); i++ {
		if d := ElevationDelta(fixes[i-1], fixes[i]); d < 0 {
			loss -= d
		}
	}
	return loss
}

// AverageSpeed is distance/duration in m/s, 0 for non-positive durations.
func AverageSpeed(distanceM, durationSec float64) float64 {
	if durationSec <= 0 || math.IsNaN(durationSec) {
		return 0
	}
	return distanceM / durationSec
}

// DistanceToPath returns the distance in metres from f to the closest vertex
// of path. An empty path yields +Inf.
func DistanceToPath(f Fix, path []Fix) float64 {
	best := math.Inf(1)
	for _, p := range path {
		if d := Distance(f, p); d < best {
			best = d
		}
	}
	return best
}
