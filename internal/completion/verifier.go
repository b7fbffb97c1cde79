package completion

import (
	"math"
	"time"

	"backend-trekhub/internal/recording"
)

const (
	ReasonDistance    = "distance below minimum"
	ReasonDuration    = "duration below minimum"
	ReasonPointCount  = "point count below minimum"
	ReasonNotFinished = "recording not finished"
)

type Policy struct {
	MinDistanceM float64
	MinDuration  time.Duration
	MinFixCount  int
	TokensPerKm  float64
}

func DefaultPolicy() Policy {
	return Policy{
		MinDistanceM: 500,
		MinDuration:  5 * time.Minute,
		MinFixCount:  10,
		TokensPerKm:  10,
	}
}

type Result struct {
	Completed            bool       `json:"completed"`
	CompletionPercentage float64    `json:"completion_percentage"`
	DistanceM            float64    `json:"distance_m"`
	DurationSec          float64    `json:"duration_sec"`
	FixCount             int        `json:"fix_count"`
	Difficulty           Difficulty `json:"difficulty"`
	TokenEstimate        int64      `json:"token_estimate"`
	NFTEligible          bool       `json:"nft_eligible"`
	Reasons              []string   `json:"reasons"`
}

// Input carries what the verifier needs besides the recording itself.
// A nil Fitness leaves the trail difficulty unchanged.
type Input struct {
	Difficulty Difficulty
	Fitness    *Fitness
}

// Verify judges a finished recording against p. It never fails: an
// unfinished or short recording yields Completed=false with reasons.
func Verify(rec recording.Recording, p Policy, in Input) Result {
	stats := rec.Stats
	res := Result{
		DistanceM:   stats.DistanceM,
		DurationSec: stats.DurationSec,
		FixCount:    stats.PointCount,
		Difficulty:  in.Difficulty,
		Reasons:     []string{},
	}
	if res.Difficulty == "" {
		res.Difficulty = Easy
	}
	if in.Fitness != nil {
		res.Difficulty = PersonalizedDifficulty(res.Difficulty, *in.Fitness)
	}

	distanceRatio := ratio(stats.DistanceM, p.MinDistanceM)
	durationRatio := ratio(stats.DurationSec, p.MinDuration.Seconds())
	countRatio := ratio(float64(stats.PointCount), float64(p.MinFixCount))

	if distanceRatio < 1 {
		res.Reasons = append(res.Reasons, ReasonDistance)
	}
	if durationRatio < 1 {
		res.Reasons = append(res.Reasons, ReasonDuration)
	}
	if countRatio < 1 {
		res.Reasons = append(res.Reasons, ReasonPointCount)
	}
	thresholdsMet := len(res.Reasons) == 0
	if stats.State != recording.StateStopped {
		res.Reasons = append(res.Reasons, ReasonNotFinished)
	}

	res.CompletionPercentage = percentage(math.Min(distanceRatio, math.Min(durationRatio, countRatio)), thresholdsMet)
	res.Completed = len(res.Reasons) == 0
	res.NFTEligible = res.Completed
	res.TokenEstimate = TokenEstimate(stats.DistanceM, p.TokensPerKm, res.Difficulty)
	return res
}

// TokenEstimate is floor(km * perKm * multiplier); it grows with distance.
func TokenEstimate(distanceM, perKm float64, d Difficulty) int64 {
	if distanceM <= 0 || perKm <= 0 {
		return 0
	}
	return int64(math.Floor(distanceM / 1000 * perKm * d.Multiplier()))
}

// ratio treats a non-positive minimum as always satisfied.
func ratio(value, minimum float64) float64 {
	if minimum <= 0 {
		return 1
	}
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return value / minimum
}

func percentage(worst float64, thresholdsMet bool) float64 {
	pct := math.Min(100, 100*worst)
	// 100 is reserved for recordings that meet every threshold
	if !thresholdsMet && pct >= 100 {
		pct = math.Nextafter(100, 0)
	}
	return math.Max(0, pct)
}
