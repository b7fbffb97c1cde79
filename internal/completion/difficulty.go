package completion

import (
	"math"
	"strings"
)

type Difficulty string

const (
	Easy     Difficulty = "Easy"
	Moderate Difficulty = "Moderate"
	Hard     Difficulty = "Hard"
	Expert   Difficulty = "Expert"
)

var difficultyOrder = []Difficulty{Easy, Moderate, Hard, Expert}

// ParseDifficulty is case-insensitive. Unknown values map to Easy.
func ParseDifficulty(s string) Difficulty {
	for _, d := range difficultyOrder {
		if strings.EqualFold(s, string(d)) {
			return d
		}
	}
	return Easy
}

// Multiplier scales the token estimate.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case Moderate:
		return 1.5
	case Hard:
		return 2
	case Expert:
		return 3
	default:
		return 1
	}
}

func (d Difficulty) index() int {
	for i, candidate := range difficultyOrder {
		if candidate == d {
			return i
		}
	}
	return 0
}

type Experience string

const (
	Beginner     Experience = "beginner"
	Intermediate Experience = "intermediate"
	Advanced     Experience = "advanced"
	Veteran      Experience = "expert"
)

func (e Experience) adjustment() float64 {
	switch e {
	case Beginner:
		return -1
	case Advanced:
		return 0.5
	case Veteran:
		return 1
	default:
		return 0
	}
}

// Fitness is the part of a hiker profile that shifts difficulty.
type Fitness struct {
	Level           float64    `json:"fitness_level"`
	Experience      Experience `json:"experience_level"`
	CompletedTrails int        `json:"completed_trails"`
}

// Adjustment is positive for hikers a trail should feel easier for.
func (f Fitness) Adjustment() float64 {
	return (f.Level-50)/25 + f.Experience.adjustment() + math.Min(float64(f.CompletedTrails)/20, 0.5)
}

// PersonalizedDifficulty shifts the trail rating down by the rounded
// adjustment, clamped to Easy..Expert. Halves round up.
func PersonalizedDifficulty(trail Difficulty, f Fitness) Difficulty {
	shift := int(math.Floor(f.Adjustment() + 0.5))
	idx := trail.index() - shift
	if idx < 0 {
		idx = 0
	}
	if idx > len(difficultyOrder)-1 {
		idx = len(difficultyOrder) - 1
	}
	return difficultyOrder[idx]
}
