package profile

import (
	"time"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/emergency"
)

const (
	DefaultFitnessLevel = 50
	DefaultPace         = 15 // minutes per km
)

type Profile struct {
	HikerID             string                  `json:"hiker_id"`
	FitnessLevel        float64                 `json:"fitness_level"`
	ExperienceLevel     completion.Experience   `json:"experience_level"`
	CompletedTrails     int                     `json:"completed_trails"`
	TotalDistanceM      float64                 `json:"total_distance_m"`
	AveragePace         float64                 `json:"average_pace"`
	PreferredDifficulty []completion.Difficulty `json:"preferred_difficulty"`
	MedicalConditions   []string                `json:"medical_conditions,omitempty"`
	Contacts            []emergency.Contact     `json:"emergency_contacts"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// Default is the profile of a hiker with no history.
func Default(hikerID string) Profile {
	return Profile{
		HikerID:             hikerID,
		FitnessLevel:        DefaultFitnessLevel,
		ExperienceLevel:     completion.Intermediate,
		AveragePace:         DefaultPace,
		PreferredDifficulty: []completion.Difficulty{completion.Easy, completion.Moderate},
		Contacts:            []emergency.Contact{},
	}
}

func (p Profile) Fitness() completion.Fitness {
	return completion.Fitness{
		Level:           p.FitnessLevel,
		Experience:      p.ExperienceLevel,
		CompletedTrails: p.CompletedTrails,
	}
}

// FitnessLevel scores a hiker 0..100 from history: a base of 30, up to 30
// for completed trails, up to 25 for distance and up to 15 for pace.
func FitnessLevel(completedTrails int, totalDistanceM, averagePace float64) float64 {
	score := 30.0
	score += min(float64(completedTrails)*2, 30)
	score += min(totalDistanceM/1000/10, 25)
	score += min(max(0, 15-(averagePace-10)), 15)
	return min(max(score, 0), 100)
}

func ExperienceFor(completedTrails int, totalDistanceM float64) completion.Experience {
	km := totalDistanceM / 1000
	switch {
	case completedTrails < 5 || km < 20:
		return completion.Beginner
	case completedTrails < 20 || km < 100:
		return completion.Intermediate
	case completedTrails < 50 || km < 300:
		return completion.Advanced
	default:
		return completion.Veteran
	}
}

// AfterCompletion folds one finished trail into the totals. A zero-distance
// trail leaves the average pace unchanged.
func (p Profile) AfterCompletion(distanceM, durationSec float64) Profile {
	prev := p.CompletedTrails
	p.CompletedTrails++
	p.TotalDistanceM += distanceM
	if distanceM > 0 {
		pace := (durationSec / 60) / (distanceM / 1000)
		p.AveragePace = (p.AveragePace*float64(prev) + pace) / float64(p.CompletedTrails)
	}
	p.FitnessLevel = FitnessLevel(p.CompletedTrails, p.TotalDistanceM, p.AveragePace)
	p.ExperienceLevel = ExperienceFor(p.CompletedTrails, p.TotalDistanceM)
	return p
}
