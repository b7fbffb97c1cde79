package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/db"
	"backend-trekhub/internal/emergency"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrContactNotFound = errors.New("emergency contact not found")
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrInvalidContact  = errors.New("contact name and phone required")
)

type Service struct {
	db db.TxQuerier
}

func NewService(db db.TxQuerier) *Service {
	return &Service{db: db}
}

const selectProfile = `
	SELECT hiker_id, fitness_level, experience_level, completed_trails, total_distance_m, average_pace, preferred_difficulty, medical_conditions, updated_at
	FROM hiker_profiles WHERE hiker_id=$1`

// Get loads a hiker's profile with contacts. Hikers without a stored
// profile get Default.
func (s *Service) Get(ctx context.Context, hikerID string) (Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx, selectProfile, hikerID))
	if errors.Is(err, pgx.ErrNoRows) {
		p = Default(hikerID)
	} else if err != nil {
		return Profile{}, err
	}

	contacts, err := s.Contacts(ctx, hikerID)
	if err != nil {
		return Profile{}, err
	}
	p.Contacts = contacts
	return p, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var experience string
	var preferred []string
	if err := row.Scan(&p.HikerID, &p.FitnessLevel, &experience, &p.CompletedTrails, &p.TotalDistanceM, &p.AveragePace, &preferred, &p.MedicalConditions, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	p.ExperienceLevel = completion.Experience(experience)
	for _, d := range preferred {
		p.PreferredDifficulty = append(p.PreferredDifficulty, completion.ParseDifficulty(d))
	}
	return p, nil
}

func (s *Service) Upsert(ctx context.Context, p Profile) (Profile, error) {
	return upsert(ctx, s.db, p)
}

func upsert(ctx context.Context, q db.Querier, p Profile) (Profile, error) {
	if p.HikerID == "" || p.FitnessLevel < 0 || p.FitnessLevel > 100 {
		return Profile{}, ErrInvalidProfile
	}
	if p.ExperienceLevel == "" {
		p.ExperienceLevel = completion.Intermediate
	}
	if p.AveragePace <= 0 {
		p.AveragePace = DefaultPace
	}
	preferred := make([]string, 0, len(p.PreferredDifficulty))
	for _, d := range p.PreferredDifficulty {
		preferred = append(preferred, string(d))
	}

	row := q.QueryRow(ctx, `
		INSERT INTO hiker_profiles (hiker_id, fitness_level, experience_level, completed_trails, total_distance_m, average_pace, preferred_difficulty, medical_conditions, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())
		ON CONFLICT (hiker_id) DO UPDATE SET
			fitness_level=EXCLUDED.fitness_level,
			experience_level=EXCLUDED.experience_level,
			completed_trails=EXCLUDED.completed_trails,
			total_distance_m=EXCLUDED.total_distance_m,
			average_pace=EXCLUDED.average_pace,
			preferred_difficulty=EXCLUDED.preferred_difficulty,
			medical_conditions=EXCLUDED.medical_conditions,
			updated_at=now()
		RETURNING updated_at
	`, p.HikerID, p.FitnessLevel, string(p.ExperienceLevel), p.CompletedTrails, p.TotalDistanceM, p.AveragePace, preferred, p.MedicalConditions)
	if err := row.Scan(&p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// RecordCompletion adds a finished trail to the hiker's totals and
// recomputes fitness and experience. The profile row is locked for the
// read-modify-write so concurrent completions all count.
func (s *Service) RecordCompletion(ctx context.Context, hikerID string, distanceM, durationSec float64) (Profile, error) {
	var p Profile
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		def := Default(hikerID)
		if _, err := tx.Exec(ctx, `
			INSERT INTO hiker_profiles (hiker_id, fitness_level, experience_level, completed_trails, total_distance_m, average_pace, preferred_difficulty, updated_at)
			VALUES ($1,$2,$3,0,0,$4,$5, now())
			ON CONFLICT (hiker_id) DO NOTHING
		`, hikerID, def.FitnessLevel, string(def.ExperienceLevel), def.AveragePace, []string{string(completion.Easy), string(completion.Moderate)}); err != nil {
			return err
		}
		current, err := scanProfile(tx.QueryRow(ctx, selectProfile+" FOR UPDATE", hikerID))
		if err != nil {
			return err
		}
		p, err = upsert(ctx, tx, current.AfterCompletion(distanceM, durationSec))
		return err
	})
	if err != nil {
		return Profile{}, fmt.Errorf("record completion: %w", err)
	}
	contacts, err := s.Contacts(ctx, hikerID)
	if err != nil {
		return Profile{}, err
	}
	p.Contacts = contacts
	return p, nil
}

func (s *Service) Contacts(ctx context.Context, hikerID string) ([]emergency.Contact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, COALESCE(email,''), COALESCE(relationship,''), priority
		FROM emergency_contacts WHERE hiker_id=$1
		ORDER BY priority, name
	`, hikerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []emergency.Contact{}
	for rows.Next() {
		var c emergency.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Relationship, &c.Priority); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Service) AddContact(ctx context.Context, hikerID string, c emergency.Contact) (emergency.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" || c.Phone == "" {
		return emergency.Contact{}, ErrInvalidContact
	}
	c.ID = uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO emergency_contacts (id, hiker_id, name, phone, email, relationship, priority)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7)
	`, c.ID, hikerID, c.Name, c.Phone, c.Email, c.Relationship, c.Priority)
	if err != nil {
		return emergency.Contact{}, err
	}
	return c, nil
}

func (s *Service) RemoveContact(ctx context.Context, hikerID, contactID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM emergency_contacts WHERE hiker_id=$1 AND id=$2`, hikerID, contactID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}
