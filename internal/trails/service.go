package trails

import (
	"context"
	"errors"
	"strings"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/db"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound    = errors.New("trail not found")
	ErrNameMissing = errors.New("trail name required")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Create stores a trail. Distance and elevation gain are derived from the
// route when not given.
func (s *Service) Create(ctx context.Context, t Trail) (Trail, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Trail{}, ErrNameMissing
	}
	if len(t.Route) < 2 {
		return Trail{}, ErrBadRoute
	}
	for _, f := range t.Route {
		if err := geo.ValidateFix(f); err != nil {
			return Trail{}, err
		}
	}
	t.Difficulty = completion.ParseDifficulty(string(t.Difficulty))
	if t.DistanceM == 0 {
		t.DistanceM = geo.TotalDistance(t.Route)
	}
	if t.ElevationGainM == 0 {
		t.ElevationGainM = geo.ElevationGain(t.Route)
	}
	route, err := routeWKT(t.Route)
	if err != nil {
		return Trail{}, err
	}
	t.ID = uuid.NewString()

	row := s.db.QueryRow(ctx, `
		INSERT INTO trails (id, name, location, description, difficulty, distance_m, elevation_gain_m, route, created_by, source_session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7, ST_GeogFromText($8), $9, NULLIF($10,''))
		RETURNING created_at
	`, t.ID, t.Name, t.Location, t.Description, string(t.Difficulty), t.DistanceM, t.ElevationGainM, route, t.CreatedBy, t.SourceSession)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return Trail{}, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id string) (Trail, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, location, description, difficulty, distance_m, elevation_gain_m, ST_AsEWKB(route::geometry), created_by, COALESCE(source_session_id,''), created_at
		FROM trails WHERE id=$1
	`, id)
	var t Trail
	var difficulty string
	var rawRoute []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Location, &t.Description, &difficulty, &t.DistanceM, &t.ElevationGainM, &rawRoute, &t.CreatedBy, &t.SourceSession, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trail{}, ErrNotFound
		}
		return Trail{}, err
	}
	t.Difficulty = completion.ParseDifficulty(difficulty)
	route, err := decodeRoute(rawRoute)
	if err != nil {
		return Trail{}, err
	}
	t.Route = route
	return t, nil
}

// List returns trails without their routes, optionally filtered by
// difficulty.
func (s *Service) List(ctx context.Context, difficulty string) ([]Trail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, location, description, difficulty, distance_m, elevation_gain_m, created_by, COALESCE(source_session_id,''), created_at
		FROM trails
		WHERE ($1 = '' OR lower(difficulty) = lower($1))
		ORDER BY name
	`, difficulty)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trails := []Trail{}
	for rows.Next() {
		var t Trail
		var d string
		if err := rows.Scan(&t.ID, &t.Name, &t.Location, &t.Description, &d, &t.DistanceM, &t.ElevationGainM, &t.CreatedBy, &t.SourceSession, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Difficulty = completion.ParseDifficulty(d)
		trails = append(trails, t)
	}
	return trails, rows.Err()
}

// Delete removes a trail the hiker created. Trails owned by someone else
// report ErrNotFound.
func (s *Service) Delete(ctx context.Context, id, hikerID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trails WHERE id=$1 AND created_by=$2`, id, hikerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FromRecording turns a finished recording into a user-contributed trail.
func FromRecording(rec recording.Recording, createdBy string, difficulty completion.Difficulty) Trail {
	route := make([]geo.Fix, len(rec.Fixes))
	copy(route, rec.Fixes)
	return Trail{
		Name:           rec.Name,
		Description:    rec.Description,
		Difficulty:     difficulty,
		DistanceM:      rec.Stats.DistanceM,
		ElevationGainM: rec.Stats.ElevationGainM,
		Route:          route,
		CreatedBy:      createdBy,
		SourceSession:  rec.ID,
	}
}
