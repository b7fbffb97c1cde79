package tracking

import (
	"context"
	"errors"
	"time"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/db"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/shared/geo"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var pointColumns = []string{"session_id", "seq", "segment", "lat", "lng", "altitude_m", "accuracy_m", "recorded_at"}

func (s *Service) insertSession(ctx context.Context, sess Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO recordings (id, hiker_id, trail_id, name, description, difficulty, status, started_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)
	`, sess.ID, sess.HikerID, sess.TrailID, sess.Name, sess.Description, string(sess.Difficulty), string(recording.StateRecording), sess.StartedAt)
	return err
}

// persist writes the final aggregates, the verdict and every fix in one
// transaction.
func (s *Service) persist(ctx context.Context, sess Session, rec recording.Recording, res completion.Result) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		st := rec.Stats
		tag, err := tx.Exec(ctx, `
			UPDATE recordings
			SET status=$2, ended_at=$3, distance_m=$4, duration_sec=$5, average_speed_mps=$6, max_speed_mps=$7,
			    elevation_gain_m=$8, elevation_loss_m=$9, point_count=$10, rejected_count=$11,
			    completed=$12, completion_percentage=$13, difficulty=$14, token_estimate=$15, reasons=$16
			WHERE id=$1
		`, sess.ID, string(recording.StateStopped), rec.EndedAt, st.DistanceM, st.DurationSec, st.AverageSpeedMps, st.MaxSpeedMps,
			st.ElevationGainM, st.ElevationLossM, st.PointCount, st.Rejected,
			res.Completed, res.CompletionPercentage, string(res.Difficulty), res.TokenEstimate, res.Reasons)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSessionNotFound
		}
		if len(rec.Fixes) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"track_points"}, pointColumns, pgx.CopyFromRows(pointRows(sess.ID, rec)))
		return err
	})
}

func pointRows(sessionID string, rec recording.Recording) [][]any {
	rows := make([][]any, 0, len(rec.Fixes))
	for segment, fixes := range rec.Segments() {
		for _, f := range fixes {
			rows = append(rows, []any{sessionID, len(rows), segment, f.Lat, f.Lng, f.AltitudeM, f.AccuracyM, f.Timestamp})
		}
	}
	return rows
}

const summaryQuery = `
	SELECT id, hiker_id, COALESCE(trail_id,''), name, COALESCE(description,''), status, started_at, COALESCE(ended_at, started_at),
	       COALESCE(distance_m,0), COALESCE(duration_sec,0), COALESCE(average_speed_mps,0), COALESCE(max_speed_mps,0),
	       COALESCE(elevation_gain_m,0), COALESCE(elevation_loss_m,0), COALESCE(point_count,0), COALESCE(rejected_count,0),
	       COALESCE(completed,false), COALESCE(completion_percentage,0), difficulty, COALESCE(token_estimate,0), COALESCE(reasons,'{}')
	FROM recordings WHERE id=$1`

func (s *Service) loadSummary(ctx context.Context, sessionID string) (Summary, error) {
	var sum Summary
	var status, difficulty string
	var endedAt time.Time
	var res completion.Result
	err := s.db.QueryRow(ctx, summaryQuery, sessionID).Scan(
		&sum.SessionID, &sum.HikerID, &sum.TrailID, &sum.Name, &sum.Description, &status, &sum.StartedAt, &endedAt,
		&sum.Stats.DistanceM, &sum.Stats.DurationSec, &sum.Stats.AverageSpeedMps, &sum.Stats.MaxSpeedMps,
		&sum.Stats.ElevationGainM, &sum.Stats.ElevationLossM, &sum.Stats.PointCount, &sum.Stats.Rejected,
		&res.Completed, &res.CompletionPercentage, &difficulty, &res.TokenEstimate, &res.Reasons,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrSessionNotFound
		}
		return Summary{}, err
	}
	sum.Stats.State = recording.State(status)
	if sum.Stats.State == recording.StateStopped {
		sum.EndedAt = endedAt
		res.DistanceM = sum.Stats.DistanceM
		res.DurationSec = sum.Stats.DurationSec
		res.FixCount = sum.Stats.PointCount
		res.Difficulty = completion.ParseDifficulty(difficulty)
		res.NFTEligible = res.Completed
		sum.Completion = &res
	}
	return sum, nil
}

// loadRecording rebuilds a finished recording, segments included.
func (s *Service) loadRecording(ctx context.Context, sessionID string) (recording.Recording, error) {
	sum, err := s.loadSummary(ctx, sessionID)
	if err != nil {
		return recording.Recording{}, err
	}
	return s.loadPoints(ctx, sum)
}

func (s *Service) loadPoints(ctx context.Context, sum Summary) (recording.Recording, error) {
	rec := recording.Recording{
		ID:          sum.SessionID,
		Name:        sum.Name,
		Description: sum.Description,
		StartedAt:   sum.StartedAt,
		EndedAt:     sum.EndedAt,
		Stats:       sum.Stats,
	}

	rows, err := s.db.Query(ctx, `
		SELECT segment, lat, lng, altitude_m, accuracy_m, recorded_at
		FROM track_points WHERE session_id=$1
		ORDER BY seq
	`, sum.SessionID)
	if err != nil {
		return recording.Recording{}, err
	}
	defer rows.Close()

	lastSegment := -1
	for rows.Next() {
		var segment int
		var altitude, accuracy pgtype.Float8
		var f geo.Fix
		if err := rows.Scan(&segment, &f.Lat, &f.Lng, &altitude, &accuracy, &f.Timestamp); err != nil {
			return recording.Recording{}, err
		}
		if altitude.Valid {
			f.AltitudeM = geo.Float(altitude.Float64)
		}
		if accuracy.Valid {
			f.AccuracyM = geo.Float(accuracy.Float64)
		}
		if segment != lastSegment {
			rec.SegmentStarts = append(rec.SegmentStarts, len(rec.Fixes))
			lastSegment = segment
		}
		rec.Fixes = append(rec.Fixes, f)
	}
	return rec, rows.Err()
}
