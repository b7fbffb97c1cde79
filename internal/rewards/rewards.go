// Package rewards hands completed hikes to the token/NFT ledger. Minting
// happens elsewhere; this side only records pending claims.
package rewards

import (
	"context"
	"errors"
	"time"

	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/db"

	"github.com/google/uuid"
)

const StatusPending = "pending"

var ErrNotCompleted = errors.New("recording did not meet completion criteria")

type Claim struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	HikerID     string                `json:"hiker_id"`
	TrailID     string                `json:"trail_id,omitempty"`
	Tokens      int64                 `json:"tokens"`
	DistanceM   float64               `json:"distance_m"`
	Difficulty  completion.Difficulty `json:"difficulty"`
	NFTEligible bool                  `json:"nft_eligible"`
	Status      string                `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
}

// ClaimFor builds the claim for a verified session. Incomplete results
// are refused.
func ClaimFor(sessionID, hikerID, trailID string, res completion.Result) (Claim, error) {
	if !res.Completed {
		return Claim{}, ErrNotCompleted
	}
	return Claim{
		SessionID:   sessionID,
		HikerID:     hikerID,
		TrailID:     trailID,
		Tokens:      res.TokenEstimate,
		DistanceM:   res.DistanceM,
		Difficulty:  res.Difficulty,
		NFTEligible: res.NFTEligible,
		Status:      StatusPending,
	}, nil
}

type Ledger interface {
	Submit(ctx context.Context, c Claim) (Claim, error)
}

type PostgresLedger struct {
	db db.Querier
}

func NewPostgresLedger(db db.Querier) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Submit stores c as pending. Submitting the same session twice returns
// the claim already on file.
func (l *PostgresLedger) Submit(ctx context.Context, c Claim) (Claim, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	row := l.db.QueryRow(ctx, `
		INSERT INTO reward_claims (id, session_id, hiker_id, trail_id, tokens, distance_m, difficulty, nft_eligible, status)
		VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9)
		ON CONFLICT (session_id) DO UPDATE SET session_id=EXCLUDED.session_id
		RETURNING id, status, created_at
	`, c.ID, c.SessionID, c.HikerID, c.TrailID, c.Tokens, c.DistanceM, string(c.Difficulty), c.NFTEligible, c.Status)
	if err := row.Scan(&c.ID, &c.Status, &c.CreatedAt); err != nil {
		return Claim{}, err
	}
	return c, nil
}

func (l *PostgresLedger) Claims(ctx context.Context, hikerID string) ([]Claim, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, session_id, hiker_id, COALESCE(trail_id,''), tokens, distance_m, difficulty, nft_eligible, status, created_at
		FROM reward_claims WHERE hiker_id=$1
		ORDER BY created_at DESC
	`, hikerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []Claim
	for rows.Next() {
		var c Claim
		var difficulty string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.HikerID, &c.TrailID, &c.Tokens, &c.DistanceM, &difficulty, &c.NFTEligible, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Difficulty = completion.ParseDifficulty(difficulty)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
