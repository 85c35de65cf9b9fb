package repository

import (
	"context"
	"encoding/json"
	"time"

	"minefield_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoundRepository struct {
	db *pgxpool.Pool
}

func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create persists a finished round.
func (r *RoundRepository) Create(ctx context.Context, rh *domain.RoundHistory) error {
	detailsJSON, err := json.Marshal(rh.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return r.db.QueryRow(ctx,
		`INSERT INTO round_history
			(user_id, round_id, grid_size, hazard_count, result, bet_amount, win_amount, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		rh.UserID,
		rh.RoundID,
		rh.GridSize,
		rh.HazardCount,
		rh.Result,
		rh.BetAmount,
		rh.WinAmount,
		detailsJSON,
	).Scan(&rh.ID, &rh.CreatedAt)
}

// GetByUser returns the user's round history, newest first.
func (r *RoundRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*domain.RoundHistory, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, round_id, grid_size, hazard_count, result,
				bet_amount, win_amount, details, created_at
		 FROM round_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// UserStats - aggregate round statistics for one user
type UserStats struct {
	UserID      int64 `json:"user_id"`
	TotalRounds int   `json:"total_rounds"`
	Wins        int   `json:"wins"`
	Losses      int   `json:"losses"`
	TotalStaked int64 `json:"total_staked"`
	TotalWon    int64 `json:"total_won"`
}

// GetUserStats returns the user's statistics since the given time.
func (r *RoundRepository) GetUserStats(ctx context.Context, userID int64, since time.Time) (*UserStats, error) {
	stats := &UserStats{UserID: userID}

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*) AS total_rounds,
			COUNT(*) FILTER (WHERE result = 'win') AS wins,
			COUNT(*) FILTER (WHERE result = 'lose') AS losses,
			COALESCE(SUM(bet_amount), 0) AS total_staked,
			COALESCE(SUM(win_amount) FILTER (WHERE result = 'win'), 0) AS total_won
		 FROM round_history
		 WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&stats.TotalRounds, &stats.Wins, &stats.Losses, &stats.TotalStaked, &stats.TotalWon)

	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *RoundRepository) scanRows(rows pgx.Rows) ([]*domain.RoundHistory, error) {
	var result []*domain.RoundHistory

	for rows.Next() {
		var (
			rh          domain.RoundHistory
			detailsJSON []byte
		)

		if err := rows.Scan(
			&rh.ID, &rh.UserID, &rh.RoundID, &rh.GridSize, &rh.HazardCount,
			&rh.Result, &rh.BetAmount, &rh.WinAmount, &detailsJSON, &rh.CreatedAt,
		); err != nil {
			return nil, err
		}

		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &rh.Details)
		}
		result = append(result, &rh)
	}

	return result, nil
}
