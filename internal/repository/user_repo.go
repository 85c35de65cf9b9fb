package repository

import (
	"context"

	"minefield_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, username, gems, created_at FROM users WHERE id = $1`,
		id,
	)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Gems, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, username, gems, created_at FROM users WHERE username = $1`,
		username,
	)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Gems, &u.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	// Starting balance for new accounts
	const initialGems = 10000

	return r.db.QueryRow(ctx,
		`INSERT INTO users (username, gems)
		 VALUES ($1, $2)
		 RETURNING id, gems, created_at`,
		u.Username, initialGems,
	).Scan(&u.ID, &u.Gems, &u.CreatedAt)
}

// TopUserEntry represents a user in the leaderboard
type TopUserEntry struct {
	Rank     int         `json:"rank"`
	User     domain.User `json:"user"`
	TotalWon int64       `json:"total_won"`
}

// GetTopByWinnings returns users ordered by total collected winnings in
// the current month.
func (r *UserRepository) GetTopByWinnings(ctx context.Context, limit int) ([]TopUserEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.username, u.gems, u.created_at, COALESCE(w.total_won, 0) AS total_won
		FROM users u
		LEFT JOIN (
			SELECT user_id, SUM(win_amount) AS total_won
			FROM round_history
			WHERE created_at >= date_trunc('month', CURRENT_DATE) AND result = 'win'
			GROUP BY user_id
		) w ON w.user_id = u.id
		ORDER BY total_won DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TopUserEntry
	rank := 1
	for rows.Next() {
		var u domain.User
		var totalWon int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Gems, &u.CreatedAt, &totalWon); err != nil {
			return nil, err
		}
		res = append(res, TopUserEntry{Rank: rank, User: u, TotalWon: totalWon})
		rank++
	}
	return res, nil
}
