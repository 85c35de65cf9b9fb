package domain

import "time"

// RoundResult - final outcome of a finished round
type RoundResult string

const (
	RoundResultWin  RoundResult = "win"
	RoundResultLose RoundResult = "lose"
)

// RoundHistory - persisted record of a finished round. The in-memory round
// owned by the game engine is authoritative while play is in progress;
// history rows are written once the round reaches a terminal state.
type RoundHistory struct {
	ID          int64                  `db:"id" json:"id"`
	UserID      int64                  `db:"user_id" json:"user_id"`
	RoundID     string                 `db:"round_id" json:"round_id"`
	GridSize    int                    `db:"grid_size" json:"grid_size"`
	HazardCount int                    `db:"hazard_count" json:"hazard_count"`
	Result      RoundResult            `db:"result" json:"result"`
	BetAmount   int64                  `db:"bet_amount" json:"bet_amount"`
	WinAmount   int64                  `db:"win_amount" json:"win_amount"`
	Details     map[string]interface{} `db:"details" json:"details,omitempty"`
	CreatedAt   time.Time              `db:"created_at" json:"created_at"`
}
