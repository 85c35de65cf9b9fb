package domain

import "time"

type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Gems      int64     `db:"gems" json:"gems"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
