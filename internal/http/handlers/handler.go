package handlers

import (
	"minefield_webapp/internal/game"
	"minefield_webapp/internal/repository"
	"minefield_webapp/internal/service"
	"minefield_webapp/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HandlerConfig holds configuration for handler
type HandlerConfig struct {
	Odds      game.OddsParams
	GridSizes []int
	MinBet    int64
	MaxBet    int64
}

type Handler struct {
	DB              *pgxpool.Pool
	UserRepo        *repository.UserRepository
	RoundRepo       *repository.RoundRepository
	TransactionRepo *repository.TransactionRepository
	Ledger          *service.PgLedger
	RoundService    *service.RoundService
	AuditService    *service.AuditService
	Hub             *ws.Hub
}

func NewHandler(db *pgxpool.Pool, cfg HandlerConfig, hub *ws.Hub) *Handler {
	ledger := service.NewPgLedger(db)
	return &Handler{
		DB:              db,
		UserRepo:        repository.NewUserRepository(db),
		RoundRepo:       repository.NewRoundRepository(db),
		TransactionRepo: repository.NewTransactionRepository(db),
		Ledger:          ledger,
		RoundService: service.NewRoundService(ledger, service.RoundConfig{
			Odds:      cfg.Odds,
			GridSizes: cfg.GridSizes,
			MinBet:    cfg.MinBet,
			MaxBet:    cfg.MaxBet,
		}),
		AuditService: service.NewAuditService(db),
		Hub:          hub,
	}
}

// getUserID extracts the authenticated user id set by the JWT middleware.
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
