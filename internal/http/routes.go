package http

import (
	"time"

	"minefield_webapp/internal/config"
	"minefield_webapp/internal/http/handlers"
	"minefield_webapp/internal/http/middleware"
	"minefield_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, version string) {
	hub := ws.NewHub()
	h := handlers.NewHandler(db, handlers.HandlerConfig{
		Odds:      cfg.Odds(),
		GridSizes: cfg.GridSizes,
		MinBet:    cfg.MinBet,
		MaxBet:    cfg.MaxBet,
	}, hub)
	healthHandler := handlers.NewHealthHandler(db, version)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	apiRateWindow := time.Duration(cfg.APIRateWindow) * time.Second
	authRateWindow := time.Duration(cfg.AuthRateWindow) * time.Second
	gameRateWindow := time.Duration(cfg.GameRateWindow) * time.Second

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, apiRateWindow))

	// Auth
	v1.POST("/auth", middleware.RedisRateLimit(cfg.AuthRateLimit, authRateWindow), h.Auth)

	// Profile
	v1.GET("/me", middleware.JWT(), h.Me)
	v1.POST("/profile/bonus", middleware.JWT(), h.ClaimBonus)
	v1.GET("/me/transactions", middleware.JWT(), h.Transactions)

	// In-process backstop for the unauthenticated endpoints; the Redis
	// limiter above is fail-open when Redis is absent.
	publicRL := middleware.SimpleRateLimit(cfg.APIRateLimit, apiRateWindow)

	// Round history and stats
	v1.GET("/me/rounds", middleware.JWT(), h.MyRounds)
	v1.GET("/me/stats", middleware.JWT(), h.MyStats)
	v1.GET("/top", publicRL, h.TopUsers)

	// Game action rate limiter (per user, not per IP)
	gameRL := middleware.GameRateLimit(cfg.GameRateLimit, gameRateWindow)
	startRL := middleware.GameRateLimitByType("mines", cfg.GameRateLimit, gameRateWindow)

	// Round engine endpoints
	v1.POST("/game/mines/start", middleware.JWT(), startRL, h.RoundStart)
	v1.POST("/game/mines/reveal", middleware.JWT(), gameRL, h.RoundReveal)
	v1.POST("/game/mines/cashout", middleware.JWT(), h.RoundCashOut)
	v1.GET("/game/mines/state", middleware.JWT(), h.RoundState)
	v1.GET("/game/mines/info", publicRL, h.RoundInfo)

	// Round event feed
	r.GET("/ws", h.WS())
}
