package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/game"
	"minefield_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

// RoundStartRequest represents the start round request
type RoundStartRequest struct {
	Bet         int64 `json:"bet" binding:"required,min=1"`
	GridSize    int   `json:"grid_size" binding:"required"`
	HazardCount int   `json:"hazard_count" binding:"required,min=1"`
}

// RoundRevealRequest represents the reveal tile request
type RoundRevealRequest struct {
	RoundID string `json:"round_id" binding:"required"`
	Tile    *int   `json:"tile" binding:"required"`
}

// RoundCashOutRequest represents the cash out request
type RoundCashOutRequest struct {
	RoundID string `json:"round_id" binding:"required"`
}

// respondError maps the engine error taxonomy to a status and a stable
// code the client can branch on.
func (h *Handler) respondError(c *gin.Context, userID int64, roundID string, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, game.ErrInvalidConfiguration):
		status, code = http.StatusBadRequest, "invalid_configuration"
	case errors.Is(err, service.ErrInsufficientFunds):
		status, code = http.StatusBadRequest, "insufficient_funds"
	case errors.Is(err, service.ErrActiveRound):
		status, code = http.StatusConflict, "active_round"
	case errors.Is(err, game.ErrRoundNotFound):
		status, code = http.StatusNotFound, "round_not_found"
	case errors.Is(err, game.ErrNotOwner):
		status, code = http.StatusForbidden, "not_owner"
		// Touching someone else's round is a tampering signal, not a
		// user mistake.
		go h.AuditService.LogOwnershipViolation(context.Background(), userID, roundID,
			c.ClientIP(), c.Request.UserAgent())
	case errors.Is(err, game.ErrRoundNotActive):
		status, code = http.StatusConflict, "round_not_active"
	case errors.Is(err, game.ErrTileAlreadyRevealed):
		status, code = http.StatusConflict, "tile_already_revealed"
	case errors.Is(err, game.ErrTileOutOfRange):
		status, code = http.StatusBadRequest, "tile_out_of_range"
	case errors.Is(err, game.ErrNothingToCollect):
		status, code = http.StatusBadRequest, "nothing_to_collect"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// RoundStart starts a new round: validates parameters, debits the stake and
// places the hazards server-side.
func (h *Handler) RoundStart(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req RoundStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	r, newBalance, err := h.RoundService.Start(ctx, userID, req.Bet, req.GridSize, req.HazardCount)
	if err != nil {
		h.respondError(c, userID, "", err)
		return
	}

	h.AuditService.Log(ctx, userID, domain.AuditActionRoundStart, domain.AuditCategoryRound, map[string]interface{}{
		"round_id":     r.ID,
		"bet":          req.Bet,
		"grid_size":    req.GridSize,
		"hazard_count": req.HazardCount,
	})

	state := r.Snapshot()
	state["gems"] = newBalance

	h.Hub.Publish(userID, "round_started", state)
	c.JSON(http.StatusOK, state)
}

// RoundReveal reveals one tile of the caller's round.
func (h *Handler) RoundReveal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req RoundRevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	res, r, err := h.RoundService.Reveal(ctx, userID, req.RoundID, *req.Tile)
	if err != nil {
		h.respondError(c, userID, req.RoundID, err)
		return
	}

	state := r.Snapshot()
	state["hit_hazard"] = res.Hazard
	state["tile"] = res.TileIndex

	if !r.Active() {
		h.recordRound(userID, r)
		h.Hub.Publish(userID, "round_finished", state)
	} else {
		h.Hub.Publish(userID, "tile_revealed", state)
	}

	balance, err := h.Ledger.Balance(ctx, userID)
	if err == nil {
		state["gems"] = balance
	}

	c.JSON(http.StatusOK, state)
}

// RoundCashOut collects the accumulated winnings and ends the round.
func (h *Handler) RoundCashOut(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req RoundCashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	amount, newBalance, r, err := h.RoundService.CashOut(ctx, userID, req.RoundID)
	if err != nil {
		h.respondError(c, userID, req.RoundID, err)
		return
	}

	h.recordRound(userID, r)

	state := r.Snapshot()
	state["collected"] = amount
	state["gems"] = newBalance

	h.Hub.Publish(userID, "round_finished", state)
	c.JSON(http.StatusOK, state)
}

// RoundState returns the caller's active round, if any. Used by the client
// to restore the board after a reload.
func (h *Handler) RoundState(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	r := h.RoundService.Active(userID)
	if r == nil {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	state := r.Snapshot()
	state["active"] = true
	c.JSON(http.StatusOK, state)
}

// RoundInfo returns the game configuration: grid options, bet limits and
// the payout table per hazard count.
func (h *Handler) RoundInfo(c *gin.Context) {
	cfg := h.RoundService.Config()

	grids := make([]gin.H, 0, len(cfg.GridSizes))
	for _, size := range cfg.GridSizes {
		maxHazards := int(float64(size) * game.MaxHazardRatio)
		tables := make(map[int][]float64, maxHazards)
		for hazards := 1; hazards <= maxHazards; hazards++ {
			tables[hazards] = game.MultiplierTable(size, hazards, cfg.Odds)
		}
		grids = append(grids, gin.H{
			"size":              size,
			"max_hazards":       maxHazards,
			"multiplier_tables": tables,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"grids":        grids,
		"min_bet":      cfg.MinBet,
		"max_bet":      cfg.MaxBet,
		"house_edge":   cfg.Odds.HouseEdge,
		"payout_floor": cfg.Odds.PayoutFloor,
		"payout_cap":   cfg.Odds.PayoutCap,
	})
}

// recordRound persists a terminal round to history and the audit log.
func (h *Handler) recordRound(userID int64, r *game.Round) {
	result := domain.RoundResultLose
	winAmount := int64(0)
	if r.State() == game.StateCollected {
		result = domain.RoundResultWin
		winAmount = r.Winnings()
	}

	details := r.Details()
	rh := &domain.RoundHistory{
		UserID:      userID,
		RoundID:     r.ID,
		GridSize:    r.GridSize,
		HazardCount: r.HazardCount,
		Result:      result,
		BetAmount:   r.Bet,
		WinAmount:   winAmount,
		Details:     details,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.RoundRepo.Create(ctx, rh)
		h.AuditService.LogRound(ctx, userID, r.ID, r.Bet, winAmount, result == domain.RoundResultWin, details)
	}()
}
