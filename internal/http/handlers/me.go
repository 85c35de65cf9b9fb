package handlers

import (
	"net/http"
	"strconv"

	"minefield_webapp/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	user, err := h.UserRepo.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"gems":       user.Gems,
		"created_at": user.CreatedAt,
	})
}

const (
	bonusAmount    = 1000
	bonusThreshold = 100
)

// ClaimBonus tops up players who have run their balance below the
// threshold, so they can keep playing without a deposit.
func (h *Handler) ClaimBonus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	newBalance, err := h.Ledger.ClaimBonus(c.Request.Context(), userID, bonusAmount, bonusThreshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.AuditService.Log(c.Request.Context(), userID, domain.AuditActionBonusClaim, domain.AuditCategoryBalance, map[string]interface{}{
		"amount": bonusAmount,
	})

	c.JSON(http.StatusOK, gin.H{"gems": newBalance})
}

// Transactions returns the caller's ledger journal.
func (h *Handler) Transactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txs, err := h.Ledger.TransactionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
