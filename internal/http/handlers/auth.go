package handlers

import (
	"net/http"
	"regexp"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Auth logs a user in by username, creating the account on first sight,
// and returns a JWT. Real identity and session management live outside the
// game core; the engine only ever sees the opaque user id from the token.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if !usernameRe.MatchString(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username may contain only letters, digits and underscores"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.UserRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if user == nil {
		user = &domain.User{Username: req.Username}
		if err := h.UserRepo.Create(ctx, user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
	}

	token, err := service.GenerateJWT(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	h.AuditService.Log(ctx, user.ID, domain.AuditActionLogin, domain.AuditCategoryAuth, map[string]interface{}{
		"ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":         user.ID,
			"username":   user.Username,
			"gems":       user.Gems,
			"created_at": user.CreatedAt,
		},
	})
}
