package service

import (
	"context"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/logger"
	"minefield_webapp/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditService handles audit logging
type AuditService struct {
	repo *repository.AuditRepository
}

func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewAuditRepository(db),
	}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	entry := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogRound logs a terminal round outcome.
func (s *AuditService) LogRound(ctx context.Context, userID int64, roundID string, bet, winAmount int64, won bool, details map[string]interface{}) {
	action := domain.AuditActionRoundTrapped
	if won {
		action = domain.AuditActionRoundCollected
	}

	if details == nil {
		details = make(map[string]interface{})
	}
	details["round_id"] = roundID
	details["bet"] = bet
	details["win_amount"] = winAmount

	s.Log(ctx, userID, action, domain.AuditCategoryRound, details)
}

// LogOwnershipViolation records a caller touching a round they do not own.
// These are potential tampering attempts and are never silently dropped.
func (s *AuditService) LogOwnershipViolation(ctx context.Context, userID int64, roundID, ip, userAgent string) {
	entry := &domain.AuditLog{
		UserID:    userID,
		Action:    domain.AuditActionOwnershipViolation,
		Category:  domain.AuditCategorySecurity,
		Details:   map[string]interface{}{"round_id": roundID},
		IP:        ip,
		UserAgent: userAgent,
	}

	logger.Warn("round ownership violation", "user_id", userID, "round_id", roundID, "ip", ip)

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "user_id", userID)
	}
}
