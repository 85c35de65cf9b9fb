package service

import (
	"context"
	"errors"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Ledger is the balance collaborator consumed by the round engine. Both
// operations must be atomic with respect to concurrent calls for the same
// user: two simultaneous debits must never jointly overdraw an account.
type Ledger interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Debit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error)
	Credit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error)
}

// PgLedger implements Ledger on Postgres. Every mutation journals a row in
// the transactions table inside the same database transaction as the
// balance update.
type PgLedger struct {
	db              *pgxpool.Pool
	transactionRepo *repository.TransactionRepository
}

func NewPgLedger(db *pgxpool.Pool) *PgLedger {
	return &PgLedger{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// Balance returns the user's current balance.
func (l *PgLedger) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT gems FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Debit deducts amount from the user's balance. The balance check and the
// deduction are a single compare-and-set statement, so a stale read can
// never let two concurrent debits both pass.
func (l *PgLedger) Debit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`UPDATE users SET gems = gems - $1 WHERE id = $2 AND gems >= $1 RETURNING gems`,
		amount, userID,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Not found or insufficient funds, check which
			var exists bool
			_ = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
			if !exists {
				return 0, ErrUserNotFound
			}
			return 0, ErrInsufficientFunds
		}
		return 0, err
	}

	transaction := &domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: -amount,
		Meta:   meta,
	}
	if err = l.transactionRepo.CreateWithTx(ctx, tx, transaction); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit adds amount to the user's balance.
func (l *PgLedger) Credit(ctx context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (newBalance int64, err error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`UPDATE users SET gems = gems + $1 WHERE id = $2 RETURNING gems`,
		amount, userID,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	transaction := &domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: amount,
		Meta:   meta,
	}
	if err = l.transactionRepo.CreateWithTx(ctx, tx, transaction); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ClaimBonus gives bonus gems to the user if the balance is below the
// threshold. Used by the low-balance bonus endpoint.
func (l *PgLedger) ClaimBonus(ctx context.Context, userID int64, bonusAmount int64, minBalanceThreshold int64) (newBalance int64, err error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var balance int64
	err = tx.QueryRow(ctx, `SELECT gems FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	if balance >= minBalanceThreshold {
		return balance, errors.New("balance too high for bonus")
	}

	err = tx.QueryRow(ctx, `UPDATE users SET gems = gems + $1 WHERE id = $2 RETURNING gems`, bonusAmount, userID).Scan(&newBalance)
	if err != nil {
		return 0, err
	}

	transaction := &domain.Transaction{
		UserID: userID,
		Type:   domain.TxTypeBonus,
		Amount: bonusAmount,
		Meta:   map[string]interface{}{"reason": "low_balance_bonus"},
	}
	if err = l.transactionRepo.CreateWithTx(ctx, tx, transaction); err != nil {
		return 0, err
	}

	return newBalance, tx.Commit(ctx)
}

// TransactionHistory returns the user's ledger journal, newest first.
func (l *PgLedger) TransactionHistory(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	return l.transactionRepo.GetByUserID(ctx, userID, limit)
}
