package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/game"
)

// fakeLedger is an in-memory Ledger with the same atomicity contract as
// PgLedger: the balance check and deduction are one step under a lock.
type fakeLedger struct {
	mu         sync.Mutex
	balances   map[int64]int64
	failCredit bool
	onCredit   func() // runs at the top of Credit, before any mutation
	journal    []*domain.Transaction
}

func newFakeLedger(balances map[int64]int64) *fakeLedger {
	return &fakeLedger{balances: balances}
}

func (l *fakeLedger) Balance(_ context.Context, userID int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return b, nil
}

func (l *fakeLedger) Debit(_ context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if b < amount {
		return 0, ErrInsufficientFunds
	}
	l.balances[userID] = b - amount
	l.journal = append(l.journal, &domain.Transaction{UserID: userID, Type: txType, Amount: -amount, Meta: meta})
	return l.balances[userID], nil
}

func (l *fakeLedger) Credit(_ context.Context, userID int64, amount int64, txType string, meta map[string]interface{}) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if l.onCredit != nil {
		l.onCredit()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failCredit {
		return 0, errors.New("ledger unavailable")
	}
	if _, ok := l.balances[userID]; !ok {
		return 0, ErrUserNotFound
	}
	l.balances[userID] += amount
	l.journal = append(l.journal, &domain.Transaction{UserID: userID, Type: txType, Amount: amount, Meta: meta})
	return l.balances[userID], nil
}

func testConfig() RoundConfig {
	return RoundConfig{
		Odds:      game.DefaultOdds,
		GridSizes: []int{16, 25, 36},
		MinBet:    10,
		MaxBet:    100000,
	}
}

// revealSafe reveals one unrevealed safe tile and returns the result.
func revealSafe(t *testing.T, s *RoundService, userID int64, r *game.Round) game.RevealResult {
	t.Helper()
	isHazard := make(map[int]bool)
	for _, h := range r.HazardTiles() {
		isHazard[h] = true
	}
	revealed := make(map[int]bool)
	for _, idx := range r.RevealedTiles() {
		revealed[idx] = true
	}
	for i := 0; i < r.GridSize; i++ {
		if isHazard[i] || revealed[i] {
			continue
		}
		res, _, err := s.Reveal(context.Background(), userID, r.ID, i)
		if err != nil {
			t.Fatalf("reveal safe tile %d: %v", i, err)
		}
		return res
	}
	t.Fatal("no unrevealed safe tile left")
	return game.RevealResult{}
}

func TestStart_DebitsStake(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, newBalance, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if newBalance != 900 {
		t.Fatalf("balance after start = %d; want 900", newBalance)
	}
	if r.State() != game.StatePlaying {
		t.Fatalf("state = %s; want playing", r.State())
	}
	if s.ActiveCount() != 1 {
		t.Fatalf("active rounds = %d; want 1", s.ActiveCount())
	}

	if _, _, err := s.Start(context.Background(), 1, 100, 25, 5); !errors.Is(err, ErrActiveRound) {
		t.Fatalf("second start err = %v; want ErrActiveRound", err)
	}
}

func TestStart_InsufficientFunds(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 50})
	s := NewRoundService(ledger, testConfig())

	if _, _, err := s.Start(context.Background(), 1, 100, 25, 5); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v; want ErrInsufficientFunds", err)
	}
	if b, _ := ledger.Balance(context.Background(), 1); b != 50 {
		t.Fatalf("balance mutated on failed start: %d", b)
	}

	// The failed start must release the active slot.
	ledger.balances[1] = 500
	if _, _, err := s.Start(context.Background(), 1, 100, 25, 5); err != nil {
		t.Fatalf("start after funding: %v", err)
	}
}

func TestStart_InvalidParameters(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	cases := []struct {
		name    string
		bet     int64
		size    int
		hazards int
	}{
		{"bet below minimum", 5, 25, 5},
		{"bet above maximum", 200000, 25, 5},
		{"grid size not offered", 100, 30, 5},
		{"too many hazards", 100, 25, 12},
		{"zero hazards", 100, 25, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := s.Start(context.Background(), 1, tc.bet, tc.size, tc.hazards); !errors.Is(err, game.ErrInvalidConfiguration) {
				t.Fatalf("err = %v; want ErrInvalidConfiguration", err)
			}
		})
	}

	if b, _ := ledger.Balance(context.Background(), 1); b != 1000 {
		t.Fatalf("balance mutated by rejected parameters: %d", b)
	}
}

// Two concurrent starts against a balance that covers exactly one bet:
// exactly one may succeed and the account must never go negative.
func TestStart_ConcurrentExactBalance(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 100})
	s := NewRoundService(ledger, testConfig())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = s.Start(context.Background(), 1, 100, 25, 5)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrActiveRound) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d starts succeeded; want exactly 1", succeeded)
	}
	if b, _ := ledger.Balance(context.Background(), 1); b != 0 {
		t.Fatalf("balance = %d; want 0", b)
	}
}

func TestReveal_TrapForfeitsStake(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	hazard := r.HazardTiles()[0]
	res, _, err := s.Reveal(context.Background(), 1, r.ID, hazard)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !res.Hazard || res.State != game.StateTrapped {
		t.Fatalf("res = %+v; want trapped hazard", res)
	}

	// Only the original debit, no credit.
	if b, _ := ledger.Balance(context.Background(), 1); b != 900 {
		t.Fatalf("balance = %d; want 900", b)
	}
	if s.Active(1) != nil {
		t.Fatal("trapped round still active")
	}
	if _, _, err := s.Reveal(context.Background(), 1, r.ID, 0); !errors.Is(err, game.ErrRoundNotFound) {
		t.Fatalf("reveal on settled round err = %v; want ErrRoundNotFound", err)
	}
}

func TestCashOut_CreditsWinnings(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := revealSafe(t, s, 1, r)

	amount, newBalance, _, err := s.CashOut(context.Background(), 1, r.ID)
	if err != nil {
		t.Fatalf("CashOut: %v", err)
	}
	if amount != res.Winnings {
		t.Fatalf("collected %d; want %d", amount, res.Winnings)
	}
	if newBalance != 900+amount {
		t.Fatalf("balance = %d; want %d", newBalance, 900+amount)
	}
	if r.State() != game.StateCollected {
		t.Fatalf("state = %s; want collected", r.State())
	}
	if _, _, _, err := s.CashOut(context.Background(), 1, r.ID); !errors.Is(err, game.ErrRoundNotFound) {
		t.Fatalf("second cashout err = %v; want ErrRoundNotFound", err)
	}
}

func TestCashOut_NothingToCollect(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, _, err := s.CashOut(context.Background(), 1, r.ID); !errors.Is(err, game.ErrNothingToCollect) {
		t.Fatalf("err = %v; want ErrNothingToCollect", err)
	}
	if b, _ := ledger.Balance(context.Background(), 1); b != 900 {
		t.Fatalf("balance = %d; want 900 (no credit issued)", b)
	}
	if r.State() != game.StatePlaying {
		t.Fatalf("state = %s; want playing", r.State())
	}
}

func TestCashOut_LedgerFailureLeavesRoundActive(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	revealSafe(t, s, 1, r)

	ledger.failCredit = true
	if _, _, _, err := s.CashOut(context.Background(), 1, r.ID); err == nil {
		t.Fatal("cashout succeeded despite ledger failure")
	}
	if r.State() != game.StatePlaying {
		t.Fatalf("state = %s after failed credit; want playing", r.State())
	}

	// The credit is retryable once the ledger recovers.
	ledger.failCredit = false
	if _, _, _, err := s.CashOut(context.Background(), 1, r.ID); err != nil {
		t.Fatalf("retry cashout: %v", err)
	}
	if r.State() != game.StateCollected {
		t.Fatalf("state = %s; want collected", r.State())
	}
}

// A reveal arriving while the payout credit is in flight must be rejected:
// otherwise a client racing cash-out against a hazard reveal could get the
// winnings credited on a round that ends trapped.
func TestCashOut_RevealRacingCreditRejected(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := revealSafe(t, s, 1, r)

	hazard := r.HazardTiles()[0]
	var revealErr, secondCashErr error
	ledger.onCredit = func() {
		_, _, revealErr = s.Reveal(context.Background(), 1, r.ID, hazard)
		_, _, _, secondCashErr = s.CashOut(context.Background(), 1, r.ID)
	}

	amount, newBalance, _, err := s.CashOut(context.Background(), 1, r.ID)
	if err != nil {
		t.Fatalf("CashOut: %v", err)
	}
	if !errors.Is(revealErr, game.ErrRoundNotActive) {
		t.Fatalf("reveal during payout err = %v; want ErrRoundNotActive", revealErr)
	}
	if !errors.Is(secondCashErr, game.ErrRoundNotActive) {
		t.Fatalf("competing cashout err = %v; want ErrRoundNotActive", secondCashErr)
	}

	if r.State() != game.StateCollected {
		t.Fatalf("state = %s; want collected", r.State())
	}
	if amount != res.Winnings {
		t.Fatalf("collected %d; want %d", amount, res.Winnings)
	}
	if newBalance != 900+res.Winnings {
		t.Fatalf("balance = %d; want %d (single credit)", newBalance, 900+res.Winnings)
	}
}

func TestReveal_AllSafeAutoCollects(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 16, 6)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var last game.RevealResult
	for i := 0; i < 16-6; i++ {
		last = revealSafe(t, s, 1, r)
	}

	if !last.AllSafeRevealed {
		t.Fatal("last reveal did not report AllSafeRevealed")
	}
	if last.State != game.StateCollected {
		t.Fatalf("state = %s; want collected", last.State)
	}
	wantBalance := int64(900) + last.Winnings
	if b, _ := ledger.Balance(context.Background(), 1); b != wantBalance {
		t.Fatalf("balance = %d; want %d", b, wantBalance)
	}
}

func TestReveal_WrongOwnerAndUnknownRound(t *testing.T) {
	ledger := newFakeLedger(map[int64]int64{1: 1000, 2: 1000})
	s := NewRoundService(ledger, testConfig())

	r, _, err := s.Start(context.Background(), 1, 100, 25, 5)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, err := s.Reveal(context.Background(), 2, r.ID, 0); !errors.Is(err, game.ErrNotOwner) {
		t.Fatalf("foreign reveal err = %v; want ErrNotOwner", err)
	}
	if _, _, err := s.Reveal(context.Background(), 1, "no-such-round", 0); !errors.Is(err, game.ErrRoundNotFound) {
		t.Fatalf("unknown round err = %v; want ErrRoundNotFound", err)
	}
}
