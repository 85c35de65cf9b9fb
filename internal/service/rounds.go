package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"minefield_webapp/internal/domain"
	"minefield_webapp/internal/game"
	"minefield_webapp/internal/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var ErrActiveRound = errors.New("you already have an active round")

var (
	roundsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minefield_rounds_total",
			Help: "Rounds by terminal outcome (started, trapped, collected)",
		},
		[]string{"outcome"},
	)
	amountStaked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "minefield_staked_gems_total",
		Help: "Total gems staked across all rounds",
	})
	amountPaidOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "minefield_paid_out_gems_total",
		Help: "Total gems credited back to players",
	})
)

func init() {
	prometheus.MustRegister(roundsStarted, amountStaked, amountPaidOut)
}

// RoundConfig is the policy surface of the round engine.
type RoundConfig struct {
	Odds      game.OddsParams
	GridSizes []int // allowed grid sizes, e.g. 16, 25, 36
	MinBet    int64
	MaxBet    int64
}

// RoundService owns all active rounds and is the only component allowed to
// move money for them: debit on start, credit on collection. Round state
// itself is single-owner, the maps here are the shared structure.
type RoundService struct {
	ledger Ledger
	cfg    RoundConfig

	rounds       map[string]*game.Round // roundID -> round
	activeByUser map[int64]string       // userID -> roundID
	mu           sync.RWMutex
}

func NewRoundService(ledger Ledger, cfg RoundConfig) *RoundService {
	s := &RoundService{
		ledger:       ledger,
		cfg:          cfg,
		rounds:       make(map[string]*game.Round),
		activeByUser: make(map[int64]string),
	}
	go s.sweepAbandoned()
	return s
}

// Config returns the service policy, for the info endpoint.
func (s *RoundService) Config() RoundConfig {
	return s.cfg
}

func (s *RoundService) validateParams(bet int64, gridSize, hazardCount int) error {
	if bet < s.cfg.MinBet || bet > s.cfg.MaxBet {
		return fmt.Errorf("%w: bet %d outside [%d, %d]",
			game.ErrInvalidConfiguration, bet, s.cfg.MinBet, s.cfg.MaxBet)
	}
	allowed := false
	for _, size := range s.cfg.GridSizes {
		if gridSize == size {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: grid size %d not offered", game.ErrInvalidConfiguration, gridSize)
	}
	return game.ValidateConfig(gridSize, hazardCount)
}

// Start validates the parameters, debits the stake and creates the round.
// Validation happens before any mutation; the debit is the ledger's atomic
// compare-and-set, so concurrent starts cannot overdraw. The service lock
// only reserves the user's active slot and is never held across the
// ledger call.
func (s *RoundService) Start(ctx context.Context, userID int64, bet int64, gridSize, hazardCount int) (*game.Round, int64, error) {
	if err := s.validateParams(bet, gridSize, hazardCount); err != nil {
		return nil, 0, err
	}

	roundID := uuid.New().String()

	s.mu.Lock()
	if id, ok := s.activeByUser[userID]; ok {
		// An entry without a stored round is a start still in flight.
		if r, exists := s.rounds[id]; !exists || r.Active() {
			s.mu.Unlock()
			return nil, 0, ErrActiveRound
		}
	}
	s.activeByUser[userID] = roundID
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if s.activeByUser[userID] == roundID {
			delete(s.activeByUser, userID)
		}
		s.mu.Unlock()
	}

	newBalance, err := s.ledger.Debit(ctx, userID, bet, domain.TxTypeBet, map[string]interface{}{
		"round_id":     roundID,
		"grid_size":    gridSize,
		"hazard_count": hazardCount,
	})
	if err != nil {
		release()
		return nil, 0, err
	}

	r, err := game.NewRound(roundID, userID, bet, gridSize, hazardCount, s.cfg.Odds)
	if err != nil {
		// Parameters were validated up front, so this is a randomness
		// source failure. Return the stake before surfacing the error.
		if _, crErr := s.ledger.Credit(ctx, userID, bet, domain.TxTypePayout, map[string]interface{}{
			"round_id": roundID,
			"reason":   "round_creation_failed",
		}); crErr != nil {
			logger.Error("refund after failed round creation", "error", crErr, "user_id", userID, "round_id", roundID)
		}
		release()
		return nil, 0, err
	}

	s.mu.Lock()
	s.rounds[roundID] = r
	s.mu.Unlock()

	roundsStarted.WithLabelValues("started").Inc()
	amountStaked.Add(float64(bet))
	return r, newBalance, nil
}

// Active returns the user's active round, or nil.
func (s *RoundService) Active(userID int64) *game.Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeByUser[userID]
	if !ok {
		return nil
	}
	r, ok := s.rounds[id]
	if !ok || !r.Active() {
		return nil
	}
	return r
}

func (s *RoundService) lookup(roundID string) (*game.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rounds[roundID]
	if !ok {
		return nil, game.ErrRoundNotFound
	}
	return r, nil
}

// Reveal uncovers one tile of the identified round. A trapped round is
// settled immediately (the stake was forfeited at start); revealing the
// last safe tile collects automatically through the cash-out path.
func (s *RoundService) Reveal(ctx context.Context, userID int64, roundID string, tile int) (game.RevealResult, *game.Round, error) {
	r, err := s.lookup(roundID)
	if err != nil {
		return game.RevealResult{}, nil, err
	}

	res, err := r.Reveal(userID, tile)
	if err != nil {
		return game.RevealResult{}, r, err
	}

	if res.Hazard {
		s.remove(r)
		roundsStarted.WithLabelValues("trapped").Inc()
		return res, r, nil
	}

	if res.AllSafeRevealed {
		// Nothing left to pick; settle as a collected win. If the credit
		// fails the round stays playing and the client can retry cashout.
		if _, err := s.settle(ctx, userID, r); err != nil {
			return res, r, err
		}
		res.State = r.State()
	}

	return res, r, nil
}

// CashOut credits the accumulated winnings and ends the round. The ledger
// credit is confirmed before the state transition commits, so game state
// and balance cannot diverge.
func (s *RoundService) CashOut(ctx context.Context, userID int64, roundID string) (int64, int64, *game.Round, error) {
	r, err := s.lookup(roundID)
	if err != nil {
		return 0, 0, nil, err
	}

	newBalance, err := s.settle(ctx, userID, r)
	if err != nil {
		return 0, 0, r, err
	}
	return r.Winnings(), newBalance, r, nil
}

func (s *RoundService) settle(ctx context.Context, userID int64, r *game.Round) (int64, error) {
	// Reserve the payout on the round itself before touching the ledger.
	// The reservation makes the round reject reveals and competing
	// collections until the credit either commits or aborts, so game state
	// and balance cannot diverge.
	amount, err := r.BeginCollect(userID)
	if err != nil {
		return 0, err
	}

	newBalance, err := s.ledger.Credit(ctx, userID, amount, domain.TxTypePayout, map[string]interface{}{
		"round_id": r.ID,
	})
	if err != nil {
		r.AbortCollect()
		logger.Error("payout credit failed, round left active", "error", err, "round_id", r.ID, "user_id", userID)
		return 0, err
	}

	r.CommitCollect()
	s.remove(r)
	roundsStarted.WithLabelValues("collected").Inc()
	amountPaidOut.Add(float64(amount))
	return newBalance, nil
}

func (s *RoundService) remove(r *game.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rounds, r.ID)
	if s.activeByUser[r.OwnerID] == r.ID {
		delete(s.activeByUser, r.OwnerID)
	}
}

// ActiveCount returns the number of live rounds.
func (s *RoundService) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rounds)
}

// sweepAbandoned drops rounds idle for over an hour. The stake is already
// debited; walking away forfeits it, same as a trap.
func (s *RoundService) sweepAbandoned() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, r := range s.rounds {
			if now.Sub(r.CreatedAt) > time.Hour {
				delete(s.rounds, id)
				if s.activeByUser[r.OwnerID] == id {
					delete(s.activeByUser, r.OwnerID)
				}
				logger.Warn("abandoned round swept", "round_id", id, "user_id", r.OwnerID)
			}
		}
		s.mu.Unlock()
	}
}
