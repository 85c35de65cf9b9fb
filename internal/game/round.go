package game

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"
)

// Round states. A round is created in StatePlaying (the bet is already
// debited); StateTrapped and StateCollected are terminal and accept no
// further actions. StateBetting is the client-side idle state between
// rounds and never appears on a server round.
const (
	StateBetting   = "betting"
	StatePlaying   = "playing"
	StateTrapped   = "trapped"
	StateCollected = "collected"
)

// MaxHazardRatio bounds hazards to 40% of the grid. Policy, not math:
// denser grids are still well-defined but unplayable.
const MaxHazardRatio = 0.4

// Tile is one cell of the grid. Hazard placement is fixed at round
// creation and never recomputed; Revealed goes false to true exactly once.
type Tile struct {
	Index    int
	Revealed bool
	Hazard   bool
}

// Round owns the full lifecycle of a single wager: hazard layout, reveal
// validation and payout accumulation. It never touches the ledger; the
// service layer debits on creation and credits on collection.
type Round struct {
	ID          string
	OwnerID     int64
	Bet         int64
	GridSize    int
	HazardCount int
	CreatedAt   time.Time

	odds         OddsParams
	tiles        []Tile
	revealedSafe int
	winnings     int64
	state        string
	collecting   bool
	finishedAt   *time.Time

	mu sync.RWMutex
}

// RevealResult reports the outcome of a single reveal.
type RevealResult struct {
	TileIndex       int
	Hazard          bool
	RevealedSafe    int
	Winnings        int64
	Multiplier      float64
	NextMultiplier  float64
	ChanceToWin     float64
	State           string
	AllSafeRevealed bool
}

// ValidateConfig checks the grid invariants shared by NewRound and the
// service-level parameter validation: positive size, 0 < hazards < size,
// and the hazard density policy cap.
func ValidateConfig(gridSize, hazardCount int) error {
	if gridSize <= 0 {
		return fmt.Errorf("%w: grid size %d", ErrInvalidConfiguration, gridSize)
	}
	if hazardCount <= 0 || hazardCount >= gridSize {
		return fmt.Errorf("%w: %d hazards on %d tiles", ErrInvalidConfiguration, hazardCount, gridSize)
	}
	if float64(hazardCount) > float64(gridSize)*MaxHazardRatio {
		return fmt.Errorf("%w: %d hazards exceed %.0f%% of %d tiles",
			ErrInvalidConfiguration, hazardCount, MaxHazardRatio*100, gridSize)
	}
	return nil
}

// NewRound creates a round in StatePlaying with all tiles unrevealed and
// the hazard layout drawn uniformly from crypto/rand. The layout is never
// derived from client-visible data; placement is sampling without
// replacement over all positions with no positional bias.
func NewRound(id string, ownerID int64, bet int64, gridSize, hazardCount int, odds OddsParams) (*Round, error) {
	if bet <= 0 {
		return nil, fmt.Errorf("%w: bet %d", ErrInvalidConfiguration, bet)
	}
	if err := ValidateConfig(gridSize, hazardCount); err != nil {
		return nil, err
	}

	positions, err := hazardPositions(gridSize, hazardCount)
	if err != nil {
		return nil, err
	}

	r := &Round{
		ID:          id,
		OwnerID:     ownerID,
		Bet:         bet,
		GridSize:    gridSize,
		HazardCount: hazardCount,
		CreatedAt:   time.Now(),
		odds:        odds,
		tiles:       make([]Tile, gridSize),
		state:       StatePlaying,
	}
	for i := range r.tiles {
		r.tiles[i].Index = i
	}
	for _, pos := range positions {
		r.tiles[pos].Hazard = true
	}
	return r, nil
}

// hazardPositions samples hazardCount distinct positions in [0, gridSize)
// from the system CSPRNG. Unlike math/rand there is no seed to predict or
// replay; a source failure aborts round creation instead of degrading.
func hazardPositions(gridSize, hazardCount int) ([]int, error) {
	positions := make([]int, 0, hazardCount)
	used := make(map[int]bool, hazardCount)
	limit := big.NewInt(int64(gridSize))

	for len(positions) < hazardCount {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, fmt.Errorf("hazard placement: %w", err)
		}
		pos := int(n.Int64())
		if !used[pos] {
			used[pos] = true
			positions = append(positions, pos)
		}
	}
	return positions, nil
}

// Reveal marks the tile revealed and settles the consequences. A safe tile
// recomputes the winnings from the payout multiplier; a hazard ends the
// round with the stake forfeited. Replaying an already revealed tile is
// rejected rather than echoing the prior result, so a client cannot probe
// the layout by resubmission.
func (r *Round) Reveal(ownerID int64, tileIndex int) (RevealResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ownerID != r.OwnerID {
		return RevealResult{}, ErrNotOwner
	}
	if r.state != StatePlaying || r.collecting {
		return RevealResult{}, ErrRoundNotActive
	}
	if tileIndex < 0 || tileIndex >= r.GridSize {
		return RevealResult{}, ErrTileOutOfRange
	}
	if r.tiles[tileIndex].Revealed {
		return RevealResult{}, ErrTileAlreadyRevealed
	}

	r.tiles[tileIndex].Revealed = true

	if r.tiles[tileIndex].Hazard {
		r.state = StateTrapped
		r.winnings = 0
		now := time.Now()
		r.finishedAt = &now
		return RevealResult{
			TileIndex: tileIndex,
			Hazard:    true,
			State:     r.state,
		}, nil
	}

	r.revealedSafe++
	multiplier := PayoutMultiplier(r.GridSize, r.HazardCount, r.revealedSafe, r.odds)
	// Round, don't truncate: the multiplier is floored to two decimals and
	// a value like 1.15 sits just below its decimal form in binary.
	r.winnings = int64(math.Round(float64(r.Bet) * multiplier))

	safeTiles := r.GridSize - r.HazardCount
	res := RevealResult{
		TileIndex:       tileIndex,
		RevealedSafe:    r.revealedSafe,
		Winnings:        r.winnings,
		Multiplier:      multiplier,
		ChanceToWin:     ChanceToWin(r.GridSize, r.HazardCount, r.revealedSafe),
		State:           r.state,
		AllSafeRevealed: r.revealedSafe >= safeTiles,
	}
	if r.revealedSafe < safeTiles {
		res.NextMultiplier = PayoutMultiplier(r.GridSize, r.HazardCount, r.revealedSafe+1, r.odds)
	} else {
		res.NextMultiplier = multiplier
	}
	// On AllSafeRevealed the round stays playing: the service settles it
	// through the normal cash-out path so the credit can be retried if the
	// ledger call fails.
	return res, nil
}

// CashOutAmount validates that the round can be collected and returns the
// amount, without mutating.
func (r *Round) CashOutAmount(ownerID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ownerID != r.OwnerID {
		return 0, ErrNotOwner
	}
	if r.state != StatePlaying || r.collecting {
		return 0, ErrRoundNotActive
	}
	if r.winnings <= 0 {
		// Cashing out before any safe reveal is a caller logic error,
		// rejected rather than treated as a no-op.
		return 0, ErrNothingToCollect
	}
	return r.winnings, nil
}

// BeginCollect reserves the round for payout and returns the amount to
// credit. While the reservation is held the round rejects reveals and
// competing collections, so a hazard reveal can never land between the
// ledger credit and the collected transition. The caller must finish with
// CommitCollect on a confirmed credit or AbortCollect on a failed one.
func (r *Round) BeginCollect(ownerID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ownerID != r.OwnerID {
		return 0, ErrNotOwner
	}
	if r.state != StatePlaying || r.collecting {
		return 0, ErrRoundNotActive
	}
	if r.winnings <= 0 {
		return 0, ErrNothingToCollect
	}

	r.collecting = true
	return r.winnings, nil
}

// AbortCollect releases the payout reservation after a failed credit; the
// round goes back to accepting reveals and cash-outs.
func (r *Round) AbortCollect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collecting = false
}

// CommitCollect completes a reservation taken with BeginCollect, moving
// the round to StateCollected, and returns the collected amount.
func (r *Round) CommitCollect() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collecting = false
	r.state = StateCollected
	now := time.Now()
	r.finishedAt = &now
	return r.winnings
}

// State returns the current state string.
func (r *Round) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Active reports whether the round still accepts reveals.
func (r *Round) Active() bool {
	return r.State() == StatePlaying
}

// Winnings returns the current accumulated winnings.
func (r *Round) Winnings() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.winnings
}

// RevealedSafe returns the number of safe tiles revealed so far.
func (r *Round) RevealedSafe() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revealedSafe
}

// HazardTiles returns the hazard positions. Only valid to expose to the
// client once the round is terminal.
func (r *Round) HazardTiles() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	positions := make([]int, 0, r.HazardCount)
	for _, t := range r.tiles {
		if t.Hazard {
			positions = append(positions, t.Index)
		}
	}
	return positions
}

// RevealedTiles returns the indexes of all revealed tiles.
func (r *Round) RevealedTiles() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	revealed := make([]int, 0, r.revealedSafe+1)
	for _, t := range r.tiles {
		if t.Revealed {
			revealed = append(revealed, t.Index)
		}
	}
	return revealed
}

// Snapshot returns the client-safe projection of the round. Hazard
// positions are included only after the round has ended.
func (r *Round) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	revealed := make([]int, 0, r.revealedSafe)
	for _, t := range r.tiles {
		if t.Revealed && !t.Hazard {
			revealed = append(revealed, t.Index)
		}
	}

	multiplier := PayoutMultiplier(r.GridSize, r.HazardCount, r.revealedSafe, r.odds)
	safeTiles := r.GridSize - r.HazardCount
	nextMultiplier := multiplier
	if r.revealedSafe < safeTiles {
		nextMultiplier = PayoutMultiplier(r.GridSize, r.HazardCount, r.revealedSafe+1, r.odds)
	}

	state := map[string]interface{}{
		"id":              r.ID,
		"grid_size":       r.GridSize,
		"hazard_count":    r.HazardCount,
		"bet":             r.Bet,
		"revealed_tiles":  revealed,
		"revealed_safe":   r.revealedSafe,
		"winnings":        r.winnings,
		"multiplier":      multiplier,
		"next_multiplier": nextMultiplier,
		"chance_to_win":   ChanceToWin(r.GridSize, r.HazardCount, r.revealedSafe),
		"state":           r.state,
	}

	if r.state != StatePlaying {
		hazards := make([]int, 0, r.HazardCount)
		for _, t := range r.tiles {
			if t.Hazard {
				hazards = append(hazards, t.Index)
			}
		}
		state["hazards"] = hazards
	}

	return state
}

// Details returns the full round record for history storage, including
// hazard positions. Never sent to the client while the round is active.
func (r *Round) Details() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hazards := make([]int, 0, r.HazardCount)
	revealed := make([]int, 0, r.revealedSafe)
	for _, t := range r.tiles {
		if t.Hazard {
			hazards = append(hazards, t.Index)
		}
		if t.Revealed {
			revealed = append(revealed, t.Index)
		}
	}

	return map[string]interface{}{
		"grid_size":      r.GridSize,
		"hazard_count":   r.HazardCount,
		"hazards":        hazards,
		"revealed_tiles": revealed,
		"revealed_safe":  r.revealedSafe,
		"winnings":       r.winnings,
		"state":          r.state,
	}
}
