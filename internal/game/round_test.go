package game

import (
	"errors"
	"testing"
)

func newTestRound(t *testing.T, gridSize, hazardCount int) *Round {
	t.Helper()
	r, err := NewRound("r1", 7, 100, gridSize, hazardCount, DefaultOdds)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	return r
}

// safeAndHazardTiles returns one safe tile index and one hazard tile index.
func safeAndHazardTiles(r *Round) (safe, hazard int) {
	isHazard := make(map[int]bool)
	for _, h := range r.HazardTiles() {
		isHazard[h] = true
	}
	safe, hazard = -1, -1
	for i := 0; i < r.GridSize; i++ {
		if isHazard[i] && hazard == -1 {
			hazard = i
		}
		if !isHazard[i] && safe == -1 {
			safe = i
		}
	}
	return safe, hazard
}

func TestNewRound_InvalidConfiguration(t *testing.T) {
	cases := []struct {
		name    string
		bet     int64
		size    int
		hazards int
	}{
		{"zero bet", 0, 25, 5},
		{"negative bet", -10, 25, 5},
		{"zero hazards", 100, 25, 0},
		{"hazards equal size", 100, 25, 25},
		{"hazards above ratio cap", 100, 25, 11},
		{"zero grid", 100, 0, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRound("r", 1, tc.bet, tc.size, tc.hazards, DefaultOdds); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("err = %v; want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestNewRound_HazardCountInvariant(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := newTestRound(t, 25, 5)
		if got := len(r.HazardTiles()); got != 5 {
			t.Fatalf("round has %d hazards; want 5", got)
		}
	}
}

// Chi-square test over position-vs-hazard frequency: placement must not be
// biased toward any region of the grid.
func TestNewRound_UniformPlacement(t *testing.T) {
	const (
		rounds   = 2000
		gridSize = 25
		hazards  = 5
	)

	counts := make([]int, gridSize)
	for i := 0; i < rounds; i++ {
		r := newTestRound(t, gridSize, hazards)
		for _, pos := range r.HazardTiles() {
			counts[pos]++
		}
	}

	expected := float64(rounds*hazards) / float64(gridSize)
	chi2 := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}

	// 24 degrees of freedom; 60 is far beyond the p=0.0001 critical value,
	// so a failure here means real bias rather than bad luck.
	if chi2 > 60 {
		t.Fatalf("chi-square statistic %.2f suggests biased hazard placement: %v", chi2, counts)
	}
}

func TestReveal_SafeTile(t *testing.T) {
	r := newTestRound(t, 25, 5)
	safe, _ := safeAndHazardTiles(r)

	res, err := r.Reveal(7, safe)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if res.Hazard {
		t.Fatal("safe tile reported as hazard")
	}
	if res.State != StatePlaying {
		t.Fatalf("state = %s; want playing", res.State)
	}
	if res.RevealedSafe != 1 {
		t.Fatalf("revealedSafe = %d; want 1", res.RevealedSafe)
	}
	// 25/20 * 0.92 = 1.15 with the default odds, bet 100.
	if res.Winnings != 115 {
		t.Fatalf("winnings = %d; want 115", res.Winnings)
	}
	if r.Winnings() != res.Winnings {
		t.Fatalf("round winnings %d != result winnings %d", r.Winnings(), res.Winnings)
	}
}

func TestReveal_FloorScenario(t *testing.T) {
	// 20% edge: fair 1.25 * 0.80 = 1.00, clamped up to the 1.05 floor.
	odds := OddsParams{HouseEdge: 0.20, PayoutFloor: 1.05, PayoutCap: 500}
	r, err := NewRound("r1", 7, 100, 25, 5, odds)
	if err != nil {
		t.Fatalf("NewRound: %v", err)
	}
	safe, _ := safeAndHazardTiles(r)

	res, err := r.Reveal(7, safe)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if res.Winnings != 105 {
		t.Fatalf("winnings = %d; want 105", res.Winnings)
	}
}

func TestReveal_HazardTile(t *testing.T) {
	r := newTestRound(t, 25, 5)
	_, hazard := safeAndHazardTiles(r)

	res, err := r.Reveal(7, hazard)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !res.Hazard {
		t.Fatal("hazard tile not reported")
	}
	if res.State != StateTrapped {
		t.Fatalf("state = %s; want trapped", res.State)
	}
	if r.Winnings() != 0 {
		t.Fatalf("winnings = %d after trap; want 0", r.Winnings())
	}

	// Terminal round accepts no further reveals.
	safe, _ := safeAndHazardTiles(r)
	if _, err := r.Reveal(7, safe); !errors.Is(err, ErrRoundNotActive) {
		t.Fatalf("reveal after trap err = %v; want ErrRoundNotActive", err)
	}
}

func TestReveal_AlreadyRevealedRejectedTwice(t *testing.T) {
	r := newTestRound(t, 25, 5)
	safe, _ := safeAndHazardTiles(r)

	if _, err := r.Reveal(7, safe); err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	winnings := r.Winnings()

	for i := 0; i < 2; i++ {
		if _, err := r.Reveal(7, safe); !errors.Is(err, ErrTileAlreadyRevealed) {
			t.Fatalf("replay %d err = %v; want ErrTileAlreadyRevealed", i, err)
		}
	}
	if r.Winnings() != winnings {
		t.Fatalf("winnings changed by replay: %d -> %d", winnings, r.Winnings())
	}
	if r.RevealedSafe() != 1 {
		t.Fatalf("revealedSafe = %d; want 1", r.RevealedSafe())
	}
}

func TestReveal_Validation(t *testing.T) {
	r := newTestRound(t, 25, 5)

	if _, err := r.Reveal(8, 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("wrong owner err = %v; want ErrNotOwner", err)
	}
	if _, err := r.Reveal(7, -1); !errors.Is(err, ErrTileOutOfRange) {
		t.Fatalf("negative index err = %v; want ErrTileOutOfRange", err)
	}
	if _, err := r.Reveal(7, 25); !errors.Is(err, ErrTileOutOfRange) {
		t.Fatalf("index past grid err = %v; want ErrTileOutOfRange", err)
	}
}

func TestCashOut_BeforeAnyReveal(t *testing.T) {
	r := newTestRound(t, 25, 5)

	if _, err := r.CashOutAmount(7); !errors.Is(err, ErrNothingToCollect) {
		t.Fatalf("CashOutAmount err = %v; want ErrNothingToCollect", err)
	}
	if _, err := r.BeginCollect(7); !errors.Is(err, ErrNothingToCollect) {
		t.Fatalf("BeginCollect err = %v; want ErrNothingToCollect", err)
	}
	if r.State() != StatePlaying {
		t.Fatalf("state = %s; want playing", r.State())
	}
}

func TestCashOut_AfterSafeReveal(t *testing.T) {
	r := newTestRound(t, 25, 5)
	safe, _ := safeAndHazardTiles(r)
	if _, err := r.Reveal(7, safe); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	amount, err := r.CashOutAmount(7)
	if err != nil {
		t.Fatalf("CashOutAmount: %v", err)
	}
	if amount != 115 {
		t.Fatalf("amount = %d; want 115", amount)
	}
	if r.State() != StatePlaying {
		t.Fatal("CashOutAmount must not mutate state")
	}

	reserved, err := r.BeginCollect(7)
	if err != nil {
		t.Fatalf("BeginCollect: %v", err)
	}
	if reserved != amount {
		t.Fatalf("reserved = %d; want %d", reserved, amount)
	}

	if collected := r.CommitCollect(); collected != amount {
		t.Fatalf("collected = %d; want %d", collected, amount)
	}
	if r.State() != StateCollected {
		t.Fatalf("state = %s; want collected", r.State())
	}

	if _, err := r.BeginCollect(7); !errors.Is(err, ErrRoundNotActive) {
		t.Fatalf("second collection err = %v; want ErrRoundNotActive", err)
	}
}

// While a payout reservation is held the round must reject reveals and a
// second reservation; releasing it restores normal play.
func TestBeginCollect_BlocksRevealsUntilResolved(t *testing.T) {
	r := newTestRound(t, 25, 5)
	safe, hazard := safeAndHazardTiles(r)
	if _, err := r.Reveal(7, safe); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	if _, err := r.BeginCollect(7); err != nil {
		t.Fatalf("BeginCollect: %v", err)
	}

	if _, err := r.Reveal(7, hazard); !errors.Is(err, ErrRoundNotActive) {
		t.Fatalf("reveal during collection err = %v; want ErrRoundNotActive", err)
	}
	if _, err := r.BeginCollect(7); !errors.Is(err, ErrRoundNotActive) {
		t.Fatalf("competing reservation err = %v; want ErrRoundNotActive", err)
	}
	if _, err := r.CashOutAmount(7); !errors.Is(err, ErrRoundNotActive) {
		t.Fatalf("CashOutAmount during collection err = %v; want ErrRoundNotActive", err)
	}

	r.AbortCollect()
	isHazard := make(map[int]bool)
	for _, h := range r.HazardTiles() {
		isHazard[h] = true
	}
	next := -1
	for i := 0; i < r.GridSize; i++ {
		if i != safe && !isHazard[i] {
			next = i
			break
		}
	}
	if _, err := r.Reveal(7, next); err != nil {
		t.Fatalf("reveal after abort: %v", err)
	}
	if r.State() != StatePlaying {
		t.Fatalf("state = %s; want playing", r.State())
	}
}

func TestReveal_AllSafeRevealed(t *testing.T) {
	r := newTestRound(t, 16, 6)
	isHazard := make(map[int]bool)
	for _, h := range r.HazardTiles() {
		isHazard[h] = true
	}

	var last RevealResult
	for i := 0; i < 16; i++ {
		if isHazard[i] {
			continue
		}
		res, err := r.Reveal(7, i)
		if err != nil {
			t.Fatalf("reveal %d: %v", i, err)
		}
		last = res
	}

	if !last.AllSafeRevealed {
		t.Fatal("final reveal did not report AllSafeRevealed")
	}
	// The round stays playing so the service can settle it through the
	// cash-out path.
	if r.State() != StatePlaying {
		t.Fatalf("state = %s; want playing", r.State())
	}
	if _, err := r.BeginCollect(7); err != nil {
		t.Fatalf("settling reservation: %v", err)
	}
	r.CommitCollect()
	if r.State() != StateCollected {
		t.Fatalf("state = %s; want collected", r.State())
	}
}

func TestSnapshot_HidesHazardsWhileActive(t *testing.T) {
	r := newTestRound(t, 25, 5)

	snap := r.Snapshot()
	if _, ok := snap["hazards"]; ok {
		t.Fatal("active round snapshot exposes hazard positions")
	}

	_, hazard := safeAndHazardTiles(r)
	if _, err := r.Reveal(7, hazard); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	snap = r.Snapshot()
	hazards, ok := snap["hazards"].([]int)
	if !ok || len(hazards) != 5 {
		t.Fatalf("terminal snapshot hazards = %v; want 5 positions", snap["hazards"])
	}
}
