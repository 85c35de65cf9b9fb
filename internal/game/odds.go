package game

import "math"

// OddsParams holds the house policy applied on top of the fair odds.
type OddsParams struct {
	HouseEdge   float64 // fraction in [0,1), e.g. 0.08 for 8%
	PayoutFloor float64 // minimum multiplier paid on any win, e.g. 1.05
	PayoutCap   float64 // maximum multiplier, bounds tail risk, e.g. 500
}

// DefaultOdds matches the production policy: 8% edge, 1.05x floor, 500x cap.
var DefaultOdds = OddsParams{
	HouseEdge:   0.08,
	PayoutFloor: 1.05,
	PayoutCap:   500,
}

// FairMultiplier returns the zero-edge payout multiplier after revealedSafe
// safe tiles have been revealed on a grid of totalTiles with hazardCount
// hazards. It is the inverse of the hypergeometric probability of drawing
// revealedSafe safe tiles in a row:
//
//	fair = Π (totalTiles - i) / (totalTiles - hazardCount - i), i = 0..m-1
//
// Strictly increasing in revealedSafe; 1.0 at revealedSafe = 0. The caller
// must guard revealedSafe < totalTiles - hazardCount.
func FairMultiplier(totalTiles, hazardCount, revealedSafe int) float64 {
	multiplier := 1.0
	for i := 0; i < revealedSafe; i++ {
		totalRemaining := float64(totalTiles - i)
		safeRemaining := float64(totalTiles - hazardCount - i)
		if safeRemaining <= 0 {
			break
		}
		multiplier *= totalRemaining / safeRemaining
	}
	return multiplier
}

// PayoutMultiplier returns the multiplier actually paid after revealedSafe
// safe reveals: the fair multiplier reduced by the house edge, clamped to
// [PayoutFloor, PayoutCap]. At revealedSafe = 0 it is exactly 1.0 so no
// winnings exist before the first safe reveal. The result is rounded down
// to two decimals.
func PayoutMultiplier(totalTiles, hazardCount, revealedSafe int, p OddsParams) float64 {
	if revealedSafe <= 0 {
		return 1.0
	}

	multiplier := FairMultiplier(totalTiles, hazardCount, revealedSafe) * (1 - p.HouseEdge)
	if multiplier < p.PayoutFloor {
		multiplier = p.PayoutFloor
	}
	if p.PayoutCap > 0 && multiplier > p.PayoutCap {
		multiplier = p.PayoutCap
	}

	return math.Floor(multiplier*100) / 100
}

// ChanceToWin returns the probability, in percent, that the next reveal
// (the revealedSafe+1-th) is safe. Returns 0 once no safe tiles remain;
// a round in that position should already have ended.
func ChanceToWin(totalTiles, hazardCount, revealedSafe int) float64 {
	safeRemaining := totalTiles - hazardCount - revealedSafe
	if safeRemaining <= 0 {
		return 0
	}
	return float64(safeRemaining) / float64(totalTiles-revealedSafe) * 100
}

// MultiplierTable returns the payout multiplier for every possible reveal
// count on the given grid, for the client to display ahead of play.
func MultiplierTable(totalTiles, hazardCount int, p OddsParams) []float64 {
	safeTiles := totalTiles - hazardCount
	table := make([]float64, safeTiles)
	for reveals := 1; reveals <= safeTiles; reveals++ {
		table[reveals-1] = PayoutMultiplier(totalTiles, hazardCount, reveals, p)
	}
	return table
}
