package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayout_ConcreteScenario(t *testing.T) {
	// Two bettors, 100 units each on opposite sides, Yes wins: the Yes
	// bettor collects the whole 200-unit pool.
	assert.Equal(t, uint64(200), Payout(100, 200, 100))
}

func TestPayout_FloorsTowardZero(t *testing.T) {
	// 3-way winning side of 300 sharing a pool of 1000: each floor share
	// is 333, one unit of dust stays in the vault.
	assert.Equal(t, uint64(333), Payout(100, 1000, 300))
}

func TestPayout_SumNeverExceedsPool(t *testing.T) {
	pool := uint64(1_000_003)
	stakes := []uint64{17, 250_001, 333_333, 99_999}
	var w uint64
	for _, s := range stakes {
		w += s
	}
	var total uint64
	for _, s := range stakes {
		total += Payout(s, pool, w)
	}
	assert.LessOrEqual(t, total, pool)
}

func TestPayout_NoOverflowOnWideOperands(t *testing.T) {
	// stake * pool overflows 64 bits; the 128-bit intermediate keeps the
	// result exact. pool is exactly 2*w here, so the payout is 2*stake.
	stake := uint64(math.MaxUint64 / 3)
	w := uint64(math.MaxUint64 / 2)
	pool := 2 * w

	got := Payout(stake, pool, w)
	assert.Equal(t, 2*stake, got)
	assert.LessOrEqual(t, got, pool)
}

func TestPayout_Deterministic(t *testing.T) {
	first := Payout(123_456_789, 987_654_321, 222_222_222)
	for i := 0; i < 1000; i++ {
		assert.Equal(t, first, Payout(123_456_789, 987_654_321, 222_222_222))
	}
}

func TestPayout_ZeroWinningPool(t *testing.T) {
	assert.Zero(t, Payout(100, 200, 0))
	assert.Zero(t, Payout(0, 200, 100))
}

func TestPayout_SoloWinnerTakesPool(t *testing.T) {
	assert.Equal(t, uint64(777), Payout(50, 777, 50))
}
