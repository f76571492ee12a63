package settlement

import "math/bits"

// Payout computes floor(stake * pool / winningPool), the parimutuel share of
// a winner whose stake is part of winningPool. The multiply is widened to
// 128 bits before the divide so the result is exact for any 64-bit operands.
//
// The quotient always fits in 64 bits: stake <= winningPool implies
// stake*pool/winningPool <= pool < 2^64, which is exactly the condition
// under which bits.Div64 does not panic.
func Payout(stake, pool, winningPool uint64) uint64 {
	if winningPool == 0 || stake == 0 {
		return 0
	}
	if stake > winningPool {
		stake = winningPool
	}
	hi, lo := bits.Mul64(stake, pool)
	q, _ := bits.Div64(hi, lo, winningPool)
	return q
}
