package domain

import "math"

// Checked arithmetic helpers used throughout the pipeline and ledger (spec
// §4.5 "Numeric policy"): addition, subtraction, and time arithmetic on
// balances, heights, slots and counters must fail explicitly rather than
// wrap. These mirror the teacher's GasMeter.Consume overflow check in
// core/virtual_machine.go, generalized to every checked-arithmetic call site
// instead of being special-cased to gas.

// CheckedAddU64 returns a+b, or ok=false if the addition would overflow.
func CheckedAddU64(a, b uint64) (sum uint64, ok bool) {
	sum = a + b
	return sum, sum >= a
}

// CheckedSubU64 returns a-b, or ok=false if b > a (balances never go
// negative per spec §3).
func CheckedSubU64(a, b uint64) (diff uint64, ok bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// CheckedAddI64 returns a+b, or ok=false on signed overflow.
func CheckedAddI64(a, b int64) (sum int64, ok bool) {
	sum = a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// CheckedMulU64 returns a*b, or ok=false if the multiplication would
// overflow.
func CheckedMulU64(a, b uint64) (product uint64, ok bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product = a * b
	return product, product/a == b
}

// CeilDivU64 returns ceil(a/b). b must be non-zero; callers pass a fixed
// constant (e.g. the 1024-byte metering unit of spec §4.5 step 7).
func CeilDivU64(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}

// SupermajorityReached reports approved > total/2 without ever multiplying
// approved by two, following spec §4.5's instruction to avoid the
// multiply-by-two comparison so the check never spuriously overflows or
// rejects at the high end of the valid range.
func SupermajorityReached(approved, total uint64) bool {
	if total == 0 {
		return false
	}
	return approved > total/2
}

// CheckedAddTimeMS adds a duration in milliseconds to a timestamp, following
// the same checked-overflow policy as balance arithmetic.
func CheckedAddTimeMS(nowMS, deltaMS int64) (result int64, ok bool) {
	return CheckedAddI64(nowMS, deltaMS)
}

// MustNotBeNaN guards a float heuristic (e.g. a rule module's computed
// ratio) against the one class of float the canonical codec forbids
// (spec §4.1: "no NaN").
func MustNotBeNaN(f float64) bool {
	return !math.IsNaN(f)
}
