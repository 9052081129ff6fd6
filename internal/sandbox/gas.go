package sandbox

import "github.com/agentworld/runtime/internal/domain"

// GasMeter tracks fuel consumed by a single guest call, generalizing the
// teacher's core/virtual_machine.go GasMeter (Consume/Remaining against a
// fixed limit) from a per-opcode cost table to a single charge per guest
// call on the bytes that cross the ABI boundary (see Executor.call).
type GasMeter struct {
	limit uint64
	used  uint64
}

// NewGasMeter returns a meter that allows up to limit units of fuel.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Consume charges cost units of fuel, failing with FaultOutOfFuel rather
// than wrapping if the charge would exceed the limit (spec §4.5 numeric
// policy applied to gas accounting).
func (g *GasMeter) Consume(cost uint64) error {
	used, ok := domain.CheckedAddU64(g.used, cost)
	if !ok || used > g.limit {
		return errOutOfFuel()
	}
	g.used = used
	return nil
}

// Used returns the fuel consumed so far.
func (g *GasMeter) Used() uint64 { return g.used }

// Remaining returns the fuel left before the limit is hit.
func (g *GasMeter) Remaining() uint64 {
	if g.used >= g.limit {
		return 0
	}
	return g.limit - g.used
}
