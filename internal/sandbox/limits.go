package sandbox

import "time"

// Limits bounds a single guest call (spec §4.2). The executor applies each
// value as given and substitutes no ceiling for a zero: a zero MaxGas allows
// no fuel, so every call fails out of fuel, and a zero MaxMemBytes rejects
// any module that has linear memory. A zero is never "unbounded".
// config.applyDefaults replaces zero sandbox ceilings in loaded
// configuration with nonzero defaults.
type Limits struct {
	MaxGas         uint64
	MaxMemBytes    uint32
	MaxCall        time.Duration
	MaxOutputBytes uint32
	MaxEffects     int
	MaxEmits       int
}

// Caps is the set of capability strings a guest call is permitted to use,
// taken from the calling module's manifest (spec §5: capabilities are fixed
// at registration and never escalate at call time).
type Caps map[string]struct{}

// Allows reports whether cap is present.
func (c Caps) Allows(cap string) bool {
	_, ok := c[cap]
	return ok
}

// NewCaps builds a Caps set from a manifest's capability list.
func NewCaps(declared []string) Caps {
	c := make(Caps, len(declared))
	for _, d := range declared {
		c[d] = struct{}{}
	}
	return c
}
