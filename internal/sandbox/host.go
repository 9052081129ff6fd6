package sandbox

import (
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// hostCtx carries the one-call bookkeeping attached to a guest invocation:
// the gas ceiling, the resource limits and capability grants the output is
// checked against once the call returns, and the wall-clock deadline the
// watchdog in executor.go races against. The guest ABI exports
// alloc/reduce/call and imports nothing from the host — unlike the
// teacher's registerHost, there is no host-function
// table to build, since nothing the guest runs is allowed to reach a host
// clock, file descriptor, or source of randomness.
type hostCtx struct {
	gas    *GasMeter
	caps   Caps
	limits Limits

	deadline    time.Time
	interrupted bool
	fault       error
}

// writeGuestMemory copies data into the guest's linear memory at ptr.
func writeGuestMemory(mem *wasmer.Memory, ptr int32, data []byte) error {
	if ptr < 0 {
		return errLimitsExceeded("memory access out of bounds")
	}
	buf := mem.Data()
	end := int(ptr) + len(data)
	if end > len(buf) {
		return errLimitsExceeded("memory access out of bounds")
	}
	copy(buf[ptr:], data)
	return nil
}

// readGuestMemory copies ln bytes out of the guest's linear memory at ptr.
func readGuestMemory(mem *wasmer.Memory, ptr int32, ln uint32) ([]byte, error) {
	if ptr < 0 {
		return nil, errLimitsExceeded("memory access out of bounds")
	}
	buf := mem.Data()
	end := int(ptr) + int(ln)
	if end > len(buf) {
		return nil, errLimitsExceeded("memory access out of bounds")
	}
	out := make([]byte, ln)
	copy(out, buf[ptr:end])
	return out, nil
}
