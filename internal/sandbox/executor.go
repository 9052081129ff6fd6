// Package sandbox is the WASM sandbox executor (spec component C2): it
// loads a content-addressed module artifact, instantiates it against a
// wasmer-go store with gas, memory, wall-clock and output ceilings, and
// returns the guest's emitted effects or a typed fault. The execution shape
// (store/module/instance, a single linear memory, a call entrypoint) is
// grounded directly on the teacher's HeavyVM in core/virtual_machine.go;
// the ABI itself is a guest-exported alloc/reduce/call convention with zero
// host imports, the generalization of the teacher's single ledger call to a
// module registry where a guest must not be able to reach a host clock,
// file descriptor, or randomness source through any import.
package sandbox

import (
	"fmt"
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
)

// ExecResult is what a successful guest call produces, decoded from the
// CBOR-encoded guestOutput buffer the call/reduce entrypoint hands back.
type ExecResult struct {
	Effects  [][]byte
	Logs     []string
	Emits    int
	NewState []byte
	CapsUsed []string
	GasUsed  uint64
}

// CallRequest names everything the executor needs for one guest call.
type CallRequest struct {
	WasmHash  domain.Hash
	WasmBytes []byte // only required on a cache miss
	Caps      Caps
	Limits    Limits
	Input     []byte
	// Entrypoint is the guest export to invoke: "call" for a pre/post-action
	// rule stage, "reduce" for the per-tick hook. These are the only two
	// entrypoints the ABI recognizes; everything else a module exports is
	// ignored.
	Entrypoint string
}

// guestOutput is the CBOR shape a guest call's output buffer decodes into.
// CapsUsed lets the host reject a call that exercised a capability its
// manifest never declared even though the ABI gives the guest no host
// import to gate that check on directly — the check happens here, after
// the call returns, instead of at every host-function boundary.
type guestOutput struct {
	Effects  [][]byte `cbor:"effects,omitempty"`
	Logs     []string `cbor:"logs,omitempty"`
	Emits    int      `cbor:"emits,omitempty"`
	NewState []byte   `cbor:"new_state,omitempty"`
	CapsUsed []string `cbor:"caps_used,omitempty"`
}

// Executor runs guest calls against a shared compiled-module cache.
type Executor struct {
	cache *ModuleCache
}

// NewExecutor builds an Executor backed by cache.
func NewExecutor(cache *ModuleCache) *Executor {
	return &Executor{cache: cache}
}

// Call instantiates the module named by req.WasmHash and invokes
// req.Entrypoint, enforcing every limit in req.Limits (spec §4.2). A cache
// hit skips recompilation; a miss compiles req.WasmBytes and verifies its
// content hash first (FaultHashMismatch on mismatch). When req.WasmBytes is
// nil, the bytes the disk cache holds for req.WasmHash are used instead, and
// the call fails as artifact-missing if the disk cache holds none.
//
// The guest ABI is fixed: alloc(len int32) -> ptr int32 reserves a buffer
// in the guest's own linear memory, then the requested entrypoint is
// called as (ptr, len int32) -> packed int64, where packed is the output
// buffer's (ptr<<32 | len). The host writes req.Input into the buffer
// alloc returned and reads the output buffer back the same way; no
// function is imported into the guest's "env" namespace, so there is
// nothing for the guest to call out to except its own exports.
func (e *Executor) Call(req CallRequest) (*ExecResult, error) {
	if req.WasmBytes != nil {
		gotHash, err := contentHash(req.WasmBytes)
		if err != nil {
			return nil, err
		}
		if gotHash != req.WasmHash {
			return nil, errHashMismatch(string(req.WasmHash), gotHash)
		}
	} else {
		cached, ok := e.cache.DiskBytes(req.WasmHash)
		if !ok {
			return nil, errArtifactMissing(string(req.WasmHash))
		}
		req.WasmBytes = cached
	}

	cm, err := e.cache.Get(req.WasmHash, req.WasmBytes)
	if err != nil {
		return nil, err
	}
	return e.call(cm, req)
}

func (e *Executor) call(cm *compiledModule, req CallRequest) (*ExecResult, error) {
	hctx := &hostCtx{
		gas:      NewGasMeter(req.Limits.MaxGas),
		caps:     req.Caps,
		limits:   req.Limits,
		deadline: time.Now().Add(req.Limits.MaxCall),
	}

	instance, err := wasmer.NewInstance(cm.mod, wasmer.NewImportObject())
	if err != nil {
		return nil, errAbiIncompatible(err.Error())
	}
	defer instance.Close()

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, errAbiIncompatible("module does not export linear memory")
	}
	if uint32(len(mem.Data())) > req.Limits.MaxMemBytes {
		return nil, errLimitsExceeded("initial memory exceeds cap")
	}

	alloc, err := instance.Exports.GetFunction("alloc")
	if err != nil {
		return nil, errAbiIncompatible("module does not export alloc")
	}
	entry := req.Entrypoint
	if entry == "" {
		entry = "call"
	}
	fn, err := instance.Exports.GetFunction(entry)
	if err != nil {
		return nil, errAbiIncompatible(fmt.Sprintf("module does not export %q", entry))
	}

	allocated, err := alloc(int32(len(req.Input)))
	if err != nil {
		return nil, errTrap(err)
	}
	inPtr, ok := asI32(allocated)
	if !ok {
		return nil, errAbiIncompatible("alloc did not return an i32 pointer")
	}
	if err := writeGuestMemory(mem, inPtr, req.Input); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var packed any
	var callErr error
	go func() {
		defer close(done)
		packed, callErr = fn(inPtr, int32(len(req.Input)))
	}()

	// wasmer-go has no epoch-interruption API to forcibly preempt a running
	// guest, unlike wasmtime. Removing every host import (spec §4.2) means
	// the guest also has no cooperative checkpoint left to poll a deadline
	// against, so a busy-looping module is only caught once fn returns —
	// this watchdog bounds how long the call is allowed to keep running
	// before its result is discarded, not how long it actually runs.
	select {
	case <-done:
	case <-time.After(req.Limits.MaxCall + 5*time.Millisecond):
		hctx.interrupted = true
		hctx.fault = errTimeout(int(req.Limits.MaxCall.Milliseconds()))
		<-done
	}

	if hctx.fault != nil {
		return nil, hctx.fault
	}
	if callErr != nil {
		return nil, errTrap(callErr)
	}
	if uint32(len(mem.Data())) > req.Limits.MaxMemBytes {
		return nil, errLimitsExceeded("memory grew past cap")
	}

	outPtr, outLen, ok := unpack(packed)
	if !ok {
		return nil, errAbiIncompatible(fmt.Sprintf("%q did not return a packed (ptr,len) i64", entry))
	}
	if outLen > req.Limits.MaxOutputBytes {
		return nil, errOutputTooLarge(outLen, req.Limits.MaxOutputBytes)
	}
	raw, err := readGuestMemory(mem, outPtr, outLen)
	if err != nil {
		return nil, err
	}

	var out guestOutput
	if len(raw) > 0 {
		if err := codec.Decode(raw, &out); err != nil {
			return nil, errInvalidOutput(err)
		}
	}

	if len(out.Effects) > req.Limits.MaxEffects {
		return nil, errEffectLimitExceeded(len(out.Effects), req.Limits.MaxEffects)
	}
	if out.Emits > req.Limits.MaxEmits {
		return nil, errLimitsExceeded(fmt.Sprintf("%d emits exceeds cap %d", out.Emits, req.Limits.MaxEmits))
	}
	for _, capName := range out.CapsUsed {
		if !req.Caps.Allows(capName) {
			return nil, errCapsDenied(capName)
		}
	}

	// Gas has no per-instruction meter left to charge against since the
	// guest never calls back into the host; it is instead billed, like the
	// spec §4.5 step 7 metering costs it approximates, on the size of what
	// crossed the ABI boundary.
	if err := hctx.gas.Consume(uint64(1 + len(req.Input) + len(raw))); err != nil {
		return nil, err
	}

	return &ExecResult{
		Effects:  out.Effects,
		Logs:     out.Logs,
		Emits:    out.Emits,
		NewState: out.NewState,
		CapsUsed: out.CapsUsed,
		GasUsed:  hctx.gas.Used(),
	}, nil
}

// asI32 extracts an i32 result from a wasmer native-function call's return
// value, which wasmer-go hands back as the corresponding Go scalar type for
// a single-result function.
func asI32(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case []wasmer.Value:
		if len(n) != 1 {
			return 0, false
		}
		return n[0].I32(), true
	default:
		return 0, false
	}
}

// unpack splits a packed (ptr<<32|len) i64 into its two i32 halves.
func unpack(v any) (ptr int32, ln uint32, ok bool) {
	var packed int64
	switch n := v.(type) {
	case int64:
		packed = n
	case []wasmer.Value:
		if len(n) != 1 {
			return 0, 0, false
		}
		packed = n[0].I64()
	default:
		return 0, 0, false
	}
	return int32(packed >> 32), uint32(packed & 0xffffffff), true
}
