package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/pkg/apperr"
)

// echoModuleWat is the minimal guest satisfying the call ABI: a bump
// allocator plus call/reduce entrypoints that both hand the host's own
// input buffer straight back out, packed the way the ABI expects. It
// exists purely to exercise alloc/write/call/read/decode end to end
// without pulling in a real module toolchain.
const echoModuleWat = `
(module
  (memory (export "memory") 2)
  (global $heap (mut i32) (i32.const 1024))
  (func $alloc (export "alloc") (param $len i32) (result i32)
    (local $ptr i32)
    (local.set $ptr (global.get $heap))
    (global.set $heap (i32.add (global.get $heap) (local.get $len)))
    (local.get $ptr))
  (func $pack (param $ptr i32) (param $len i32) (result i64)
    (i64.or
      (i64.shl (i64.extend_i32_u (local.get $ptr)) (i64.const 32))
      (i64.extend_i32_u (local.get $len))))
  (func (export "call") (param $ptr i32) (param $len i32) (result i64)
    (call $pack (local.get $ptr) (local.get $len)))
  (func (export "reduce") (param $ptr i32) (param $len i32) (result i64)
    (call $pack (local.get $ptr) (local.get $len))))
`

// noAllocModuleWat exports memory and a call function but no alloc, the
// ABI-incompatibility case executor.Call must reject before ever writing
// into guest memory.
const noAllocModuleWat = `
(module
  (memory (export "memory") 1)
  (func (export "call") (param $ptr i32) (param $len i32) (result i64)
    (i64.const 0)))
`

func mustWat2Wasm(t *testing.T, wat string) []byte {
	t.Helper()
	wasmBytes, err := wasmer.Wat2Wasm(wat)
	require.NoError(t, err)
	return wasmBytes
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	cache, err := NewModuleCache(4, "")
	require.NoError(t, err)
	return NewExecutor(cache)
}

func defaultLimits() Limits {
	return Limits{
		MaxGas:         1_000_000,
		MaxMemBytes:    1 << 20,
		MaxCall:        200 * time.Millisecond,
		MaxOutputBytes: 1 << 16,
		MaxEffects:     16,
		MaxEmits:       16,
	}
}

func TestCallRoundTripsGuestOutputThroughTheABI(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)

	input, err := codec.Encode(guestOutput{
		Effects:  [][]byte{[]byte("effect-one")},
		Logs:     []string{"hello from guest"},
		Emits:    2,
		NewState: []byte("state-v2"),
		CapsUsed: []string{"cap.network"},
	})
	require.NoError(t, err)

	result, err := e.Call(CallRequest{
		WasmHash:   wasmHash,
		WasmBytes:  wasmBytes,
		Caps:       NewCaps([]string{"cap.network"}),
		Limits:     defaultLimits(),
		Input:      input,
		Entrypoint: "call",
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("effect-one")}, result.Effects)
	require.Equal(t, []string{"hello from guest"}, result.Logs)
	require.Equal(t, 2, result.Emits)
	require.Equal(t, []byte("state-v2"), result.NewState)
	require.Equal(t, []string{"cap.network"}, result.CapsUsed)
	require.Greater(t, result.GasUsed, uint64(0))
}

func TestCallReduceEntrypointRoundTrips(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)

	input, err := codec.Encode(guestOutput{Emits: 1})
	require.NoError(t, err)

	result, err := e.Call(CallRequest{
		WasmHash:   wasmHash,
		WasmBytes:  wasmBytes,
		Limits:     defaultLimits(),
		Input:      input,
		Entrypoint: "reduce",
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Emits)
}

func TestCallModuleCompiledOnceCachedOnSecondCall(t *testing.T) {
	cache, err := NewModuleCache(4, t.TempDir())
	require.NoError(t, err)
	e := NewExecutor(cache)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)
	input, err := codec.Encode(guestOutput{})
	require.NoError(t, err)

	req := CallRequest{WasmHash: wasmHash, WasmBytes: wasmBytes, Limits: defaultLimits(), Input: input, Entrypoint: "call"}
	_, err = e.Call(req)
	require.NoError(t, err)

	// Second call omits WasmBytes: it must be served from the in-memory
	// compiled-module cache rather than failing as artifact-missing.
	req.WasmBytes = nil
	_, err = e.Call(req)
	require.NoError(t, err)
}

func TestCallRejectsCapabilityTheManifestNeverGranted(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)
	input, err := codec.Encode(guestOutput{CapsUsed: []string{"cap.filesystem"}})
	require.NoError(t, err)

	_, err = e.Call(CallRequest{
		WasmHash:   wasmHash,
		WasmBytes:  wasmBytes,
		Caps:       NewCaps([]string{"cap.network"}),
		Limits:     defaultLimits(),
		Input:      input,
		Entrypoint: "call",
	})
	require.Error(t, err)
	require.Equal(t, FaultCapsDenied, apperr.Code(err))
}

func TestCallRejectsEffectCountOverLimit(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)
	input, err := codec.Encode(guestOutput{Effects: [][]byte{[]byte("a"), []byte("b"), []byte("c")}})
	require.NoError(t, err)

	limits := defaultLimits()
	limits.MaxEffects = 1
	_, err = e.Call(CallRequest{
		WasmHash:   wasmHash,
		WasmBytes:  wasmBytes,
		Limits:     limits,
		Input:      input,
		Entrypoint: "call",
	})
	require.Error(t, err)
	require.Equal(t, FaultEffectLimitExceeded, apperr.Code(err))
}

func TestCallRejectsHashMismatch(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, echoModuleWat)

	_, err := e.Call(CallRequest{
		WasmHash:   "not-the-real-hash",
		WasmBytes:  wasmBytes,
		Limits:     defaultLimits(),
		Entrypoint: "call",
	})
	require.Error(t, err)
	require.Equal(t, FaultHashMismatch, apperr.Code(err))
}

func TestCallRejectsModuleMissingAlloc(t *testing.T) {
	e := newExecutor(t)
	wasmBytes := mustWat2Wasm(t, noAllocModuleWat)
	wasmHash, err := contentHash(wasmBytes)
	require.NoError(t, err)

	_, err = e.Call(CallRequest{
		WasmHash:   wasmHash,
		WasmBytes:  wasmBytes,
		Limits:     defaultLimits(),
		Entrypoint: "call",
	})
	require.Error(t, err)
	require.Equal(t, FaultAbiIncompatible, apperr.Code(err))
}
