package sandbox

import "github.com/agentworld/runtime/pkg/apperr"

// Fault codes for every way a guest call can fail (spec §4.2). Each maps to
// an apperr.Class so callers only need to switch on the class for recovery
// policy and on the code for diagnostics/metrics labels.
const (
	FaultArtifactMissing    = "sandbox.artifact_missing"
	FaultHashMismatch       = "sandbox.hash_mismatch"
	FaultAbiIncompatible    = "sandbox.abi_incompatible"
	FaultCapsDenied         = "sandbox.caps_denied"
	FaultLimitsExceeded     = "sandbox.limits_exceeded"
	FaultTrap               = "sandbox.trap"
	FaultTimeout            = "sandbox.timeout"
	FaultOutOfFuel          = "sandbox.out_of_fuel"
	FaultInterrupted        = "sandbox.interrupted"
	FaultOutputTooLarge     = "sandbox.output_too_large"
	FaultEffectLimitExceeded = "sandbox.effect_limit_exceeded"
	FaultInvalidOutput      = "sandbox.invalid_output"
)

func errArtifactMissing(hash string) error {
	return apperr.Newf(apperr.Resource, FaultArtifactMissing, "artifact %s not found in cache or disk", hash)
}

func errHashMismatch(want, got string) error {
	return apperr.Newf(apperr.Integrity, FaultHashMismatch, "artifact content hash mismatch: want %s got %s", want, got)
}

func errAbiIncompatible(reason string) error {
	return apperr.Newf(apperr.Validation, FaultAbiIncompatible, "module ABI incompatible: %s", reason)
}

func errCapsDenied(cap string) error {
	return apperr.Newf(apperr.Validation, FaultCapsDenied, "capability %q not declared in manifest", cap)
}

func errLimitsExceeded(reason string) error {
	return apperr.Newf(apperr.Resource, FaultLimitsExceeded, "resource limit exceeded: %s", reason)
}

func errTrap(cause error) error {
	return apperr.New(apperr.Module, FaultTrap, cause)
}

func errTimeout(ms int) error {
	return apperr.Newf(apperr.Resource, FaultTimeout, "call exceeded %dms budget", ms)
}

func errOutOfFuel() error {
	return apperr.New(apperr.Resource, FaultOutOfFuel, nil)
}

func errInterrupted() error {
	return apperr.New(apperr.Resource, FaultInterrupted, nil)
}

func errOutputTooLarge(got, max uint32) error {
	return apperr.Newf(apperr.Resource, FaultOutputTooLarge, "output %d bytes exceeds cap %d", got, max)
}

func errEffectLimitExceeded(got, max int) error {
	return apperr.Newf(apperr.Resource, FaultEffectLimitExceeded, "%d effects exceeds cap %d", got, max)
}

func errInvalidOutput(cause error) error {
	return apperr.New(apperr.Validation, FaultInvalidOutput, cause)
}
