package registry

import (
	"fmt"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
)

// ArtifactSource is the subset of world.ArtifactStore shadow validation
// needs: reading back the wasm bytes and manifest a proposal's artifact
// hash claims to name.
type ArtifactSource interface {
	Get(hash domain.Hash) ([]byte, domain.ModuleManifest, error)
}

// ValidateShadow runs a proposed ModuleChangeSet through the checks spec
// §4.3 step 2 requires before a change is eligible for approval: artifact
// presence, content-hash match, capability/limit sanity and filter schema
// validity; it does not check the module's ABI (its exported functions and
// memory). It never touches the live Registry — a shadow pass is
// read-only by construction — and reports ShadowFailed (which auto-rejects
// the proposal) only for defects that would make the module un-runnable;
// anything softer is reported as a warning.
func ValidateShadow(artifacts ArtifactSource, maxGasHint uint64, id domain.ProposalID, change domain.ModuleChangeSet) domain.ShadowReport {
	report := domain.ShadowReport{ProposalID: id, Status: domain.ShadowPassed}

	for _, entry := range change.Entries {
		if entry.ModuleID != "" {
			report.Modules = append(report.Modules, entry.ModuleID)
		}

		if entry.Op == domain.ChangeActivate || entry.Op == domain.ChangeDeactivate {
			continue
		}

		if entry.Artifact == nil {
			report.Errors = append(report.Errors, fmt.Sprintf("module %s: %s requires an artifact", entry.ModuleID, entry.Op))
			continue
		}

		wasmBytes, manifest, err := artifacts.Get(entry.Artifact.WasmHash)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("module %s: artifact %s not found in store: %v", entry.ModuleID, entry.Artifact.WasmHash, err))
			continue
		}

		if got := domain.Hash(codec.HashBytes(wasmBytes)); got != entry.Artifact.WasmHash {
			report.Errors = append(report.Errors, fmt.Sprintf("module %s: wasm bytes hash to %s, artifact claims %s", entry.ModuleID, got, entry.Artifact.WasmHash))
		}

		if len(manifest.Subscriptions) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("module %s: manifest declares no subscriptions", entry.ModuleID))
		}
		for _, sub := range manifest.Subscriptions {
			if err := ValidateFilterSchema(sub.Filter); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("module %s: subscription filter for stage %s: %v", entry.ModuleID, sub.Stage, err))
			}
		}

		if manifest.MaxGasHint > 0 && maxGasHint > 0 && manifest.MaxGasHint > maxGasHint {
			report.Warnings = append(report.Warnings, fmt.Sprintf("module %s: max_gas_hint %d exceeds configured ceiling %d", entry.ModuleID, manifest.MaxGasHint, maxGasHint))
		}

		for _, capName := range manifest.Capabilities {
			if capName == "" {
				report.Errors = append(report.Errors, fmt.Sprintf("module %s: declares an empty capability string", entry.ModuleID))
			}
		}

		if entry.Op == domain.ChangeUpgrade && entry.FromVersion == "" {
			report.Warnings = append(report.Warnings, fmt.Sprintf("module %s: upgrade entry has no from_version, skipping version-order check until apply time", entry.ModuleID))
		}
	}

	if len(report.Errors) > 0 {
		report.Status = domain.ShadowFailed
	} else if len(report.Warnings) > 0 {
		report.Status = domain.ShadowWarning
	}
	return report
}
