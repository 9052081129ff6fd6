// Package kernel is the composition root: it wires World, Journal,
// Registry, GovernanceBook, sandbox Executor, Pipeline, Bridge, audit Log
// and metrics Recorder from a loaded pkg/config.Config, and carries out the
// registry-mutation half of a governance Apply/RollBack that
// registry.GovernanceBook deliberately leaves to its caller (spec §5's
// fixed event-group order: RegisterModule/UpgradeModule/ActivateModule/
// DeactivateModule, then ManifestUpdated, then GovernanceApplied last).
// Grounded on the teacher's cmd/synnergy wiring of core.InitLedger plus a
// VM/consensus/network trio into one process, collapsed here into a single
// struct since this runtime is one binary, not several cooperating nodes.
package kernel

import (
	"time"

	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/audit"
	"github.com/agentworld/runtime/internal/bridge"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/metrics"
	"github.com/agentworld/runtime/internal/pipeline"
	"github.com/agentworld/runtime/internal/registry"
	"github.com/agentworld/runtime/internal/sandbox"
	"github.com/agentworld/runtime/internal/world"
	"github.com/agentworld/runtime/pkg/apperr"
	"github.com/agentworld/runtime/pkg/config"
)

// Kernel owns every subsystem a running node needs.
type Kernel struct {
	Config     *config.Config
	World      *world.World
	Journal    *world.Journal
	Artifacts  *world.ArtifactStore
	Distfs     *world.DistfsSidecar
	Registry   *registry.Registry
	Governance *registry.GovernanceBook
	Executor   *sandbox.Executor
	Pipeline   *pipeline.Pipeline
	Bridge     *bridge.Bridge
	Audit      *audit.Log
	Metrics    *metrics.Recorder

	log *zap.SugaredLogger
}

// Open constructs a Kernel from cfg, replaying the journal (and the newest
// snapshot under cfg.World.SnapshotPath, if any) to restore World before
// accepting new actions.
func Open(cfg *config.Config, verifier bridge.QuorumVerifier, govValidators registry.ValidatorSet, logger *zap.Logger) (*Kernel, error) {
	if logger == nil {
		logger = zap.L()
	}

	w := world.New(domain.WorldID(cfg.World.ID))

	j, err := world.OpenJournal(cfg.World.WALPath)
	if err != nil {
		return nil, apperr.Wrap(err, "opening journal")
	}

	reg := registry.New()
	gov := registry.NewGovernanceBook(logger, govValidators)

	if snapPath, ok := world.LatestSnapshotFile(cfg.World.SnapshotPath); ok {
		snap, err := world.LoadSnapshotFile(snapPath)
		if err != nil {
			return nil, apperr.Wrap(err, "loading snapshot")
		}
		if err := world.RestoreInto(w, snap, j, func(domain.Event) error { return nil }); err != nil {
			return nil, apperr.Wrap(err, "restoring from snapshot")
		}
	} else {
		if err := j.Replay(func(domain.Event) error { return nil }); err != nil {
			return nil, apperr.Wrap(err, "replaying journal")
		}
	}

	artifacts, err := world.NewArtifactStore(cfg.World.ModulesDir)
	if err != nil {
		return nil, apperr.Wrap(err, "opening artifact store")
	}
	distfs, err := world.NewDistfsSidecar(cfg.World.SnapshotPath)
	if err != nil {
		return nil, apperr.Wrap(err, "opening distfs sidecar")
	}

	cache, err := sandbox.NewModuleCache(cfg.Sandbox.CompileCacheN, cfg.Sandbox.DiskCacheDir)
	if err != nil {
		return nil, apperr.Wrap(err, "opening module cache")
	}
	exec := sandbox.NewExecutor(cache)

	limits := sandbox.Limits{
		MaxGas:         cfg.Sandbox.MaxGas,
		MaxMemBytes:    cfg.Sandbox.MaxMemBytes,
		MaxCall:        time.Duration(cfg.Sandbox.MaxCallMS) * time.Millisecond,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
		MaxEffects:     cfg.Sandbox.MaxEffects,
		MaxEmits:       cfg.Sandbox.MaxEmits,
	}

	pipe := pipeline.New(w, reg, exec, j, limits, logger)

	var maxExecutable uint64
	if cfg.Bridge.ExecutionGateOpen {
		maxExecutable = ^uint64(0)
	}
	br := bridge.New(pipe, verifier, 0, maxExecutable, logger)

	auditLog := audit.NewLog()
	pipe.Audit = auditLog

	k := &Kernel{
		Config:     cfg,
		World:      w,
		Journal:    j,
		Artifacts:  artifacts,
		Distfs:     distfs,
		Registry:   reg,
		Governance: gov,
		Executor:   exec,
		Pipeline:   pipe,
		Bridge:     br,
		Audit:      auditLog,
		log:        logger.Sugar(),
	}

	rec, err := metrics.NewRecorder(w, journalAdapter{j}, br, cfg.Logging.File)
	if err != nil {
		return nil, apperr.Wrap(err, "opening metrics recorder")
	}
	k.Metrics = rec

	return k, nil
}

// Close releases file handles the Kernel owns.
func (k *Kernel) Close() error {
	if k.Metrics != nil {
		_ = k.Metrics.Close()
	}
	return k.Journal.Close()
}

// ApplyGovernance carries out a proposal's ModuleChangeSet against the
// Registry, one entry at a time in ModuleChangeGroupOrder (register, then
// upgrade, then activate, then deactivate, each group sorted by ModuleID),
// emitting the matching event per entry. A ManifestUpdated event is then
// emitted unconditionally — every applied proposal changes the registry's
// effective manifest, regardless of which ops it contained — followed by
// GovernanceApplied last. It is the caller registry.GovernanceBook.Apply's
// doc comment refers to.
func (k *Kernel) ApplyGovernance(id domain.ProposalID) error {
	p, ok := k.Governance.Get(id)
	if !ok {
		return apperr.Newf(apperr.Validation, "kernel.unknown_proposal", "proposal %s not found", id)
	}

	entries := p.Change.GroupedSorted()
	touched := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := k.mutateRegistry(entry); err != nil {
			return apperr.Wrap(err, "applying module change entry")
		}
		if err := k.emitEvent(eventKindForChange(entry.Op), map[string]any{
			"module_id": string(entry.ModuleID),
			"op":        string(entry.Op),
		}); err != nil {
			return err
		}
		touched = append(touched, string(entry.ModuleID))
	}

	if err := k.emitEvent(domain.EventManifestUpdated, map[string]any{
		"proposal_id": string(id),
		"modules":     touched,
	}); err != nil {
		return err
	}
	if err := k.emitEvent(domain.EventGovernanceApplied, map[string]any{
		"proposal_id": string(id),
	}); err != nil {
		return err
	}

	return k.Governance.Apply(id)
}

// RollbackGovernance reverses an applied proposal's module-side effects by
// deactivating every module the change set touched, then records the
// RolledBack transition.
func (k *Kernel) RollbackGovernance(id domain.ProposalID, reason string) error {
	p, ok := k.Governance.Get(id)
	if !ok {
		return apperr.Newf(apperr.Validation, "kernel.unknown_proposal", "proposal %s not found", id)
	}
	for _, entry := range p.Change.GroupedSorted() {
		if err := k.Registry.Deactivate(entry.ModuleID); err != nil {
			return apperr.Wrap(err, "deactivating module during rollback")
		}
	}
	if err := k.emitEvent(domain.EventGovernanceRolledBack, map[string]any{
		"proposal_id": string(id),
		"reason":      reason,
	}); err != nil {
		return err
	}
	return k.Governance.RollBack(id, reason)
}

// CompactAgentMemory lets an operator shrink one agent's memory blob for a
// module, typically in response to that module's own governance Applied/
// RolledBack transition (spec's storage-rent invariant implies compaction
// has a cost, so it is explicit rather than automatic).
func (k *Kernel) CompactAgentMemory(agentID domain.AgentID, moduleID domain.ModuleID, compacted []byte) error {
	return k.World.CompactMemory(agentID, moduleID, compacted)
}

func (k *Kernel) mutateRegistry(entry domain.ModuleChangeEntry) error {
	switch entry.Op {
	case domain.ChangeRegister:
		if entry.Artifact == nil {
			return apperr.New(apperr.Validation, "kernel.missing_artifact", nil)
		}
		return k.Registry.Register(registry.ModuleRecord{
			ModuleID: entry.ModuleID,
			Artifact: *entry.Artifact,
			Status:   domain.StatusApplied,
		})
	case domain.ChangeUpgrade:
		if entry.Artifact == nil {
			return apperr.New(apperr.Validation, "kernel.missing_artifact", nil)
		}
		return k.Registry.Upgrade(entry.ModuleID, entry.FromVersion, entry.ToVersion, *entry.Artifact)
	case domain.ChangeActivate:
		return k.Registry.Activate(entry.ModuleID)
	case domain.ChangeDeactivate:
		return k.Registry.Deactivate(entry.ModuleID)
	default:
		return apperr.Newf(apperr.Validation, "kernel.unknown_change_op", "unrecognized change op %s", entry.Op)
	}
}

// emitEvent allocates the next sequence number, appends the event to the
// journal (hash-chaining it to the prior entry) and mirrors it into the
// audit log.
func (k *Kernel) emitEvent(kind domain.EventKind, data map[string]any) error {
	seq, err := k.World.NextSequence()
	if err != nil {
		return apperr.Wrap(err, "allocating event sequence")
	}
	ev := &domain.Event{
		Sequence: seq,
		Kind:     kind,
		Tick:     k.World.CurrentTick(),
		Data:     data,
	}
	if err := k.Journal.Append(ev); err != nil {
		return apperr.Wrap(err, "appending governance event")
	}
	k.Audit.Append(*ev)
	return nil
}

type journalAdapter struct{ j *world.Journal }

func (a journalAdapter) Length() uint64 { return a.j.Length() }

// eventKindForChange maps one ModuleChangeEntry's op to its per-entry event
// kind. ManifestUpdated and GovernanceApplied are emitted separately by
// ApplyGovernance, once per proposal rather than once per entry.
func eventKindForChange(op domain.ModuleChangeOp) domain.EventKind {
	switch op {
	case domain.ChangeRegister:
		return domain.EventModuleRegistered
	case domain.ChangeUpgrade:
		return domain.EventModuleUpgraded
	case domain.ChangeActivate:
		return domain.EventModuleActivated
	case domain.ChangeDeactivate:
		return domain.EventModuleDeactivated
	default:
		return domain.EventManifestUpdated
	}
}
