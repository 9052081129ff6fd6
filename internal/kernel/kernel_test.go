package kernel

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/world"
	"github.com/agentworld/runtime/pkg/config"
)

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(domain.CommittedBatch) error { return nil }

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.World.ID = "w1"
	cfg.World.WALPath = filepath.Join(dir, "journal.bin")
	cfg.World.SnapshotPath = filepath.Join(dir, "snapshots")
	cfg.World.ModulesDir = filepath.Join(dir, "modules")
	cfg.Sandbox.CompileCacheN = 8
	cfg.Logging.File = filepath.Join(dir, "health.log")
	cfg.Bridge.ExecutionGateOpen = true

	k, err := Open(cfg, allowAllVerifier{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestOpenBuildsEmptyKernel(t *testing.T) {
	k := newTestKernel(t)
	require.Zero(t, k.World.AgentCount())
	require.Zero(t, k.Metrics.Snapshot().Tick)
}

func TestApplyGovernanceRegistersModuleAndEmitsEvents(t *testing.T) {
	k := newTestKernel(t)

	proposal, err := k.Governance.Propose(
		domain.Submitter{Kind: domain.SubmitterSystem, ID: "ops"},
		domain.ModuleChangeSet{
			Entries: []domain.ModuleChangeEntry{
				{Op: domain.ChangeRegister, ModuleID: "mod1", Artifact: &domain.ModuleArtifact{WasmHash: "h1", Version: "v1"}},
			},
		},
	)
	require.NoError(t, err)
	require.NoError(t, k.Governance.Shadow(proposal.ID, domain.ShadowReport{ProposalID: proposal.ID, Status: domain.ShadowPassed, Modules: []domain.ModuleID{"mod1"}}))
	approved, err := k.Governance.Approve(proposal.ID, domain.Submitter{Kind: domain.SubmitterSystem, ID: "ops"}, nil, 0, 1)
	require.NoError(t, err)
	require.True(t, approved)

	require.NoError(t, k.ApplyGovernance(proposal.ID))

	rec, ok := k.Registry.Get("mod1")
	require.True(t, ok)
	require.Equal(t, domain.Hash("h1"), rec.Artifact.WasmHash)

	got, ok := k.Governance.Get(proposal.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusApplied, got.Status)

	// ModuleRegistered, then ManifestUpdated, then GovernanceApplied, in
	// that fixed order.
	require.EqualValues(t, 3, k.Journal.Length())
	events := readAllEvents(t, k)
	require.Len(t, events, 3)
	require.Equal(t, domain.EventModuleRegistered, events[0].Kind)
	require.Equal(t, domain.EventManifestUpdated, events[1].Kind)
	require.Equal(t, domain.EventGovernanceApplied, events[2].Kind)
}

// readAllEvents reopens the journal file as a fresh handle to replay it,
// since Replay is only safe to call once per Journal (it restores the
// hash-chain tip from scratch, which would fail against the already-
// advanced tip of a Journal that has since Append'd more records).
func readAllEvents(t *testing.T, k *Kernel) []domain.Event {
	t.Helper()
	j2, err := world.OpenJournal(k.Config.World.WALPath)
	require.NoError(t, err)
	defer j2.Close()

	var events []domain.Event
	require.NoError(t, j2.Replay(func(ev domain.Event) error {
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestCompactAgentMemoryDelegatesToWorld(t *testing.T) {
	k := newTestKernel(t)
	k.World.PutAgent(&domain.Agent{ID: "a1", Memory: map[domain.ModuleID][]byte{"mod1": []byte("long blob")}})

	require.NoError(t, k.CompactAgentMemory("a1", "mod1", []byte("short")))
	a1, _ := k.World.Agent("a1")
	require.Equal(t, "short", string(a1.Memory["mod1"]))
}
