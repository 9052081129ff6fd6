package bridge

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/pipeline"
	"github.com/agentworld/runtime/internal/registry"
	"github.com/agentworld/runtime/internal/sandbox"
	"github.com/agentworld/runtime/internal/world"
)

type allowAll struct{}

func (allowAll) Verify(domain.CommittedBatch) error { return nil }

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	w := world.New("w1")
	w.PutAgent(&domain.Agent{ID: "a1", Balances: map[domain.ResourceKind]uint64{domain.ResourceElectricity: 100}})
	w.PutAgent(&domain.Agent{ID: "a2", Balances: map[domain.ResourceKind]uint64{}})

	j, err := world.OpenJournal(filepath.Join(t.TempDir(), "journal.bin"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	p := pipeline.New(w, registry.New(), nil, j, sandbox.Limits{}, nil)
	return New(p, allowAll{}, 0, 10, nil)
}

func transferBatch(height uint64) domain.CommittedBatch {
	return domain.CommittedBatch{
		Height: height,
		Actions: []domain.Action{{
			ID:        domain.ActionID("a"),
			Kind:      domain.ActionTransfer,
			Submitter: domain.Submitter{Kind: domain.SubmitterSystem, ID: "sys"},
			Params:    map[string]any{"from": "a1", "to": "a2", "kind": "electricity", "amount": float64(10)},
		}},
	}
}

func TestBridgeIngestInOrder(t *testing.T) {
	b := newTestBridge(t)
	blocks, err := b.Ingest(transferBatch(1))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Height != 1 {
		t.Fatalf("got %+v, want one block at height 1", blocks)
	}
	if b.ExecutedHeight != 1 {
		t.Fatalf("executed height = %d, want 1", b.ExecutedHeight)
	}
}

func TestBridgeIngestOutOfOrderBuffers(t *testing.T) {
	b := newTestBridge(t)
	blocks, err := b.Ingest(transferBatch(2))
	if err != nil {
		t.Fatalf("ingest height 2: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected height 2 to buffer until height 1 arrives, got %d blocks", len(blocks))
	}
	blocks, err = b.Ingest(transferBatch(1))
	if err != nil {
		t.Fatalf("ingest height 1: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected both heights to apply once height 1 arrives, got %d", len(blocks))
	}
	if b.ExecutedHeight != 2 {
		t.Fatalf("executed height = %d, want 2", b.ExecutedHeight)
	}
}

func TestBridgeRespectsMaxExecutableGate(t *testing.T) {
	b := newTestBridge(t)
	b.MaxExecutable = 0
	blocks, err := b.Ingest(transferBatch(1))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatal("expected gate to hold batch 1 back")
	}
	b.RaiseGate(1)
	blocks, err = b.Ingest(transferBatch(2))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Height != 1 {
		t.Fatalf("expected height 1 to release once gate raised, got %+v", blocks)
	}
}

func TestThresholdVerifierRequiresDistinctSigners(t *testing.T) {
	pub1, priv1, _ := ed25519.GenerateKey(nil)
	pub2, priv2, _ := ed25519.GenerateKey(nil)
	validators := ValidatorSet{"v1": pub1, "v2": pub2}
	verifier := ThresholdVerifier{Validators: validators, Threshold: 2}

	batch := transferBatch(1)
	msg, _ := hashableMessage(batch)
	sig1 := ed25519.Sign(priv1, msg)

	batch.Signers = []string{"v1", "v1"}
	batch.QuorumSig = [][]byte{sig1, sig1}
	if err := verifier.Verify(batch); err == nil {
		t.Fatal("expected duplicate signer to not count twice toward threshold")
	}

	sig2 := ed25519.Sign(priv2, msg)
	batch.Signers = []string{"v1", "v2"}
	batch.QuorumSig = [][]byte{sig1, sig2}
	if err := verifier.Verify(batch); err != nil {
		t.Fatalf("expected quorum met, got: %v", err)
	}
}

func hashableMessage(batch domain.CommittedBatch) ([]byte, error) {
	return codec.Encode(struct {
		Height  uint64          `cbor:"height"`
		Actions []domain.Action `cbor:"actions"`
	}{batch.Height, batch.Actions})
}
