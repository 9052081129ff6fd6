package registry

import (
	"testing"

	"github.com/agentworld/runtime/internal/domain"
)

func TestGovernanceHappyPath(t *testing.T) {
	book := NewGovernanceBook(nil, nil)
	proposer := domain.Submitter{Kind: domain.SubmitterPlayer, ID: "alice"}
	change := domain.ModuleChangeSet{Entries: []domain.ModuleChangeEntry{{Op: domain.ChangeRegister, ModuleID: "reactor-core"}}}

	p, err := book.Propose(proposer, change)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if p.Status != domain.StatusProposed {
		t.Fatalf("status = %s, want proposed", p.Status)
	}

	if err := book.Shadow(p.ID, domain.ShadowReport{Status: domain.ShadowPassed}); err != nil {
		t.Fatalf("shadow: %v", err)
	}

	signers := []domain.Submitter{{Kind: domain.SubmitterSystem, ID: "s1"}, {Kind: domain.SubmitterSystem, ID: "s2"}, {Kind: domain.SubmitterSystem, ID: "s3"}}
	var approved bool
	for i, s := range signers {
		var err error
		approved, err = book.Approve(p.ID, s, nil, 0, 3)
		if err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		if approved {
			break
		}
	}
	if !approved {
		t.Fatal("expected supermajority to be reached once more than half of the three signers approved")
	}

	if err := book.Apply(p.ID); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := book.Get(p.ID)
	if got.Status != domain.StatusApplied {
		t.Fatalf("status = %s, want applied", got.Status)
	}

	if err := book.RollBack(p.ID, "regression detected"); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	got, _ = book.Get(p.ID)
	if got.Status != domain.StatusRolledBack {
		t.Fatalf("status = %s, want rolled_back", got.Status)
	}
}

func TestGovernanceRejectsIllegalTransition(t *testing.T) {
	book := NewGovernanceBook(nil, nil)
	p, _ := book.Propose(domain.Submitter{Kind: domain.SubmitterPlayer, ID: "bob"}, domain.ModuleChangeSet{Entries: []domain.ModuleChangeEntry{{Op: domain.ChangeRegister, ModuleID: "x"}}})

	if err := book.Apply(p.ID); err == nil {
		t.Fatal("expected error applying a proposal that was never shadowed/approved")
	}
}

func TestGovernanceRejectEndsLifecycle(t *testing.T) {
	book := NewGovernanceBook(nil, nil)
	p, _ := book.Propose(domain.Submitter{Kind: domain.SubmitterPlayer, ID: "carl"}, domain.ModuleChangeSet{Entries: []domain.ModuleChangeEntry{{Op: domain.ChangeUpgrade, ModuleID: "x"}}})
	if err := book.Shadow(p.ID, domain.ShadowReport{}); err != nil {
		t.Fatalf("shadow: %v", err)
	}
	if err := book.Reject(p.ID, "too many divergences"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := book.Apply(p.ID); err == nil {
		t.Fatal("expected error applying a rejected proposal")
	}
}

func TestRegistryActiveSubscribersOrderedLexicographically(t *testing.T) {
	r := New()
	for _, id := range []domain.ModuleID{"zeta", "alpha", "mu"} {
		_ = r.Register(ModuleRecord{
			ModuleID: id,
			Artifact: domain.ModuleArtifact{
				Manifest: domain.ModuleManifest{
					Subscriptions: []domain.Subscription{{Stage: domain.StagePreAction}},
				},
			},
			Active: true,
		})
	}
	ids, err := r.ActiveSubscribers(domain.StagePreAction, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.ModuleID{"alpha", "mu", "zeta"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestRegistryDeactivatedModuleExcluded(t *testing.T) {
	r := New()
	_ = r.Register(ModuleRecord{
		ModuleID: "m1",
		Artifact: domain.ModuleArtifact{Manifest: domain.ModuleManifest{Subscriptions: []domain.Subscription{{Stage: domain.StageTick}}}},
		Active:   true,
	})
	if err := r.Deactivate("m1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	ids, err := r.ActiveSubscribers(domain.StageTick, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("got %v, want none", ids)
	}
}
