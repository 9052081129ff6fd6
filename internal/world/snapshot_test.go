package world

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
)

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	w := newTestWorld()
	w.Tick = 7
	snap, err := SnapshotOf(w, 42, codec.Hash)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	dir := t.TempDir()
	path, err := SaveSnapshotFile(dir, snap)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadSnapshotFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.StateHash != snap.StateHash {
		t.Fatalf("state hash mismatch after round trip: %s != %s", loaded.StateHash, snap.StateHash)
	}
	if loaded.JournalLength != 42 {
		t.Fatalf("journal length = %d, want 42", loaded.JournalLength)
	}
}

func TestLatestSnapshotFilePicksNewestByTick(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{5, 20, 3} {
		snap := &domain.Snapshot{WorldID: "w1", TakenAtTick: tick}
		if _, err := SaveSnapshotFile(dir, snap); err != nil {
			t.Fatalf("save tick %d: %v", tick, err)
		}
	}
	latest, ok := LatestSnapshotFile(dir)
	if !ok {
		t.Fatal("expected a latest snapshot")
	}
	loaded, err := LoadSnapshotFile(latest)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.TakenAtTick != 20 {
		t.Fatalf("latest tick = %d, want 20", loaded.TakenAtTick)
	}
}

func TestPruneSnapshotsKeepsLastAndBoundaryTicks(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{10, 20, 30, 40, 50} {
		snap := &domain.Snapshot{WorldID: "w1", TakenAtTick: tick}
		if _, err := SaveSnapshotFile(dir, snap); err != nil {
			t.Fatalf("save tick %d: %v", tick, err)
		}
	}
	policy := domain.SnapshotRetentionPolicy{KeepLast: 1, KeepEveryNTicks: 20}
	if err := PruneSnapshots(dir, policy); err != nil {
		t.Fatalf("prune: %v", err)
	}

	remaining := map[uint64]bool{}
	for _, tick := range []uint64{10, 20, 30, 40, 50} {
		name := fmt.Sprintf("snapshot-%020d.bin", tick)
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			remaining[tick] = true
		}
	}
	// Newest (50) kept as KeepLast=1; 20 and 40 kept as multiples of 20.
	want := map[uint64]bool{50: true, 40: true, 20: true}
	for tick := range want {
		if !remaining[tick] {
			t.Errorf("expected tick %d to survive pruning", tick)
		}
	}
	if remaining[10] || remaining[30] {
		t.Errorf("expected ticks 10 and 30 to be pruned, got remaining=%v", remaining)
	}
}
