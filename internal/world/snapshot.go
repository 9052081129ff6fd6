package world

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// SnapshotOf builds a domain.Snapshot of w at its current journal length.
// journalLength is supplied by the caller (the kernel loop knows how many
// records it has appended) rather than recomputed here, since recomputing
// it would mean re-reading the whole journal on every snapshot.
func SnapshotOf(w *World, journalLength uint64, hashFn func(any) (string, error)) (*domain.Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	agents := make(map[domain.AgentID]domain.Agent, len(w.Agents))
	for id, a := range w.Agents {
		agents[id] = *a
	}
	locations := make(map[domain.LocationID]domain.Location, len(w.Locations))
	for id, l := range w.Locations {
		locations[id] = *l
	}

	snap := &domain.Snapshot{
		WorldID:       w.ID,
		JournalLength: journalLength,
		TakenAtTick:   w.Tick,
		Sequence:      w.Sequence,
		Agents:        agents,
		Locations:     locations,
	}
	hash, err := hashFn(snap)
	if err != nil {
		return nil, apperr.Wrap(err, "hashing snapshot")
	}
	snap.StateHash = domain.Hash(hash)
	return snap, nil
}

// SaveSnapshotFile writes snap as canonical CBOR to dir/snapshot-<tick>.bin.
func SaveSnapshotFile(dir string, snap *domain.Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.New(apperr.Integrity, "world.snapshot_mkdir_failed", err)
	}
	name := fmt.Sprintf("snapshot-%020d.bin", snap.TakenAtTick)
	path := filepath.Join(dir, name)

	data, err := codec.Encode(snap)
	if err != nil {
		return "", apperr.Wrap(err, "encoding snapshot")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperr.New(apperr.Integrity, "world.snapshot_write_failed", err)
	}
	return path, nil
}

// LoadSnapshotFile reads and decodes a snapshot file written by
// SaveSnapshotFile.
func LoadSnapshotFile(path string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.Integrity, "world.snapshot_read_failed", err)
	}
	var snap domain.Snapshot
	if err := codec.Decode(data, &snap); err != nil {
		return nil, apperr.Wrap(err, "decoding snapshot")
	}
	return &snap, nil
}

// LatestSnapshotFile returns the path of the newest snapshot file in dir,
// or ok=false if none exist. Snapshot filenames are zero-padded by tick so
// lexicographic order is chronological order.
func LatestSnapshotFile(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "snapshot-") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), true
}

// RestoreInto replays the journal starting from snap (whose JournalLength
// records have already been folded into it) and applies every remaining
// record via applyFn. It fails with an Integrity error if the journal holds
// fewer records than snap.JournalLength claims (spec §4.4 "journal-length
// boundary verification").
func RestoreInto(w *World, snap *domain.Snapshot, j *Journal, applyFn func(domain.Event) error) error {
	w.mu.Lock()
	w.ID = snap.WorldID
	w.Tick = snap.TakenAtTick
	w.Sequence = snap.Sequence
	w.Agents = make(map[domain.AgentID]*domain.Agent, len(snap.Agents))
	for id, a := range snap.Agents {
		a := a
		w.Agents[id] = &a
	}
	w.Locations = make(map[domain.LocationID]*domain.Location, len(snap.Locations))
	for id, l := range snap.Locations {
		l := l
		w.Locations[id] = &l
	}
	w.mu.Unlock()

	var seen uint64
	if err := j.Replay(func(ev domain.Event) error {
		seen++
		if seen <= snap.JournalLength {
			return nil
		}
		return applyFn(ev)
	}); err != nil {
		return err
	}
	if seen < snap.JournalLength {
		return apperr.Newf(apperr.Integrity, "world.journal_shorter_than_snapshot", "journal holds %d records, snapshot was taken at %d", seen, snap.JournalLength)
	}
	return nil
}

// PruneSnapshots removes snapshot files in dir that SnapshotRetentionPolicy
// no longer requires, keeping the newest KeepLast plus any that land on a
// KeepEveryNTicks boundary (spec §4.4).
func PruneSnapshots(dir string, policy domain.SnapshotRetentionPolicy) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.New(apperr.Integrity, "world.snapshot_prune_readdir_failed", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "snapshot-") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for rank, name := range names {
		tick, err := tickFromSnapshotName(name)
		if err != nil {
			continue
		}
		if policy.ShouldKeep(rank, tick) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return apperr.New(apperr.Integrity, "world.snapshot_prune_remove_failed", err)
		}
	}
	return nil
}

func tickFromSnapshotName(name string) (uint64, error) {
	var tick uint64
	_, err := fmt.Sscanf(name, "snapshot-%020d.bin", &tick)
	return tick, err
}
