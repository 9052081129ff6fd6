package world

import (
	"path/filepath"
	"testing"

	"github.com/agentworld/runtime/internal/domain"
)

func TestJournalAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	events := []domain.Event{
		{Sequence: domain.EraCounter{Value: 1}, Kind: domain.EventActionAccepted, Tick: 1, Data: map[string]any{"x": "1"}},
		{Sequence: domain.EraCounter{Value: 2}, Kind: domain.EventStateMutated, Tick: 1, Data: map[string]any{"x": "2"}},
	}
	for i := range events {
		if err := j.Append(&events[i]); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	var replayed []domain.Event
	if err := j2.Replay(func(ev domain.Event) error {
		replayed = append(replayed, ev)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(replayed) != 2 {
		t.Fatalf("got %d events, want 2", len(replayed))
	}
	if replayed[0].Hash != events[0].Hash || replayed[1].Hash != events[1].Hash {
		t.Fatal("replayed hashes do not match appended hashes")
	}
	if replayed[1].PrevHash != replayed[0].Hash {
		t.Fatal("hash chain broken: second record's prev_hash should be first record's hash")
	}
}

func TestJournalRejectsBrokenChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.bin")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ev := domain.Event{Sequence: domain.EraCounter{Value: 1}, Kind: domain.EventActionAccepted, Tick: 1, Data: map[string]any{}}
	if err := j.Append(&ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Tamper with the chain by appending a record whose prev_hash does not
	// match the running tip, bypassing Append's own bookkeeping.
	tampered := ev
	tampered.Sequence = domain.EraCounter{Value: 2}
	tampered.PrevHash = "not-the-real-tip"
	tampered.Hash = ""
	j.last = tampered.PrevHash // force Append to accept the tampered prev hash once
	if err := j.Append(&tampered); err != nil {
		t.Fatalf("append tampered: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	err = j2.Replay(func(domain.Event) error { return nil })
	if err == nil {
		t.Fatal("expected replay to detect the broken hash chain")
	}
}
