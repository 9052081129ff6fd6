package world

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// Journal is the append-only event log (spec §4.4). Each record is framed
// as a big-endian uint32 length followed by that many bytes of canonical
// CBOR, the length-prefixed analogue of the teacher's newline-delimited
// JSON WAL in core/ledger.go: CBOR output can legitimately contain a 0x0a
// byte, so a length prefix replaces the teacher's bufio.Scanner line
// framing instead of trying to preserve it.
type Journal struct {
	file  *os.File
	last  domain.Hash
	count uint64
}

// OpenJournal opens (creating if necessary) the journal file at path for
// appending, without replaying it; callers that need the existing records
// should call Replay before any Append.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, apperr.New(apperr.Integrity, "world.journal_open_failed", err)
	}
	return &Journal{file: f}, nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	return j.file.Close()
}

// Replay reads every record from the start of the journal, in order,
// calling fn for each decoded Event. It also restores the hash-chain tip so
// subsequent Append calls continue the same chain.
func (j *Journal) Replay(fn func(domain.Event) error) error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return apperr.New(apperr.Integrity, "world.journal_seek_failed", err)
	}
	r := io.Reader(j.file)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return apperr.New(apperr.Integrity, "world.journal_read_failed", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return apperr.New(apperr.Integrity, "world.journal_truncated", err)
		}
		var ev domain.Event
		if err := codec.Decode(buf, &ev); err != nil {
			return apperr.Wrap(err, "decoding journal record")
		}
		if ev.PrevHash != j.last {
			return apperr.Newf(apperr.Integrity, "world.journal_chain_broken", "record %s expected prev_hash %s, got %s", ev.Sequence, j.last, ev.PrevHash)
		}
		j.last = ev.Hash
		j.count++
		if err := fn(ev); err != nil {
			return err
		}
	}
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return apperr.New(apperr.Integrity, "world.journal_seek_failed", err)
	}
	return nil
}

// Append writes ev to the end of the journal, filling in its Hash and
// PrevHash from the running chain tip, and fsyncs before returning so a
// crash after Append never loses an acknowledged event.
func (j *Journal) Append(ev *domain.Event) error {
	ev.PrevHash = j.last

	// Hash covers everything except the Hash field itself; encode once with
	// Hash left zero, hash that, then re-encode with Hash populated.
	ev.Hash = ""
	unsigned, err := codec.Encode(ev)
	if err != nil {
		return apperr.Wrap(err, "encoding journal record")
	}
	ev.Hash = domain.Hash(codec.HashBytes(unsigned))

	final, err := codec.Encode(ev)
	if err != nil {
		return apperr.Wrap(err, "encoding journal record")
	}
	if len(final) > (1<<32)-1 {
		return apperr.New(apperr.Resource, "world.journal_record_too_large", fmt.Errorf("record is %d bytes", len(final)))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(final)))
	if _, err := j.file.Write(lenBuf[:]); err != nil {
		return apperr.New(apperr.Integrity, "world.journal_write_failed", err)
	}
	if _, err := j.file.Write(final); err != nil {
		return apperr.New(apperr.Integrity, "world.journal_write_failed", err)
	}
	if err := j.file.Sync(); err != nil {
		return apperr.New(apperr.Integrity, "world.journal_sync_failed", err)
	}
	j.last = ev.Hash
	j.count++
	return nil
}

// Tip returns the hash of the most recently appended (or replayed) event,
// or "" if the journal is empty.
func (j *Journal) Tip() domain.Hash {
	return j.last
}

// Length returns the number of records appended or replayed so far.
func (j *Journal) Length() uint64 {
	return j.count
}
