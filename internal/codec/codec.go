// Package codec implements the canonical encoding the runtime hashes,
// journals and replays: CBOR restricted to a single deterministic byte
// representation per value, plus the blake3 content hash over that
// representation. The determinism discipline mirrors the teacher's
// StateRoot in core/ledger.go (sort keys, hash bytes in sorted order) but
// is generalized here to the wire encoding itself rather than special-cased
// to one map.
package codec

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"lukechampine.com/blake3"

	"github.com/agentworld/runtime/pkg/apperr"
)

// encMode is the single canonical CBOR encoding mode the whole runtime uses:
// sorted map keys (bytewise lexicographic, the "Core Deterministic" profile
// CBOR's RFC 8949 §4.2.1 describes), shortest-form integers, and no
// indefinite-length items. Every encode call site in the runtime must go
// through this mode so two processes that hash the same value always agree.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeUnix
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical encode mode: %v", err))
	}
	return mode
}

// decMode rejects duplicate map keys and indefinite-length items, so a
// decode can never silently accept a non-canonical encoding produced by a
// buggy or adversarial peer.
var decMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	opts := cbor.DecOptions{
		DupMapKey:  cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building canonical decode mode: %v", err))
	}
	return mode
}

// ErrNonCanonical is returned when a decoded value, re-encoded, does not
// reproduce the exact bytes it was decoded from: the input used a
// non-canonical CBOR encoding of an otherwise valid value (spec §4.1).
var ErrNonCanonical = apperr.New(apperr.Integrity, "codec.non_canonical", fmt.Errorf("decoded value is not the canonical encoding of itself"))

// Encode returns the canonical CBOR encoding of v.
func Encode(v any) ([]byte, error) {
	out, err := encMode.Marshal(v)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "codec.encode_failed", err)
	}
	return out, nil
}

// Decode unmarshals canonical CBOR bytes into v and rejects any input whose
// canonical re-encoding would not match the bytes given (spec §4.1's
// canonical-roundtrip requirement).
func Decode(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return apperr.New(apperr.Validation, "codec.decode_failed", err)
	}
	reencoded, err := Encode(v)
	if err != nil {
		return err
	}
	if !bytes.Equal(reencoded, data) {
		return ErrNonCanonical
	}
	return nil
}

// Hash returns the blake3 content hash of the canonical encoding of v, as a
// lowercase-hex string (spec §4.1). The 32-byte digest matches blake3's
// default output size.
func Hash(v any) (string, error) {
	enc, err := Encode(v)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(enc)
	return fmt.Sprintf("%x", sum[:]), nil
}

// HashBytes is Hash for data already in canonical encoded form, avoiding a
// redundant encode when the caller already holds the bytes (e.g. the
// journal, which persists encoded events and hashes them on append).
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
