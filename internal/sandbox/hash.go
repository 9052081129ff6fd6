package sandbox

import (
	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
)

// contentHash returns the artifact content address for raw wasm bytes,
// using the same blake3 primitive as every other content hash in the
// runtime (spec §4.1) but over the raw bytes rather than a canonical-CBOR
// encoding, since a wasm binary has no CBOR representation to canonicalize.
func contentHash(wasmBytes []byte) (domain.Hash, error) {
	return domain.Hash(codec.HashBytes(wasmBytes)), nil
}
