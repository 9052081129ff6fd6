package world

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// ArtifactStore persists compiled module artifacts to modulesDir as
// <wasm_hash>.wasm (raw bytes) and <wasm_hash>.meta.json (the
// domain.ModuleManifest plus size/version), and keeps a flat
// module_registry.json index of every artifact ever stored so a cold
// process can list known modules without a directory scan.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore returns a store rooted at dir, creating it if absent.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.Integrity, "world.artifact_mkdir_failed", err)
	}
	return &ArtifactStore{dir: dir}, nil
}

type artifactMeta struct {
	Version  string                `json:"version"`
	SizeBytes int64                `json:"size_bytes"`
	Manifest domain.ModuleManifest `json:"manifest"`
}

// Put writes wasmBytes and artifact's manifest under artifact.WasmHash,
// then appends the hash to the registry index.
func (s *ArtifactStore) Put(artifact domain.ModuleArtifact, wasmBytes []byte) error {
	wasmPath := filepath.Join(s.dir, string(artifact.WasmHash)+".wasm")
	if err := os.WriteFile(wasmPath, wasmBytes, 0o644); err != nil {
		return apperr.New(apperr.Integrity, "world.artifact_write_failed", err)
	}

	meta := artifactMeta{Version: artifact.Version, SizeBytes: artifact.SizeBytes, Manifest: artifact.Manifest}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return apperr.New(apperr.Validation, "world.artifact_meta_encode_failed", err)
	}
	metaPath := filepath.Join(s.dir, string(artifact.WasmHash)+".meta.json")
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return apperr.New(apperr.Integrity, "world.artifact_meta_write_failed", err)
	}

	return s.appendIndex(artifact.WasmHash)
}

// Get reads back the wasm bytes and manifest stored under hash.
func (s *ArtifactStore) Get(hash domain.Hash) ([]byte, domain.ModuleManifest, error) {
	wasmBytes, err := os.ReadFile(filepath.Join(s.dir, string(hash)+".wasm"))
	if err != nil {
		return nil, domain.ModuleManifest{}, apperr.New(apperr.Resource, "world.artifact_missing", err)
	}
	metaBytes, err := os.ReadFile(filepath.Join(s.dir, string(hash)+".meta.json"))
	if err != nil {
		return nil, domain.ModuleManifest{}, apperr.New(apperr.Resource, "world.artifact_meta_missing", err)
	}
	var meta artifactMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, domain.ModuleManifest{}, apperr.New(apperr.Validation, "world.artifact_meta_decode_failed", err)
	}
	return wasmBytes, meta.Manifest, nil
}

func (s *ArtifactStore) appendIndex(hash domain.Hash) error {
	indexPath := filepath.Join(s.dir, "module_registry.json")
	var index []string
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = json.Unmarshal(data, &index)
	}
	for _, h := range index {
		if h == string(hash) {
			return nil
		}
	}
	index = append(index, string(hash))
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return apperr.New(apperr.Validation, "world.artifact_index_encode_failed", err)
	}
	return os.WriteFile(indexPath, data, 0o644)
}

// DistfsSidecar is an optional, purely-local content-addressing index over
// snapshot files: it records each snapshot's bytes under an IPFS CIDv1 (raw
// codec, sha2-256 multihash) the way a content-addressed filesystem would,
// without running any libp2p transport or DHT (those are out of scope; see
// the module governance registry's wasm_hash for the address space modules
// actually exchange over). It exists purely as a local integrity sidecar:
// "does the snapshot on disk still match the CID recorded when it was
// written".
type DistfsSidecar struct {
	dir string
}

// NewDistfsSidecar returns a sidecar rooted at dir/.distfs-state.
func NewDistfsSidecar(worldDir string) (*DistfsSidecar, error) {
	dir := filepath.Join(worldDir, ".distfs-state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.Integrity, "world.distfs_mkdir_failed", err)
	}
	return &DistfsSidecar{dir: dir}, nil
}

type recoveryAuditEntry struct {
	Path string `json:"path"`
	CID  string `json:"cid"`
}

// Record computes a CIDv1 over data and appends it to
// distfs.recovery.audit.json alongside the file path it was computed for.
func (d *DistfsSidecar) Record(path string, data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", apperr.New(apperr.Integrity, "world.distfs_hash_failed", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)

	auditPath := filepath.Join(d.dir, "distfs.recovery.audit.json")
	var entries []recoveryAuditEntry
	if raw, err := os.ReadFile(auditPath); err == nil {
		_ = json.Unmarshal(raw, &entries)
	}
	entries = append(entries, recoveryAuditEntry{Path: path, CID: c.String()})
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", apperr.New(apperr.Validation, "world.distfs_audit_encode_failed", err)
	}
	if err := os.WriteFile(auditPath, out, 0o644); err != nil {
		return "", apperr.New(apperr.Integrity, "world.distfs_audit_write_failed", err)
	}
	return c.String(), nil
}

// Verify recomputes the CID for data and reports whether it matches want.
func (d *DistfsSidecar) Verify(data []byte, want string) (bool, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return false, apperr.New(apperr.Integrity, "world.distfs_hash_failed", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)
	return c.String() == want, nil
}
