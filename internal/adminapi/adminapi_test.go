package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/kernel"
	"github.com/agentworld/runtime/pkg/config"
)

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(domain.CommittedBatch) error { return nil }

func newTestServer(t *testing.T) (*Server, *kernel.Kernel) {
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

	k, err := kernel.Open(cfg, allowAllVerifier{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })
	return NewServer(k, nil), k
}

func postJSON(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestGovernanceLifecycleOverHTTP(t *testing.T) {
	s, k := newTestServer(t)

	wasmBytes := []byte("\x00asm-fixture")
	wasmHash := domain.Hash(codec.HashBytes(wasmBytes))
	artifact := domain.ModuleArtifact{
		WasmHash: wasmHash,
		Version:  "v1",
		Manifest: domain.ModuleManifest{Name: "mod1", Subscriptions: []domain.Subscription{{Stage: domain.StageTick}}},
	}
	require.NoError(t, k.Artifacts.Put(artifact, wasmBytes))

	rec := postJSON(t, s, "/api/governance/propose", map[string]any{
		"proposer_kind": "system",
		"proposer_id":   "ops",
		"entries": []map[string]any{
			{"op": "register", "module_id": "mod1", "artifact": map[string]any{"wasm_hash": string(wasmHash), "version": "v1"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var proposal domain.GovernanceProposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposal))

	rec = postJSON(t, s, "/api/governance/"+string(proposal.ID)+"/shadow", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.ShadowReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, domain.ShadowPassed, report.Status)

	rec = postJSON(t, s, "/api/governance/"+string(proposal.ID)+"/approve", map[string]any{
		"signer_kind": "system", "signer_id": "ops", "required_signers": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, s, "/api/governance/"+string(proposal.ID)+"/apply", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/governance/"+string(proposal.ID), nil)
	getRec := httptest.NewRecorder()
	s.ServeHTTP(getRec, req)
	var got domain.GovernanceProposal
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	require.Equal(t, domain.StatusApplied, got.Status)

	_, ok := k.Registry.Get("mod1")
	require.True(t, ok, "expected module to be registered in the kernel's registry")
}

func TestGovernanceShadowFailsOnMissingArtifact(t *testing.T) {
	s, k := newTestServer(t)

	rec := postJSON(t, s, "/api/governance/propose", map[string]any{
		"proposer_kind": "system",
		"proposer_id":   "ops",
		"entries": []map[string]any{
			{"op": "register", "module_id": "mod1", "artifact": map[string]any{"wasm_hash": "does-not-exist", "version": "v1"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var proposal domain.GovernanceProposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &proposal))

	rec = postJSON(t, s, "/api/governance/"+string(proposal.ID)+"/shadow", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report domain.ShadowReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, domain.ShadowFailed, report.Status)
	require.NotEmpty(t, report.Errors)

	got, ok := k.Governance.Get(proposal.ID)
	_ = got
	require.True(t, ok)
}

func TestGovernanceApproveUnknownProposalReturnsBadRequest(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postJSON(t, s, "/api/governance/does-not-exist/approve", map[string]any{
		"signer_kind": "system", "signer_id": "ops", "required_signers": 1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSnapshotsOnEmptyDirReturnsEmptyArray(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	require.Empty(t, names)
}
