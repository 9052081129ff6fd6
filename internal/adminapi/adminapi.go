// Package adminapi exposes an operator-facing HTTP surface over a running
// kernel.Kernel: governance proposal submission/approval and snapshot
// inventory, the two concerns cmd/agentworldctl drives against a live
// daemon. It is the governance-side counterpart to internal/audit's
// query API, built the same way (go-chi/chi router, JSON in/out) rather
// than inventing a second HTTP convention for the same binary.
package adminapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/kernel"
	"github.com/agentworld/runtime/internal/registry"
)

// Server exposes governance and snapshot endpoints over k.
type Server struct {
	k      *kernel.Kernel
	router chi.Router
	logger *zap.SugaredLogger
}

// NewServer builds a router over k. A nil logger falls back to the global
// zap logger.
func NewServer(k *kernel.Kernel, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	s := &Server{k: k, logger: logger.Sugar()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Route("/api/governance", func(r chi.Router) {
		r.Post("/propose", s.handlePropose)
		r.Post("/{id}/shadow", s.handleShadow)
		r.Post("/{id}/approve", s.handleApprove)
		r.Post("/{id}/reject", s.handleReject)
		r.Post("/{id}/apply", s.handleApply)
		r.Post("/{id}/rollback", s.handleRollback)
		r.Get("/{id}", s.handleGet)
	})
	r.Get("/api/snapshots", s.handleListSnapshots)
	s.router = r
}

// changeEntryRequest is the wire shape of one domain.ModuleChangeEntry.
type changeEntryRequest struct {
	Op          domain.ModuleChangeOp  `json:"op"`
	ModuleID    domain.ModuleID        `json:"module_id"`
	Artifact    *domain.ModuleArtifact `json:"artifact,omitempty"`
	FromVersion string                 `json:"from_version,omitempty"`
	ToVersion   string                 `json:"to_version,omitempty"`
}

type proposeRequest struct {
	ProposerKind domain.SubmitterKind `json:"proposer_kind"`
	ProposerID   string               `json:"proposer_id"`
	Entries      []changeEntryRequest `json:"entries"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	entries := make([]domain.ModuleChangeEntry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = domain.ModuleChangeEntry{
			Op:          e.Op,
			ModuleID:    e.ModuleID,
			Artifact:    e.Artifact,
			FromVersion: e.FromVersion,
			ToVersion:   e.ToVersion,
		}
		if e.Op == domain.ChangeUpgrade {
			if err := s.k.Registry.ValidateUpgrade(e.ModuleID, e.FromVersion, e.ToVersion); err != nil {
				s.writeErr(w, err)
				return
			}
		}
	}
	proposal, err := s.k.Governance.Propose(
		domain.Submitter{Kind: req.ProposerKind, ID: req.ProposerID},
		domain.ModuleChangeSet{Entries: entries},
	)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, proposal)
}

// handleShadow runs the proposal's ModuleChangeSet through shadow
// validation against the kernel's artifact store and sandbox gas ceiling,
// then records the resulting domain.ShadowReport. A failed report
// auto-rejects the proposal (spec §4.3 step 2). The proposal is named by
// the id in the URL path; the request body is not read.
func (s *Server) handleShadow(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	proposal, ok := s.k.Governance.Get(id)
	if !ok {
		http.Error(w, "proposal not found", http.StatusNotFound)
		return
	}

	report := registry.ValidateShadow(s.k.Artifacts, s.k.Config.Sandbox.MaxGas, id, proposal.Change)
	if err := s.k.Governance.Shadow(id, report); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type approveRequest struct {
	SignerKind      domain.SubmitterKind `json:"signer_kind"`
	SignerID        string               `json:"signer_id"`
	Signature       string               `json:"signature,omitempty"`
	ConsensusHeight uint64               `json:"consensus_height"`
	RequiredSigners uint64               `json:"required_signers"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	var sig []byte
	if req.Signature != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Signature)
		if err != nil {
			http.Error(w, "signature must be base64", http.StatusBadRequest)
			return
		}
		sig = decoded
	}
	approved, err := s.k.Governance.Approve(id, domain.Submitter{Kind: req.SignerKind, ID: req.SignerID}, sig, req.ConsensusHeight, req.RequiredSigners)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"approved": approved})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.k.Governance.Reject(id, req.Reason); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	if err := s.k.ApplyGovernance(id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.k.RollbackGovernance(id, req.Reason); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := domain.ProposalID(chi.URLParam(r, "id"))
	p, ok := s.k.Governance.Get(id)
	if !ok {
		http.Error(w, "proposal not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleListSnapshots lists the snapshot files under the kernel's
// configured snapshot directory, newest first.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	dir := s.k.Config.World.SnapshotPath
	entries, err := os.ReadDir(dir)
	if err != nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bin") {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	s.logger.Warnw("adminapi request failed", "error", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
