package registry

import (
	"crypto/ed25519"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// ValidatorSet maps a signer ID to the public key that must verify its
// governance approval signature. An empty or nil set runs Approve in open
// mode (no signature required), the same "no known validators, threshold 0"
// convention cmd/agentworldd's bridge ThresholdVerifier wiring uses for an
// unconfigured validator file.
type ValidatorSet map[string]ed25519.PublicKey

// GovernanceBook tracks every proposal moving through the module lifecycle
// state machine. It is grounded on the teacher's ProposeChange/VoteChange/
// EnactChange trio in core/governance.go, generalized from a flat
// map[string]string parameter diff to a ModuleChangeSet and tightened to
// the closed state graph in domain.CanTransition instead of a loose
// Enacted/Executed pair of bools.
type GovernanceBook struct {
	mu         sync.Mutex
	proposals  map[domain.ProposalID]*domain.GovernanceProposal
	logger     *zap.SugaredLogger
	validators ValidatorSet
}

// NewGovernanceBook returns an empty book. A nil logger falls back to the
// global zap logger, the same convention core/governance.go uses. A nil or
// empty validators set runs Approve in open mode.
func NewGovernanceBook(logger *zap.Logger, validators ValidatorSet) *GovernanceBook {
	if logger == nil {
		logger = zap.L()
	}
	return &GovernanceBook{
		proposals:  make(map[domain.ProposalID]*domain.GovernanceProposal),
		logger:     logger.Sugar(),
		validators: validators,
	}
}

// Propose opens a new proposal in StatusProposed.
func (b *GovernanceBook) Propose(proposer domain.Submitter, change domain.ModuleChangeSet) (*domain.GovernanceProposal, error) {
	if len(change.Entries) == 0 {
		return nil, apperr.New(apperr.Validation, "registry.empty_change_set", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p := &domain.GovernanceProposal{
		ID:       domain.ProposalID(uuid.New().String()),
		Status:   domain.StatusProposed,
		Change:   change,
		Proposer: proposer,
	}
	b.proposals[p.ID] = p
	b.logger.Infow("governance proposal opened", "proposal_id", p.ID, "entries", len(change.Entries))
	return p, nil
}

// Shadow records a ShadowReport and either advances the proposal to
// StatusShadowed (passed/warning) or auto-rejects it (failed): a failed
// shadow run means the proposed change never reaches a human or validator
// approval step (spec §4.3 step 2).
func (b *GovernanceBook) Shadow(id domain.ProposalID, report domain.ShadowReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.mustGet(id)
	if err != nil {
		return err
	}

	// A failed report still passes through Shadowed on its way to Rejected,
	// the only edge into Rejected the state graph allows.
	if !domain.CanTransition(p.Status, domain.StatusShadowed) {
		return transitionErr(p.Status, domain.StatusShadowed)
	}
	target := domain.StatusShadowed
	if report.Status == domain.ShadowFailed {
		target = domain.StatusRejected
	}
	p.Shadow = &report
	p.Status = target
	b.logger.Infow("governance proposal shadow-validated", "proposal_id", id, "status", report.Status, "errors", len(report.Errors), "warnings", len(report.Warnings))
	return nil
}

// manifestHash returns the content hash of the proposal's ModuleChangeSet,
// the value a GovernanceFinalityCertificate's signatures are cast over
// alongside the proposal ID and consensus height.
func manifestHash(change domain.ModuleChangeSet) (domain.Hash, error) {
	raw, err := codec.Hash(change)
	if err != nil {
		return "", apperr.Wrap(err, "hashing module change set")
	}
	return domain.Hash(raw), nil
}

// certMessage is the canonical payload a governance approval signature
// covers: the proposal, the manifest it approves, and the consensus height
// the approval was cast at, so a stale or replayed signature from a
// different height or a different (rewritten) change set never verifies.
type certMessage struct {
	ProposalID      domain.ProposalID `cbor:"proposal_id"`
	ManifestHash    domain.Hash       `cbor:"manifest_hash"`
	ConsensusHeight uint64            `cbor:"consensus_height"`
}

// Approve records a signer's approval, verifying its signature against the
// configured ValidatorSet when one is set, and once a supermajority of
// requiredSigners has approved, advances the proposal to StatusApproved and
// attaches a GovernanceFinalityCertificate (spec §4.3 step 3). Rejection is
// a separate call (Reject) since a single dissenting signer should not have
// to wait for a quorum to stop a bad change from progressing.
func (b *GovernanceBook) Approve(id domain.ProposalID, signer domain.Submitter, signature []byte, consensusHeight, requiredSigners uint64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.mustGet(id)
	if err != nil {
		return false, err
	}
	if p.Status != domain.StatusShadowed {
		return false, transitionErr(p.Status, domain.StatusApproved)
	}
	for _, s := range p.Approvals {
		if s == signer {
			return false, nil
		}
	}

	mh, err := manifestHash(p.Change)
	if err != nil {
		return false, err
	}

	if len(b.validators) > 0 {
		pub, known := b.validators[signer.ID]
		if !known {
			return false, apperr.Newf(apperr.Validation, "registry.unknown_signer", "signer %s is not a known validator", signer.ID)
		}
		msg, err := codec.Encode(certMessage{ProposalID: id, ManifestHash: mh, ConsensusHeight: consensusHeight})
		if err != nil {
			return false, apperr.Wrap(err, "encoding governance approval message")
		}
		if !ed25519.Verify(pub, msg, signature) {
			return false, apperr.Newf(apperr.Validation, "registry.bad_signature", "signature verification failed for signer %s", signer.ID)
		}
	}

	p.Approvals = append(p.Approvals, signer)
	sigs := append([][]byte{}, signaturesOf(p)...)
	sigs = append(sigs, signature)

	if !domain.SupermajorityReached(uint64(len(p.Approvals)), requiredSigners) {
		p.Certificate = &domain.GovernanceFinalityCertificate{
			ProposalID:      id,
			ManifestHash:    mh,
			ConsensusHeight: consensusHeight,
			Signers:         append([]domain.Submitter{}, p.Approvals...),
			Signatures:      sigs,
		}
		return false, nil
	}
	p.Status = domain.StatusApproved
	p.Certificate = &domain.GovernanceFinalityCertificate{
		ProposalID:      id,
		ManifestHash:    mh,
		ConsensusHeight: consensusHeight,
		Signers:         append([]domain.Submitter{}, p.Approvals...),
		Signatures:      sigs,
	}
	b.logger.Infow("governance proposal approved", "proposal_id", id, "approvals", len(p.Approvals), "required", requiredSigners, "manifest_hash", mh)
	return true, nil
}

func signaturesOf(p *domain.GovernanceProposal) [][]byte {
	if p.Certificate == nil {
		return nil
	}
	return p.Certificate.Signatures
}

// Reject moves a shadowed proposal to StatusRejected, ending its lifecycle.
func (b *GovernanceBook) Reject(id domain.ProposalID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.mustGet(id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(p.Status, domain.StatusRejected) {
		return transitionErr(p.Status, domain.StatusRejected)
	}
	p.Status = domain.StatusRejected
	b.logger.Infow("governance proposal rejected", "proposal_id", id, "reason", reason)
	return nil
}

// Apply moves an approved proposal to StatusApplied. The caller is
// responsible for actually carrying out the ModuleChangeSet against the
// Registry in the fixed event-group order (RegisterModule/UpgradeModule/
// ActivateModule/DeactivateModule per domain.ModuleChangeGroupOrder, then
// ManifestUpdated, then GovernanceApplied last) before calling Apply, since
// Apply only records the state transition itself.
func (b *GovernanceBook) Apply(id domain.ProposalID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.mustGet(id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(p.Status, domain.StatusApplied) {
		return transitionErr(p.Status, domain.StatusApplied)
	}
	p.Status = domain.StatusApplied
	b.logger.Infow("governance proposal applied", "proposal_id", id, "entries", len(p.Change.Entries))
	return nil
}

// RollBack reverts an applied proposal. Like Apply, the caller carries out
// the actual registry reversal; RollBack only records the transition.
func (b *GovernanceBook) RollBack(id domain.ProposalID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.mustGet(id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(p.Status, domain.StatusRolledBack) {
		return transitionErr(p.Status, domain.StatusRolledBack)
	}
	p.Status = domain.StatusRolledBack
	b.logger.Warnw("governance proposal rolled back", "proposal_id", id, "reason", reason)
	return nil
}

// Get returns a copy of the proposal for id.
func (b *GovernanceBook) Get(id domain.ProposalID) (domain.GovernanceProposal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.proposals[id]
	if !ok {
		return domain.GovernanceProposal{}, false
	}
	return *p, true
}

func (b *GovernanceBook) mustGet(id domain.ProposalID) (*domain.GovernanceProposal, error) {
	p, ok := b.proposals[id]
	if !ok {
		return nil, apperr.Newf(apperr.Validation, "registry.unknown_proposal", "proposal %s not found", id)
	}
	return p, nil
}

func transitionErr(from, to domain.GovernanceStatus) error {
	return apperr.Newf(apperr.Validation, "registry.invalid_transition", "cannot move proposal from %s to %s", from, to)
}
