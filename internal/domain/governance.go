package domain

// GovernanceStatus is the module-lifecycle state machine of spec §5:
// Proposed -> Shadowed -> (Approved | Rejected) -> (Applied | RolledBack).
// Transitions outside this graph are rejected by the registry with a
// Validation-class apperr.
type GovernanceStatus string

const (
	StatusProposed   GovernanceStatus = "proposed"
	StatusShadowed   GovernanceStatus = "shadowed"
	StatusApproved   GovernanceStatus = "approved"
	StatusRejected   GovernanceStatus = "rejected"
	StatusApplied    GovernanceStatus = "applied"
	StatusRolledBack GovernanceStatus = "rolled_back"
)

// validGovernanceTransitions enumerates the only edges the state machine
// permits.
var validGovernanceTransitions = map[GovernanceStatus][]GovernanceStatus{
	StatusProposed: {StatusShadowed},
	StatusShadowed: {StatusApproved, StatusRejected},
	StatusApproved: {StatusApplied},
	StatusApplied:  {StatusRolledBack},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge.
func CanTransition(from, to GovernanceStatus) bool {
	for _, next := range validGovernanceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ModuleChangeOp names the change one ModuleChangeEntry describes.
type ModuleChangeOp string

const (
	ChangeRegister   ModuleChangeOp = "register"
	ChangeUpgrade    ModuleChangeOp = "upgrade"
	ChangeActivate   ModuleChangeOp = "activate"
	ChangeDeactivate ModuleChangeOp = "deactivate"
)

// ModuleChangeGroupOrder is the fixed order spec §4.3 applies a
// ModuleChangeSet's entries in: every Register entry first, then Upgrade,
// then Activate, then Deactivate, with each group internally sorted by
// ModuleID so replay never depends on proposal-authoring order.
var ModuleChangeGroupOrder = []ModuleChangeOp{ChangeRegister, ChangeUpgrade, ChangeActivate, ChangeDeactivate}

// ModuleChangeEntry is one module artifact change within a governance
// proposal (spec §4.3). FromVersion/ToVersion are only meaningful for
// ChangeUpgrade and are enforced both when the proposal is opened and again
// when it is applied: FromVersion must equal the module's currently active
// version and ToVersion must compare greater than it.
type ModuleChangeEntry struct {
	Op          ModuleChangeOp  `cbor:"op" json:"op"`
	ModuleID    ModuleID        `cbor:"module_id" json:"module_id"`
	Artifact    *ModuleArtifact `cbor:"artifact,omitempty" json:"artifact,omitempty"`
	FromVersion string          `cbor:"from_version,omitempty" json:"from_version,omitempty"`
	ToVersion   string          `cbor:"to_version,omitempty" json:"to_version,omitempty"`
}

// ModuleChangeSet is the payload of a governance proposal: one or more
// module artifact changes applied together, grouped and sorted per
// ModuleChangeGroupOrder (spec §4.3 "a ModuleChangeSet may contain
// register/activate/deactivate/upgrade entries").
type ModuleChangeSet struct {
	Entries []ModuleChangeEntry `cbor:"entries" json:"entries"`
}

// GroupedSorted returns a copy of s.Entries ordered by ModuleChangeGroupOrder
// and, within each group, by ModuleID.
func (s ModuleChangeSet) GroupedSorted() []ModuleChangeEntry {
	out := make([]ModuleChangeEntry, 0, len(s.Entries))
	for _, op := range ModuleChangeGroupOrder {
		group := make([]ModuleChangeEntry, 0)
		for _, e := range s.Entries {
			if e.Op == op {
				group = append(group, e)
			}
		}
		for i := 1; i < len(group); i++ {
			for j := i; j > 0 && group[j].ModuleID < group[j-1].ModuleID; j-- {
				group[j], group[j-1] = group[j-1], group[j]
			}
		}
		out = append(out, group...)
	}
	return out
}

// ShadowStatus is the outcome of a shadow-execution validation pass (spec
// §4.3 step 2).
type ShadowStatus string

const (
	ShadowPassed  ShadowStatus = "passed"
	ShadowWarning ShadowStatus = "warning"
	ShadowFailed  ShadowStatus = "failed"
)

// ShadowReport is produced by running a proposed ModuleChangeSet's modules
// through shadow validation — artifact presence, content-hash match,
// capability grants, limit bounds and filter schemas, but not ABI
// compatibility — the way a canary build is checked before promotion (spec
// §4.3 step 2). Status
// gates approval: a failed report auto-rejects the proposal.
type ShadowReport struct {
	ProposalID ProposalID   `cbor:"proposal_id" json:"proposal_id"`
	Status     ShadowStatus `cbor:"status" json:"status"`
	Errors     []string     `cbor:"errors,omitempty" json:"errors,omitempty"`
	Warnings   []string     `cbor:"warnings,omitempty" json:"warnings,omitempty"`
	Modules    []ModuleID   `cbor:"modules" json:"modules"`
}

// GovernanceProposal is a pending or resolved change request moving through
// the status state machine.
type GovernanceProposal struct {
	ID          ProposalID                     `cbor:"id" json:"id"`
	Status      GovernanceStatus               `cbor:"status" json:"status"`
	Change      ModuleChangeSet                `cbor:"change" json:"change"`
	Proposer    Submitter                      `cbor:"proposer" json:"proposer"`
	Approvals   []Submitter                    `cbor:"approvals,omitempty" json:"approvals,omitempty"`
	Shadow      *ShadowReport                  `cbor:"shadow,omitempty" json:"shadow,omitempty"`
	Certificate *GovernanceFinalityCertificate `cbor:"certificate,omitempty" json:"certificate,omitempty"`
}

// GovernanceFinalityCertificate is attached to a proposal once a
// supermajority of signers has approved it over its manifest hash and the
// consensus height the approval was cast at (spec §4.3 step 3: approval
// gates on this certificate, not on plain submitter names). Signatures[i]
// is Signers[i]'s Ed25519 signature over the canonical encoding of
// (ProposalID, ManifestHash, ConsensusHeight).
type GovernanceFinalityCertificate struct {
	ProposalID      ProposalID  `cbor:"proposal_id" json:"proposal_id"`
	ManifestHash    Hash        `cbor:"manifest_hash" json:"manifest_hash"`
	ConsensusHeight uint64      `cbor:"consensus_height" json:"consensus_height"`
	Signers         []Submitter `cbor:"signers" json:"signers"`
	Signatures      [][]byte    `cbor:"signatures" json:"signatures"`
}
