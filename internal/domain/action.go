package domain

// ActionKind enumerates the built-in action verbs named by the spec. Module
// rule authors never add new kinds at runtime; the set is closed.
type ActionKind string

const (
	ActionTransfer      ActionKind = "transfer"
	ActionInstallModule ActionKind = "install_module"
	ActionMineFragment  ActionKind = "mine_fragment"
	ActionMove          ActionKind = "move"
	ActionEmit          ActionKind = "emit"
)

// Action is a single requested state change (spec §4.5 step 1).
type Action struct {
	ID        ActionID    `cbor:"id" json:"id"`
	Kind      ActionKind  `cbor:"kind" json:"kind"`
	Submitter Submitter   `cbor:"submitter" json:"submitter"`
	Params    map[string]any `cbor:"params" json:"params"`
	SubmittedAtTick uint64 `cbor:"submitted_at_tick" json:"submitted_at_tick"`
}

// ActionEnvelope wraps an Action with the sequencing metadata the pipeline
// assigns on admission (spec §4.5): a monotonic per-world sequence pairs
// with the EraCounter rollover so replays always recover identical
// ordering.
type ActionEnvelope struct {
	Action   Action     `cbor:"action" json:"action"`
	Sequence EraCounter `cbor:"sequence" json:"sequence"`
}

// RuleDecisionKind tags the three-way outcome a pre/post-action rule module
// may return (spec §5).
type RuleDecisionKind string

const (
	RuleAllow  RuleDecisionKind = "allow"
	RuleDeny   RuleDecisionKind = "deny"
	RuleModify RuleDecisionKind = "modify"
)

// RuleDecision is the tagged union { Allow | Deny | Modify } a rule module
// returns from its guest call. Reason is populated on Deny. Patch and
// CostDelta are populated on Modify: every subscriber's Patch in a stage is
// collected rather than applied one at a time, so two modules patching the
// same key must agree byte-for-byte (else ConflictingOverrides) and every
// CostDelta is summed with checked arithmetic (else CostOverflow) before any
// of them is applied to the action (spec §4.5 step 2 merge rule).
type RuleDecision struct {
	Kind      RuleDecisionKind `cbor:"kind" json:"kind"`
	Reason    string           `cbor:"reason,omitempty" json:"reason,omitempty"`
	Patch     map[string]any   `cbor:"patch,omitempty" json:"patch,omitempty"`
	CostDelta int64            `cbor:"cost_delta,omitempty" json:"cost_delta,omitempty"`
}
