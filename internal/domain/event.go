package domain

// EventKind enumerates the canonical event types appended to the journal
// (spec §4.4). Ordering within the closed set matters: governance events in
// particular must be applied in a fixed group order (spec §5).
type EventKind string

const (
	EventActionAccepted      EventKind = "action_accepted"
	EventActionRejected      EventKind = "action_rejected"
	EventStateMutated        EventKind = "state_mutated"
	EventModuleRegistered    EventKind = "module_registered"
	EventModuleUpgraded      EventKind = "module_upgraded"
	EventModuleActivated     EventKind = "module_activated"
	EventModuleDeactivated   EventKind = "module_deactivated"
	EventManifestUpdated     EventKind = "manifest_updated"
	EventGovernanceApplied   EventKind = "governance_applied"
	EventGovernanceRolledBack EventKind = "governance_rolled_back"
	EventModuleRuntimeCharged EventKind = "module_runtime_charged"
	EventModuleCallFailed     EventKind = "module_call_failed"
	EventTickCompleted        EventKind = "tick_completed"
	EventSnapshotTaken        EventKind = "snapshot_taken"
)

// Event is one immutable entry of the append-only journal (spec §4.4). Data
// carries the kind-specific payload already in canonical-codec form so the
// journal can be hashed and replayed without re-deriving it.
type Event struct {
	Sequence  EraCounter `cbor:"sequence" json:"sequence"`
	Kind      EventKind  `cbor:"kind" json:"kind"`
	Tick      uint64     `cbor:"tick" json:"tick"`
	Data      map[string]any `cbor:"data" json:"data"`
	CausedBy  ActionID   `cbor:"caused_by,omitempty" json:"caused_by,omitempty"`
	Hash      Hash       `cbor:"hash" json:"hash"`
	PrevHash  Hash       `cbor:"prev_hash" json:"prev_hash"`
}

// Receipt is the outcome handed back to an action submitter once the
// pipeline finishes processing it (spec §4.5 step 6).
type Receipt struct {
	ActionID ActionID `cbor:"action_id" json:"action_id"`
	Accepted bool     `cbor:"accepted" json:"accepted"`
	Reason   string   `cbor:"reason,omitempty" json:"reason,omitempty"`
	Events   []EraCounter `cbor:"events,omitempty" json:"events,omitempty"`
	GasUsed  uint64   `cbor:"gas_used,omitempty" json:"gas_used,omitempty"`
}
