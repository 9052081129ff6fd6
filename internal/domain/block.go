package domain

// CommittedBatch is what the consensus bridge receives from an external
// quorum: an ordered batch of actions already agreed on by consensus, not
// yet executed against World state (spec §6).
type CommittedBatch struct {
	Height  uint64   `cbor:"height" json:"height"`
	Actions []Action `cbor:"actions" json:"actions"`
	// ActionRoot is a content hash over Actions, computed by the proposer
	// before the batch reaches quorum signing so a verifier can check the
	// batch it is signing matches the one it will later be asked to execute.
	ActionRoot Hash `cbor:"action_root,omitempty" json:"action_root,omitempty"`
	// ExpectedStateRoot, if set, is the state root the proposer computed
	// when it originally executed this batch; the bridge compares it
	// against the state root it derives locally and logs a divergence
	// rather than executing blind (spec §4.2's "any such violation is
	// treated as a consensus fault").
	ExpectedStateRoot Hash `cbor:"expected_state_root,omitempty" json:"expected_state_root,omitempty"`
	// Signers and QuorumSig are parallel slices: QuorumSig[i] is Signers[i]'s
	// Ed25519 signature over the canonical encoding of Height+Actions.
	Signers   []string `cbor:"signers" json:"signers"`
	QuorumSig [][]byte `cbor:"quorum_sig" json:"quorum_sig"`
}

// WorldBlock is the execution-side record produced once a CommittedBatch is
// applied: it chains to the previous block and binds a consensus height to
// the resulting journal range, receipts and state roots (spec §4.6/§6).
type WorldBlock struct {
	Height       uint64 `cbor:"height" json:"height"`
	PrevBlockHash Hash  `cbor:"prev_block_hash" json:"prev_block_hash"`

	ActionRoot   Hash `cbor:"action_root" json:"action_root"`
	EventRoot    Hash `cbor:"event_root" json:"event_root"`
	StateRoot    Hash `cbor:"state_root" json:"state_root"`
	ReceiptsRoot Hash `cbor:"receipts_root" json:"receipts_root"`

	// ExecutionBlockHash is the composite hash over (PrevBlockHash,
	// ActionRoot, EventRoot, StateRoot, ReceiptsRoot) — the single value a
	// follower checks to confirm it executed the same batch the same way
	// (spec §4.6).
	ExecutionBlockHash Hash `cbor:"execution_block_hash" json:"execution_block_hash"`
	// ExecutionStateRoot is the state root this node actually derived by
	// executing the batch. The bridge sets StateRoot to the same locally
	// derived value; the proposer's claimed root travels separately as
	// CommittedBatch.ExpectedStateRoot, which the bridge compares against it.
	ExecutionStateRoot Hash `cbor:"execution_state_root" json:"execution_state_root"`

	JournalRef  uint64 `cbor:"journal_ref" json:"journal_ref"`
	SnapshotRef string `cbor:"snapshot_ref,omitempty" json:"snapshot_ref,omitempty"`

	ProposerID  string `cbor:"proposer_id,omitempty" json:"proposer_id,omitempty"`
	TimestampMS int64  `cbor:"timestamp_ms" json:"timestamp_ms"`
	Signature   []byte `cbor:"signature,omitempty" json:"signature,omitempty"`

	FirstSequence EraCounter `cbor:"first_sequence" json:"first_sequence"`
	LastSequence  EraCounter `cbor:"last_sequence" json:"last_sequence"`
	Receipts      []Receipt  `cbor:"receipts" json:"receipts"`
}

// WorldHeadAnnounce is broadcast after a WorldBlock is durably applied so
// followers can advance their own max_executable_height gate (spec §6).
type WorldHeadAnnounce struct {
	Height             uint64 `cbor:"height" json:"height"`
	BlockHash          Hash   `cbor:"block_hash" json:"block_hash"`
	StateRoot          Hash   `cbor:"state_root" json:"state_root"`
	ExecutionBlockHash Hash   `cbor:"execution_block_hash" json:"execution_block_hash"`
}
