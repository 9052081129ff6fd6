package domain

// Snapshot is a point-in-time serialization of a World sufficient to resume
// replay without re-reading the journal from genesis (spec §4.4).
type Snapshot struct {
	WorldID        WorldID    `cbor:"world_id" json:"world_id"`
	JournalLength  uint64     `cbor:"journal_length" json:"journal_length"`
	TakenAtTick    uint64     `cbor:"taken_at_tick" json:"taken_at_tick"`
	StateHash      Hash       `cbor:"state_hash" json:"state_hash"`
	Sequence       EraCounter `cbor:"sequence" json:"sequence"`
	// Agents/Locations/Modules are the full entity tables at JournalLength.
	Agents    map[AgentID]Agent       `cbor:"agents" json:"agents"`
	Locations map[LocationID]Location `cbor:"locations" json:"locations"`
}

// SnapshotRetentionPolicy bounds how many snapshots persist on disk (spec
// §4.4): the pruner keeps the newest KeepLast and, separately, any snapshot
// whose TakenAtTick falls on a KeepEveryNTicks boundary.
type SnapshotRetentionPolicy struct {
	KeepLast        int    `cbor:"keep_last" json:"keep_last"`
	KeepEveryNTicks uint64 `cbor:"keep_every_n_ticks" json:"keep_every_n_ticks"`
}

// ShouldKeep reports whether a snapshot taken at tick, ranked newest-first
// at rankFromNewest (0 = newest), survives pruning under p.
func (p SnapshotRetentionPolicy) ShouldKeep(rankFromNewest int, tick uint64) bool {
	if rankFromNewest < p.KeepLast {
		return true
	}
	if p.KeepEveryNTicks > 0 && tick%p.KeepEveryNTicks == 0 {
		return true
	}
	return false
}
