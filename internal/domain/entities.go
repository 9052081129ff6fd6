package domain

// Vector3 is a position in centimetres. Centimetre-integer coordinates keep
// the canonical codec free of floats in the one place floats would otherwise
// creep in (spec §4.1 forbids NaN; integers sidestep the question).
type Vector3 struct {
	X int64 `cbor:"x" json:"x"`
	Y int64 `cbor:"y" json:"y"`
	Z int64 `cbor:"z" json:"z"`
}

// Agent is an autonomous participant (spec §3).
type Agent struct {
	ID       AgentID                 `cbor:"id" json:"id"`
	Pos      Vector3                 `cbor:"pos" json:"pos"`
	Modules  []ModuleInstance        `cbor:"modules" json:"modules"`
	Energy   uint64                  `cbor:"energy" json:"energy"`
	Capacity uint64                  `cbor:"capacity" json:"capacity"`
	Thermal  int64                   `cbor:"thermal" json:"thermal"`
	Balances map[ResourceKind]uint64 `cbor:"balances" json:"balances"`
	// Memory holds opaque per-module long-term memory, keyed by the module
	// family so an upgrade to a new version keeps the same memory slot.
	Memory map[ModuleID][]byte `cbor:"memory" json:"memory"`

	OwnerPlayerID string `cbor:"owner_player_id,omitempty" json:"owner_player_id,omitempty"`
	// PublicKey is the Ed25519 key bound to OwnerPlayerID. Once non-empty it
	// is immutable (spec §3 invariant).
	PublicKey []byte `cbor:"public_key,omitempty" json:"public_key,omitempty"`
}

// BalanceOf returns the agent's balance of kind, defaulting to zero for an
// unset resource (spec §3 invariant: balances ≥ 0, absence means zero).
func (a *Agent) BalanceOf(kind ResourceKind) uint64 {
	if a.Balances == nil {
		return 0
	}
	return a.Balances[kind]
}

// FragmentBudget tracks a location's mineable mass (spec §3/§4.4 invariant
// mined + remaining = initial_mass).
type FragmentBudget struct {
	InitialMass uint64 `cbor:"initial_mass" json:"initial_mass"`
	Mined       uint64 `cbor:"mined" json:"mined"`
	Remaining   uint64 `cbor:"remaining" json:"remaining"`
}

// Location is a fixed region (spec §3).
type Location struct {
	ID       LocationID              `cbor:"id" json:"id"`
	Pos      Vector3                 `cbor:"pos" json:"pos"`
	Radius   int64                   `cbor:"radius" json:"radius"`
	Reserves map[ResourceKind]uint64 `cbor:"reserves" json:"reserves"`
	Fragment *FragmentBudget         `cbor:"fragment,omitempty" json:"fragment,omitempty"`
	// PowerRefs names power-infrastructure module instances installed at
	// this location (by ModuleID), not network addresses.
	PowerRefs []ModuleID `cbor:"power_refs,omitempty" json:"power_refs,omitempty"`
}

// InstallTargetKind tags a ModuleInstance's owner.
type InstallTargetKind string

const (
	InstallSelfAgent            InstallTargetKind = "self_agent"
	InstallLocationInfrastructure InstallTargetKind = "location_infrastructure"
)

// InstallTarget is the tagged union { SelfAgent | LocationInfrastructure }
// of spec §3. Exactly one of AgentID/LocationID is populated, matching Kind.
type InstallTarget struct {
	Kind       InstallTargetKind `cbor:"kind" json:"kind"`
	AgentID    AgentID           `cbor:"agent_id,omitempty" json:"agent_id,omitempty"`
	LocationID LocationID        `cbor:"location_id,omitempty" json:"location_id,omitempty"`
}

// ModuleInstance is an installed binding of a registered module artifact to
// an agent or a location's infrastructure (spec §3).
type ModuleInstance struct {
	ModuleID    ModuleID      `cbor:"module_id" json:"module_id"`
	WasmHash    Hash          `cbor:"wasm_hash" json:"wasm_hash"`
	Version     string        `cbor:"version" json:"version"`
	Target      InstallTarget `cbor:"install_target" json:"install_target"`
	State       []byte        `cbor:"state,omitempty" json:"state,omitempty"`
	NextTickAt  uint64        `cbor:"next_tick_at" json:"next_tick_at"`
	Suspended   bool          `cbor:"suspended" json:"suspended"`
}
