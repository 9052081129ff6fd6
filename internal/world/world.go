// Package world holds the canonical mutable state and append-only event
// journal (spec component C4): the World aggregate (agents, locations,
// sequence counter), the journal itself, and snapshot persistence. The
// separation from internal/domain's entity structs mirrors the teacher's
// split between core/common_structs.go (data) and core/ledger.go
// (the stateful aggregate that owns and mutates that data).
package world

import (
	"sort"
	"sync"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// World is the single mutable aggregate a kernel process owns for one
// simulated world. All mutation happens on the single goroutine driving the
// action pipeline; Agents/Locations are only read concurrently.
type World struct {
	mu sync.RWMutex

	ID        domain.WorldID
	Tick      uint64
	Sequence  domain.EraCounter
	Agents    map[domain.AgentID]*domain.Agent
	Locations map[domain.LocationID]*domain.Location
}

// New returns an empty World with the given ID.
func New(id domain.WorldID) *World {
	return &World{
		ID:        id,
		Agents:    make(map[domain.AgentID]*domain.Agent),
		Locations: make(map[domain.LocationID]*domain.Location),
	}
}

// NextSequence advances and returns the world's sequence counter, failing
// only in the Integrity-class case of era exhaustion (spec §4.4).
func (w *World) NextSequence() (domain.EraCounter, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := w.Sequence.Next()
	if err != nil {
		return domain.EraCounter{}, apperr.New(apperr.Integrity, "world.sequence_exhausted", err)
	}
	w.Sequence = next
	return next, nil
}

// Agent returns a copy-free pointer to the agent with id, or ok=false.
func (w *World) Agent(id domain.AgentID) (*domain.Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.Agents[id]
	return a, ok
}

// PutAgent inserts or replaces an agent record.
func (w *World) PutAgent(a *domain.Agent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Agents[a.ID] = a
}

// Location returns a pointer to the location with id, or ok=false.
func (w *World) Location(id domain.LocationID) (*domain.Location, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	l, ok := w.Locations[id]
	return l, ok
}

// PutLocation inserts or replaces a location record.
func (w *World) PutLocation(l *domain.Location) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Locations[l.ID] = l
}

// AgentCount returns the number of agents currently in world state.
func (w *World) AgentCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.Agents)
}

// LocationCount returns the number of locations currently in world state.
func (w *World) LocationCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.Locations)
}

// CurrentTick returns the world's current tick counter.
func (w *World) CurrentTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.Tick
}

// Transfer moves amount of kind from the from-agent's balance to the
// to-agent's balance atomically: either both balances update or neither
// does (spec §4.5 "atomic state mutation"). Uses checked arithmetic
// throughout so a transfer can never silently overflow a balance.
func (w *World) Transfer(from, to domain.AgentID, kind domain.ResourceKind, amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	src, ok := w.Agents[from]
	if !ok {
		return apperr.Newf(apperr.Validation, "world.unknown_agent", "agent %s not found", from)
	}
	dst, ok := w.Agents[to]
	if !ok {
		return apperr.Newf(apperr.Validation, "world.unknown_agent", "agent %s not found", to)
	}

	newSrc, ok := domain.CheckedSubU64(src.BalanceOf(kind), amount)
	if !ok {
		return apperr.Newf(apperr.Resource, "world.insufficient_balance", "agent %s lacks %d of %s", from, amount, kind)
	}
	newDst, ok := domain.CheckedAddU64(dst.BalanceOf(kind), amount)
	if !ok {
		return apperr.Newf(apperr.Overflow, "world.balance_overflow", "transfer would overflow %s's %s balance", to, kind)
	}

	if src.Balances == nil {
		src.Balances = make(map[domain.ResourceKind]uint64)
	}
	if dst.Balances == nil {
		dst.Balances = make(map[domain.ResourceKind]uint64)
	}
	src.Balances[kind] = newSrc
	dst.Balances[kind] = newDst
	return nil
}

// DebitMany checks every (kind, amount) pair in amounts against agentID's
// balances before committing any of them, so a charge spanning more than
// one resource kind — the Data+Electricity metering charge of spec §4.5
// step 7, for instance — either fully applies or fully fails rather than
// leaving one resource debited and another untouched.
func (w *World) DebitMany(agentID domain.AgentID, amounts map[domain.ResourceKind]uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.Agents[agentID]
	if !ok {
		return apperr.Newf(apperr.Validation, "world.unknown_agent", "agent %s not found", agentID)
	}

	next := make(map[domain.ResourceKind]uint64, len(amounts))
	for kind, amount := range amounts {
		newBal, ok := domain.CheckedSubU64(a.BalanceOf(kind), amount)
		if !ok {
			return apperr.Newf(apperr.Resource, "world.insufficient_balance", "agent %s lacks %d of %s", agentID, amount, kind)
		}
		next[kind] = newBal
	}

	if a.Balances == nil {
		a.Balances = make(map[domain.ResourceKind]uint64)
	}
	for kind, bal := range next {
		a.Balances[kind] = bal
	}
	return nil
}

// Debit subtracts amount of kind from agentID's balance, the single-resource
// case of DebitMany.
func (w *World) Debit(agentID domain.AgentID, kind domain.ResourceKind, amount uint64) error {
	return w.DebitMany(agentID, map[domain.ResourceKind]uint64{kind: amount})
}

// CompactMemory replaces the given module's memory blob on agentID with a
// smaller, module-supplied replacement. It is an explicit operation invoked
// through kernel.CompactAgentMemory, not triggered by any governance
// transition (spec §4.4's storage-rent invariant implies compaction has a
// cost, so it is an explicit operation rather than something the kernel
// does unprompted).
func (w *World) CompactMemory(agentID domain.AgentID, moduleID domain.ModuleID, compacted []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	a, ok := w.Agents[agentID]
	if !ok {
		return apperr.Newf(apperr.Validation, "world.unknown_agent", "agent %s not found", agentID)
	}
	if len(compacted) > len(a.Memory[moduleID]) {
		return apperr.Newf(apperr.Validation, "world.memory_compaction_grew", "module %s memory grew from %d to %d bytes", moduleID, len(a.Memory[moduleID]), len(compacted))
	}
	if a.Memory == nil {
		a.Memory = make(map[domain.ModuleID][]byte)
	}
	a.Memory[moduleID] = compacted
	return nil
}

// StateHash returns a deterministic content hash over the full world state,
// the generalization of the teacher's Ledger.StateRoot (sort keys, hash in
// sorted order) to World's richer entity set; see codec.Hash for how
// individual values are canonicalized before hashing.
func (w *World) StateHash(hashFn func(any) (string, error)) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	agentIDs := make([]string, 0, len(w.Agents))
	for id := range w.Agents {
		agentIDs = append(agentIDs, string(id))
	}
	locIDs := make([]string, 0, len(w.Locations))
	for id := range w.Locations {
		locIDs = append(locIDs, string(id))
	}
	sort.Strings(agentIDs)
	sort.Strings(locIDs)

	snapshotAgents := make(map[string]domain.Agent, len(agentIDs))
	for _, id := range agentIDs {
		snapshotAgents[id] = *w.Agents[domain.AgentID(id)]
	}
	snapshotLocs := make(map[string]domain.Location, len(locIDs))
	for _, id := range locIDs {
		snapshotLocs[id] = *w.Locations[domain.LocationID(id)]
	}

	return hashFn(struct {
		Agents    map[string]domain.Agent    `cbor:"agents"`
		Locations map[string]domain.Location `cbor:"locations"`
		Tick      uint64                     `cbor:"tick"`
		Sequence  domain.EraCounter          `cbor:"sequence"`
	}{snapshotAgents, snapshotLocs, w.Tick, w.Sequence})
}
