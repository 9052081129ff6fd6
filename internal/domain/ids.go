// Package domain centralises the struct definitions referenced across the
// kernel packages (codec, sandbox, registry, world, pipeline, bridge), the
// same way the teacher's core/common_structs.go centralises its cross-module
// structs: declaring data only, with no behaviour, keeps the dependency
// graph acyclic since every kernel package may import domain but domain
// never imports them back.
package domain

import "fmt"

// WorldID identifies a single world aggregate.
type WorldID string

// AgentID identifies an agent within a world.
type AgentID string

// LocationID identifies a fixed region within a world.
type LocationID string

// ModuleID identifies a registered module artifact family (not a specific
// version).
type ModuleID string

// ActionID identifies a pending or committed action.
type ActionID string

// ProposalID identifies a governance proposal.
type ProposalID string

// Hash is a lowercase-hex blake3 digest, the only content-address format
// the runtime uses (spec §4.1).
type Hash string

// ResourceKind is encoded as a canonical string tag rather than an integer
// enum so a future resource kind never shifts existing wire values.
type ResourceKind string

const (
	ResourceElectricity ResourceKind = "electricity"
	ResourceData        ResourceKind = "data"
)

// SubmitterKind distinguishes the three action submitter identities of
// spec §4.5 step 1.
type SubmitterKind string

const (
	SubmitterSystem SubmitterKind = "system"
	SubmitterAgent  SubmitterKind = "agent"
	SubmitterPlayer SubmitterKind = "player"
)

// Submitter identifies who is asking the kernel to run an action.
type Submitter struct {
	Kind SubmitterKind `cbor:"kind" json:"kind"`
	ID   string        `cbor:"id" json:"id"`
}

func (s Submitter) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// EraCounter pairs a monotonic counter with a rollover era the way every
// World snapshot counter does (spec §4.4): when Value would overflow
// u64::MAX, Era increments by a checked add and Value resets to 1.
type EraCounter struct {
	Era   uint64 `cbor:"era" json:"era"`
	Value uint64 `cbor:"value" json:"value"`
}

// ErrCounterExhausted is returned only in the astronomically unlikely case
// that Era itself would overflow; it is an Integrity-class fault since no
// replay can meaningfully continue past it.
var ErrCounterExhausted = fmt.Errorf("era counter exhausted: era would overflow u64")

// Next returns the counter advanced by one, rolling Era over on Value
// overflow. It never mutates ec in place so callers can hold the old value
// until the allocation is committed to the journal.
func (ec EraCounter) Next() (EraCounter, error) {
	if ec.Value != ^uint64(0) {
		return EraCounter{Era: ec.Era, Value: ec.Value + 1}, nil
	}
	if ec.Era == ^uint64(0) {
		return EraCounter{}, ErrCounterExhausted
	}
	return EraCounter{Era: ec.Era + 1, Value: 1}, nil
}

// Less reports whether ec sorts strictly before other in (era, value) order,
// which is also event/action arrival order.
func (ec EraCounter) Less(other EraCounter) bool {
	if ec.Era != other.Era {
		return ec.Era < other.Era
	}
	return ec.Value < other.Value
}
