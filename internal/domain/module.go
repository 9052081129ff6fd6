package domain

// ModuleArtifact is a compiled, content-addressed WASM binary plus the
// manifest that describes its ABI and capability requests (spec §3/§5).
type ModuleArtifact struct {
	WasmHash Hash            `cbor:"wasm_hash" json:"wasm_hash"`
	Version  string          `cbor:"version" json:"version"`
	Manifest ModuleManifest  `cbor:"manifest" json:"manifest"`
	SizeBytes int64          `cbor:"size_bytes" json:"size_bytes"`
}

// ModuleManifest declares what a module may do. The registry's governance
// state machine only lets a module run with the capabilities it declared up
// front; capabilities are never escalated post-registration (spec §5).
type ModuleManifest struct {
	Name         string            `cbor:"name" json:"name"`
	Capabilities []string          `cbor:"capabilities" json:"capabilities"`
	Subscriptions []Subscription   `cbor:"subscriptions" json:"subscriptions"`
	MaxGasHint   uint64            `cbor:"max_gas_hint,omitempty" json:"max_gas_hint,omitempty"`
	Metadata     map[string]string `cbor:"metadata,omitempty" json:"metadata,omitempty"`

	// OwnerAgentID is billed the metering cost (spec §4.5 step 7) of every
	// call this module's subscriptions trigger. Empty means the module has
	// no billable owner and its calls are metered but never charged.
	OwnerAgentID AgentID `cbor:"owner_agent_id,omitempty" json:"owner_agent_id,omitempty"`
}

// SubscriptionStage names the pipeline stage a module subscribes to (spec
// §4.5): modules run in lexicographic ModuleID order within a stage.
type SubscriptionStage string

const (
	StagePreAction  SubscriptionStage = "pre_action"
	StagePostAction SubscriptionStage = "post_action"
	StageTick       SubscriptionStage = "tick"
)

// Subscription binds a module to a pipeline stage with an optional filter
// restricting which events/actions it is invoked for.
type Subscription struct {
	Stage  SubscriptionStage `cbor:"stage" json:"stage"`
	Filter *FilterNode       `cbor:"filter,omitempty" json:"filter,omitempty"`
}

// FilterOp is a comparison operator in the subscription filter grammar.
type FilterOp string

const (
	FilterEq FilterOp = "eq"
	FilterNe FilterOp = "ne"
	FilterGt FilterOp = "gt"
	FilterGte FilterOp = "gte"
	FilterLt FilterOp = "lt"
	FilterLte FilterOp = "lte"
	FilterRe  FilterOp = "re"
)

// FilterCombine joins child filter nodes (spec §5 filter grammar).
type FilterCombine string

const (
	CombineAll FilterCombine = "all"
	CombineAny FilterCombine = "any"
)

// FilterNode is one node of the subscription filter tree. It is either a
// leaf comparison (Path/Op/Value set, Combine empty) or a combinator over
// Children (Combine set, Path/Op/Value empty). Path is a JSON-Pointer
// (RFC 6901) into the candidate event/action.
type FilterNode struct {
	Combine  FilterCombine `cbor:"combine,omitempty" json:"combine,omitempty"`
	Children []FilterNode  `cbor:"children,omitempty" json:"children,omitempty"`

	Path  string `cbor:"path,omitempty" json:"path,omitempty"`
	Op    FilterOp `cbor:"op,omitempty" json:"op,omitempty"`
	Value any    `cbor:"value,omitempty" json:"value,omitempty"`
}

// IsLeaf reports whether n is a comparison leaf rather than a combinator.
func (n *FilterNode) IsLeaf() bool {
	return n.Combine == ""
}
