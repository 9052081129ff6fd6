// Package pipeline implements the action pipeline (spec component C5): the
// fixed seven-step per-action algorithm (authorization, pre-action rules,
// balance check, atomic state mutation, event emission, post-action rules,
// metering) plus the tick lifecycle that drives StageTick subscriptions.
// The event-emission/journal-append shape is grounded on the teacher's
// EventManager.Emit in core/event_management.go, generalized from a single
// ledger-backed emit call to the full per-action state machine spec §4.5
// describes.
package pipeline

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/audit"
	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/registry"
	"github.com/agentworld/runtime/internal/sandbox"
	"github.com/agentworld/runtime/internal/world"
	"github.com/agentworld/runtime/pkg/apperr"
)

// Pipeline wires the World, Registry and sandbox Executor together to run
// one action at a time. A Pipeline is not safe for concurrent Submit calls;
// the kernel is single-threaded cooperative by design (spec §1).
type Pipeline struct {
	World    *world.World
	Registry *registry.Registry
	Executor *sandbox.Executor
	Journal  *world.Journal
	Limits   sandbox.Limits
	Log      *zap.SugaredLogger
	// Audit, if set, is fed every event this pipeline appends to Journal so
	// save_audit_log's query surface stays current without replaying the
	// journal from disk.
	Audit *audit.Log
}

// New builds a Pipeline from its dependencies. A nil logger falls back to
// the global zap logger.
func New(w *world.World, reg *registry.Registry, exec *sandbox.Executor, j *world.Journal, limits sandbox.Limits, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.L()
	}
	return &Pipeline{World: w, Registry: reg, Executor: exec, Journal: j, Limits: limits, Log: logger.Sugar()}
}

// Submit runs the full per-action algorithm against a, returning the
// receipt the submitter sees. A rejected action still returns a receipt
// (Accepted=false) rather than an error; Submit only returns a Go error for
// Integrity-class failures (journal write failure, sequence exhaustion)
// that should halt the node.
func (p *Pipeline) Submit(a domain.Action) (*domain.Receipt, error) {
	subject := actionSubject(a)

	// Step 1: authorization.
	if err := p.authorize(a); err != nil {
		return p.reject(a, err)
	}

	// Step 2: pre-action rules. Every subscriber's Modify patch is collected
	// before any of them is applied; its cost_delta total is enforced at
	// step 3, against the actor's balance, before the mutation runs.
	patched, costDelta, err := p.runRuleStage(domain.StagePreAction, a, subject)
	if err != nil {
		return p.reject(a, err)
	}
	if patched == nil {
		return p.reject(a, apperr.New(apperr.Validation, "pipeline.denied_by_rule", nil))
	}
	a = *patched

	// Step 3: balance check — the merged cost_delta from pre-action rules is
	// charged to the submitting agent's Electricity balance before the
	// mutation itself runs. A negative net cost_delta is a discount a rule
	// module grants; it is never charged.
	if costDelta > 0 && a.Submitter.Kind == domain.SubmitterAgent {
		if err := p.World.Debit(domain.AgentID(a.Submitter.ID), domain.ResourceElectricity, uint64(costDelta)); err != nil {
			return p.reject(a, err)
		}
	}

	// Step 4: atomic state mutation, combined with its own balance checks
	// per action kind since the check and the mutation share the same
	// checked arithmetic (a separate pre-check would just duplicate
	// CheckedSubU64).
	mutationEvent, err := p.mutate(a)
	if err != nil {
		return p.reject(a, err)
	}

	// Step 5: event emission.
	seq, err := p.World.NextSequence()
	if err != nil {
		return nil, err
	}
	ev := &domain.Event{Sequence: seq, Kind: mutationEvent.Kind, Tick: p.World.Tick, Data: mutationEvent.Data, CausedBy: a.ID}
	if err := p.Journal.Append(ev); err != nil {
		return nil, err
	}
	p.index(ev)

	// Step 6: post-action rules (informational; failures are logged, not
	// rejected, since the mutation already committed).
	if _, _, err := p.runRuleStage(domain.StagePostAction, a, subject); err != nil {
		p.Log.Warnw("post-action rule stage reported an error", "action_id", a.ID, "error", err)
	}

	// Step 7: metering happens per module invocation inside callRule, as
	// each rule stage subscriber runs; the receipt just reports the
	// sequence numbers the caller can use to look up what the action cost.
	receipt := &domain.Receipt{ActionID: a.ID, Accepted: true, Events: []domain.EraCounter{seq}}
	return receipt, nil
}

func (p *Pipeline) reject(a domain.Action, cause error) (*domain.Receipt, error) {
	seq, err := p.World.NextSequence()
	if err != nil {
		return nil, err
	}
	ev := &domain.Event{
		Sequence: seq,
		Kind:     domain.EventActionRejected,
		Tick:     p.World.Tick,
		CausedBy: a.ID,
		Data:     map[string]any{"reason": apperr.Code(cause)},
	}
	if err := p.Journal.Append(ev); err != nil {
		return nil, err
	}
	p.index(ev)
	return &domain.Receipt{ActionID: a.ID, Accepted: false, Reason: cause.Error(), Events: []domain.EraCounter{seq}}, nil
}

func (p *Pipeline) index(ev *domain.Event) {
	if p.Audit != nil {
		p.Audit.Append(*ev)
	}
}

// authorize enforces spec §4.5 step 1: system submitters may act on any
// target, an agent submitter may only act on behalf of itself, and a player
// submitter may not submit world actions directly.
func (p *Pipeline) authorize(a domain.Action) error {
	if a.Submitter.Kind == domain.SubmitterSystem {
		return nil
	}
	if a.Submitter.Kind == domain.SubmitterPlayer {
		return apperr.Newf(apperr.Validation, "pipeline.unauthorized", "player %s may not submit world actions directly", a.Submitter.ID)
	}
	actingAgent, _ := a.Params["agent_id"].(string)
	if actingAgent == "" {
		return apperr.New(apperr.Validation, "pipeline.missing_agent_id", nil)
	}
	if a.Submitter.Kind == domain.SubmitterAgent && a.Submitter.ID != actingAgent {
		return apperr.Newf(apperr.Validation, "pipeline.unauthorized", "agent %s may not act on behalf of %s", a.Submitter.ID, actingAgent)
	}
	return nil
}

// runRuleStage invokes every active subscriber for stage in module_id order
// and applies the spec §4.5 step 2 merge rule: any Deny immediately rejects
// the action; otherwise every subscriber's Modify patch is collected before
// any of them is applied to the action, two subscribers patching the same
// key must agree byte-for-byte (else ConflictingOverrides), and every
// cost_delta is summed with checked arithmetic (else CostOverflow). It
// returns the (possibly patched) action and the merged cost_delta, or a nil
// action if denied.
func (p *Pipeline) runRuleStage(stage domain.SubscriptionStage, a domain.Action, subject map[string]any) (*domain.Action, int64, error) {
	moduleIDs, err := p.Registry.ActiveSubscribers(stage, subject)
	if err != nil {
		return nil, 0, err
	}

	mergedPatch := make(map[string]any)
	var costDelta int64
	for _, id := range moduleIDs {
		rec, ok := p.Registry.Get(id)
		if !ok {
			continue
		}
		decision, err := p.callRule(rec, a, subject)
		if err != nil {
			return nil, 0, err
		}
		switch decision.Kind {
		case domain.RuleDeny:
			return nil, 0, apperr.Newf(apperr.Validation, "pipeline.denied_by_rule", "denied by module %s: %s", id, decision.Reason)
		case domain.RuleModify:
			for k, v := range decision.Patch {
				existing, seen := mergedPatch[k]
				if seen && !patchValuesEqual(existing, v) {
					return nil, 0, apperr.Newf(apperr.Validation, "pipeline.conflicting_overrides", "module %s overrides %q that an earlier subscriber already set to a different value", id, k)
				}
				mergedPatch[k] = v
			}
			sum, ok := domain.CheckedAddI64(costDelta, decision.CostDelta)
			if !ok {
				return nil, 0, apperr.New(apperr.Overflow, "pipeline.cost_overflow", nil)
			}
			costDelta = sum
		}
	}

	for k, v := range mergedPatch {
		a.Params[k] = v
	}
	if len(mergedPatch) > 0 {
		subject["params"] = a.Params
	}
	return &a, costDelta, nil
}

// patchValuesEqual reports whether two Modify patch values are
// byte-identical once canonically encoded, the merge rule's literal
// reading of "byte-identical" (spec §4.5 step 2) rather than a looser
// structural-equality check.
func patchValuesEqual(a, b any) bool {
	ea, errA := codec.Encode(a)
	eb, errB := codec.Encode(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

func (p *Pipeline) callRule(rec registry.ModuleRecord, a domain.Action, subject map[string]any) (domain.RuleDecision, error) {
	input, err := codec.Encode(subject)
	if err != nil {
		return domain.RuleDecision{}, apperr.Wrap(err, "encoding rule input")
	}
	result, err := p.Executor.Call(sandbox.CallRequest{
		WasmHash:   rec.Artifact.WasmHash,
		Caps:       sandbox.NewCaps(rec.Artifact.Manifest.Capabilities),
		Limits:     p.Limits,
		Input:      input,
		Entrypoint: "call",
	})
	if err != nil {
		return domain.RuleDecision{}, err
	}

	if err := p.meterCall(rec, len(input), result); err != nil {
		return domain.RuleDecision{}, err
	}

	if len(result.Effects) == 0 {
		return domain.RuleDecision{Kind: domain.RuleAllow}, nil
	}
	var decision domain.RuleDecision
	if err := codec.Decode(result.Effects[0], &decision); err != nil {
		return domain.RuleDecision{}, apperr.Wrap(err, "decoding rule decision")
	}
	return decision, nil
}

// meterCall implements spec §4.5 step 7: every module invocation records a
// ModuleRuntimeCharged event and debits the module's declared owner in Data
// and Electricity. A module with no declared owner is metered but never
// charged. If the owner cannot pay, the charge is not applied at all and a
// ModuleCallFailed(InsufficientResources) event is recorded in its place —
// the call's own output is still returned to the caller, and callRule uses
// the decision it encodes as returned (RuleAllow only when it encodes
// none); an unpaid call's output is not discarded.
func (p *Pipeline) meterCall(rec registry.ModuleRecord, inputLen int, result *sandbox.ExecResult) error {
	outputLen := 0
	for _, eff := range result.Effects {
		outputLen += len(eff)
	}
	dataCost, electricityCost := meteringCost(inputLen, outputLen, len(result.Effects), result.Emits, len(result.NewState) > 0)

	seq, err := p.World.NextSequence()
	if err != nil {
		return err
	}

	owner := rec.Artifact.Manifest.OwnerAgentID
	if owner == "" {
		ev := &domain.Event{
			Sequence: seq,
			Kind:     domain.EventModuleRuntimeCharged,
			Tick:     p.World.Tick,
			Data:     map[string]any{"module_id": string(rec.ModuleID), "data_cost": dataCost, "electricity_cost": electricityCost},
		}
		if err := p.Journal.Append(ev); err != nil {
			return err
		}
		p.index(ev)
		return nil
	}

	if err := p.World.DebitMany(owner, map[domain.ResourceKind]uint64{domain.ResourceData: dataCost, domain.ResourceElectricity: electricityCost}); err != nil {
		ev := &domain.Event{
			Sequence: seq,
			Kind:     domain.EventModuleCallFailed,
			Tick:     p.World.Tick,
			Data:     map[string]any{"module_id": string(rec.ModuleID), "owner": string(owner), "reason": "InsufficientResources"},
		}
		if jerr := p.Journal.Append(ev); jerr != nil {
			return jerr
		}
		p.index(ev)
		return nil
	}

	ev := &domain.Event{
		Sequence: seq,
		Kind:     domain.EventModuleRuntimeCharged,
		Tick:     p.World.Tick,
		Data:     map[string]any{"module_id": string(rec.ModuleID), "owner": string(owner), "data_cost": dataCost, "electricity_cost": electricityCost},
	}
	if err := p.Journal.Append(ev); err != nil {
		return err
	}
	p.index(ev)
	return nil
}

// meteringCost computes the compute (Data) and electricity costs of one
// module invocation exactly as spec §4.5 step 7 defines them:
// compute = ceil(input/1024) + ceil(output/1024) + 2·effect_count + emit_count,
// electricity = 1 + effect_count + emit_count + (new_state produced ? 1 : 0).
func meteringCost(inputLen, outputLen, effectCount, emitCount int, newState bool) (dataCost, electricityCost uint64) {
	dataCost = domain.CeilDivU64(uint64(inputLen), 1024)
	dataCost, _ = domain.CheckedAddU64(dataCost, domain.CeilDivU64(uint64(outputLen), 1024))
	dataCost, _ = domain.CheckedAddU64(dataCost, 2*uint64(effectCount))
	dataCost, _ = domain.CheckedAddU64(dataCost, uint64(emitCount))

	electricityCost = uint64(1)
	electricityCost, _ = domain.CheckedAddU64(electricityCost, uint64(effectCount))
	electricityCost, _ = domain.CheckedAddU64(electricityCost, uint64(emitCount))
	if newState {
		electricityCost, _ = domain.CheckedAddU64(electricityCost, 1)
	}
	return dataCost, electricityCost
}

// mutationResult is the intermediate event payload a mutate step produces,
// folded into the journal entry Submit appends.
type mutationResult struct {
	Kind domain.EventKind
	Data map[string]any
}

func (p *Pipeline) mutate(a domain.Action) (*mutationResult, error) {
	switch a.Kind {
	case domain.ActionTransfer:
		return p.mutateTransfer(a)
	case domain.ActionMove:
		return p.mutateMove(a)
	case domain.ActionMineFragment:
		return p.mutateMineFragment(a)
	default:
		return nil, apperr.Newf(apperr.Validation, "pipeline.unsupported_action", "action kind %q not implemented", a.Kind)
	}
}

func (p *Pipeline) mutateTransfer(a domain.Action) (*mutationResult, error) {
	from, _ := a.Params["from"].(string)
	to, _ := a.Params["to"].(string)
	kind, _ := a.Params["kind"].(string)
	amountF, _ := a.Params["amount"].(float64)

	if err := p.World.Transfer(domain.AgentID(from), domain.AgentID(to), domain.ResourceKind(kind), uint64(amountF)); err != nil {
		return nil, err
	}
	return &mutationResult{
		Kind: domain.EventStateMutated,
		Data: map[string]any{"kind": "transfer", "from": from, "to": to, "resource": kind, "amount": amountF},
	}, nil
}

func (p *Pipeline) mutateMove(a domain.Action) (*mutationResult, error) {
	agentID, _ := a.Params["agent_id"].(string)
	agent, ok := p.World.Agent(domain.AgentID(agentID))
	if !ok {
		return nil, apperr.Newf(apperr.Validation, "pipeline.unknown_agent", "agent %s not found", agentID)
	}
	x, _ := a.Params["x"].(float64)
	y, _ := a.Params["y"].(float64)
	z, _ := a.Params["z"].(float64)
	agent.Pos = domain.Vector3{X: int64(x), Y: int64(y), Z: int64(z)}
	return &mutationResult{
		Kind: domain.EventStateMutated,
		Data: map[string]any{"kind": "move", "agent_id": agentID, "pos": map[string]any{"x": x, "y": y, "z": z}},
	}, nil
}

func (p *Pipeline) mutateMineFragment(a domain.Action) (*mutationResult, error) {
	locID, _ := a.Params["location_id"].(string)
	agentID, _ := a.Params["agent_id"].(string)
	amountF, _ := a.Params["amount"].(float64)
	amount := uint64(amountF)

	loc, ok := p.World.Location(domain.LocationID(locID))
	if !ok {
		return nil, apperr.Newf(apperr.Validation, "pipeline.unknown_location", "location %s not found", locID)
	}
	if loc.Fragment == nil {
		return nil, apperr.Newf(apperr.Validation, "pipeline.no_fragment_budget", "location %s has no mineable fragment", locID)
	}
	newRemaining, ok := domain.CheckedSubU64(loc.Fragment.Remaining, amount)
	if !ok {
		return nil, apperr.Newf(apperr.Resource, "pipeline.insufficient_fragment", "location %s lacks %d remaining mass", locID, amount)
	}
	newMined, ok := domain.CheckedAddU64(loc.Fragment.Mined, amount)
	if !ok {
		return nil, apperr.New(apperr.Overflow, "pipeline.mined_overflow", nil)
	}

	agent, ok := p.World.Agent(domain.AgentID(agentID))
	if !ok {
		return nil, apperr.Newf(apperr.Validation, "pipeline.unknown_agent", "agent %s not found", agentID)
	}
	newBalance, ok := domain.CheckedAddU64(agent.BalanceOf(domain.ResourceData), amount)
	if !ok {
		return nil, apperr.New(apperr.Overflow, "pipeline.balance_overflow", nil)
	}

	loc.Fragment.Remaining = newRemaining
	loc.Fragment.Mined = newMined
	if agent.Balances == nil {
		agent.Balances = make(map[domain.ResourceKind]uint64)
	}
	agent.Balances[domain.ResourceData] = newBalance

	return &mutationResult{
		Kind: domain.EventStateMutated,
		Data: map[string]any{"kind": "mine_fragment", "location_id": locID, "agent_id": agentID, "amount": amountF},
	}, nil
}

// actionSubject renders a as the map[string]any a subscription filter
// matches against.
func actionSubject(a domain.Action) map[string]any {
	return map[string]any{
		"kind":      string(a.Kind),
		"submitter": map[string]any{"kind": string(a.Submitter.Kind), "id": a.Submitter.ID},
		"params":    a.Params,
	}
}
