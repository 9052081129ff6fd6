package pipeline

import (
	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/sandbox"
)

// RunTick advances the world clock by one tick and invokes every active
// StageTick subscriber in lexicographic ModuleID order, metering each call
// into a ModuleRuntimeCharged event before the tick's own TickCompleted
// event closes it out (spec §4.5 "tick lifecycle").
func (p *Pipeline) RunTick() error {
	p.World.Tick++
	subject := map[string]any{"tick": p.World.Tick}

	moduleIDs, err := p.Registry.ActiveSubscribers(domain.StageTick, subject)
	if err != nil {
		return err
	}

	for _, id := range moduleIDs {
		rec, ok := p.Registry.Get(id)
		if !ok {
			continue
		}
		input, err := codec.Encode(subject)
		if err != nil {
			return err
		}
		result, err := p.Executor.Call(sandbox.CallRequest{
			WasmHash:   rec.Artifact.WasmHash,
			Caps:       sandbox.NewCaps(rec.Artifact.Manifest.Capabilities),
			Limits:     p.Limits,
			Input:      input,
			Entrypoint: "reduce",
		})
		if err != nil {
			p.Log.Warnw("tick subscriber failed", "module_id", id, "error", err)
			continue
		}
		// Metering (spec §4.5 step 7) applies to a tick invocation the same
		// way it applies to a rule-stage one: record ModuleRuntimeCharged
		// and debit the module's owner, or fall back to
		// ModuleCallFailed(InsufficientResources) if the owner can't pay.
		if err := p.meterCall(rec, len(input), result); err != nil {
			return err
		}
	}

	seq, err := p.World.NextSequence()
	if err != nil {
		return err
	}
	ev := &domain.Event{Sequence: seq, Kind: domain.EventTickCompleted, Tick: p.World.Tick, Data: map[string]any{"tick": p.World.Tick}}
	if err := p.Journal.Append(ev); err != nil {
		return err
	}
	p.index(ev)
	return nil
}
