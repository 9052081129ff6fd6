package pipeline

import "testing"

func TestRunTickWithNoSubscribersAdvancesClock(t *testing.T) {
	p := newTestPipeline(t)
	if err := p.RunTick(); err != nil {
		t.Fatalf("run tick: %v", err)
	}
	if p.World.Tick != 1 {
		t.Fatalf("tick = %d, want 1", p.World.Tick)
	}
	if err := p.RunTick(); err != nil {
		t.Fatalf("run tick: %v", err)
	}
	if p.World.Tick != 2 {
		t.Fatalf("tick = %d, want 2", p.World.Tick)
	}
}
