package sandbox

import "testing"

func TestGasMeterConsumeWithinLimit(t *testing.T) {
	g := NewGasMeter(100)
	if err := g.Consume(40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Consume(60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Remaining() != 0 {
		t.Fatalf("remaining = %d, want 0", g.Remaining())
	}
}

func TestGasMeterOutOfFuel(t *testing.T) {
	g := NewGasMeter(10)
	if err := g.Consume(11); err == nil {
		t.Fatal("expected out-of-fuel error")
	}
	if g.Used() != 0 {
		t.Fatalf("used = %d, want 0 (failed charge must not partially apply)", g.Used())
	}
}

func TestGasMeterConsumeNeverOverflows(t *testing.T) {
	g := NewGasMeter(^uint64(0))
	if err := g.Consume(^uint64(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Consume(1); err == nil {
		t.Fatal("expected out-of-fuel error at the ceiling")
	}
}

func TestCapsAllows(t *testing.T) {
	caps := NewCaps([]string{"mine_fragment", "move"})
	if !caps.Allows("move") {
		t.Fatal("expected move to be allowed")
	}
	if caps.Allows("install_module") {
		t.Fatal("expected install_module to be denied")
	}
}
