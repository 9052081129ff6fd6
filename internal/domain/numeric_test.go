package domain

import "testing"

func TestCheckedAddU64Overflow(t *testing.T) {
	_, ok := CheckedAddU64(^uint64(0), 1)
	if ok {
		t.Fatal("expected overflow to be reported")
	}
	sum, ok := CheckedAddU64(40, 2)
	if !ok || sum != 42 {
		t.Fatalf("got sum=%d ok=%v, want 42 true", sum, ok)
	}
}

func TestCheckedSubU64Underflow(t *testing.T) {
	_, ok := CheckedSubU64(1, 2)
	if ok {
		t.Fatal("expected underflow to be reported")
	}
	diff, ok := CheckedSubU64(5, 2)
	if !ok || diff != 3 {
		t.Fatalf("got diff=%d ok=%v, want 3 true", diff, ok)
	}
}

func TestCheckedMulU64Overflow(t *testing.T) {
	_, ok := CheckedMulU64(^uint64(0), 2)
	if ok {
		t.Fatal("expected overflow to be reported")
	}
	product, ok := CheckedMulU64(6, 7)
	if !ok || product != 42 {
		t.Fatalf("got product=%d ok=%v, want 42 true", product, ok)
	}
}

func TestSupermajorityReachedNeverMultiplies(t *testing.T) {
	cases := []struct {
		approved, total uint64
		want            bool
	}{
		{0, 0, false},
		{1, 2, false},
		{2, 3, true},
		{^uint64(0), ^uint64(0), true},
		{^uint64(0)/2 + 1, ^uint64(0), true},
	}
	for _, c := range cases {
		if got := SupermajorityReached(c.approved, c.total); got != c.want {
			t.Errorf("SupermajorityReached(%d,%d) = %v, want %v", c.approved, c.total, got, c.want)
		}
	}
}

func TestEraCounterNextRollsOver(t *testing.T) {
	ec := EraCounter{Era: 0, Value: ^uint64(0)}
	next, err := ec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Era != 1 || next.Value != 1 {
		t.Fatalf("got %+v, want era=1 value=1", next)
	}
}

func TestEraCounterNextExhausted(t *testing.T) {
	ec := EraCounter{Era: ^uint64(0), Value: ^uint64(0)}
	_, err := ec.Next()
	if err != ErrCounterExhausted {
		t.Fatalf("got %v, want ErrCounterExhausted", err)
	}
}

func TestEraCounterLess(t *testing.T) {
	a := EraCounter{Era: 0, Value: 5}
	b := EraCounter{Era: 0, Value: 6}
	c := EraCounter{Era: 1, Value: 0}
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	if !b.Less(c) {
		t.Fatal("expected b < c")
	}
	if c.Less(a) {
		t.Fatal("expected c not < a")
	}
}
