package metrics

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubWorld struct{ tick uint64 }

func (s stubWorld) AgentCount() int     { return 2 }
func (s stubWorld) LocationCount() int  { return 1 }
func (s stubWorld) CurrentTick() uint64 { return s.tick }

type stubJournal struct{ n uint64 }

func (s stubJournal) Length() uint64 { return s.n }

type stubBridge struct{ height uint64 }

func (s stubBridge) ExecutedHeightValue() uint64 { return s.height }
func (s stubBridge) PendingBatchCount() int      { return 0 }

func TestSnapshotReflectsSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.log")
	r, err := NewRecorder(stubWorld{tick: 7}, stubJournal{n: 3}, stubBridge{height: 5}, path)
	require.NoError(t, err)
	defer r.Close()

	s := r.Snapshot()
	require.EqualValues(t, 7, s.Tick)
	require.Equal(t, 2, s.AgentCount)
	require.Equal(t, 1, s.LocationCount)
	require.EqualValues(t, 3, s.JournalLength)
	require.EqualValues(t, 5, s.ExecutedHeight)
}

func TestCountersIncrement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "health.log")
	r, err := NewRecorder(nil, nil, nil, path)
	require.NoError(t, err)
	defer r.Close()

	r.ActionAccepted()
	r.ActionAccepted()
	r.ActionRejected()
	r.GasConsumed(42)
	r.SandboxFault("out_of_fuel")

	require.Equal(t, float64(2), testutil.ToFloat64(r.actionsAcceptedCounter))
	require.Equal(t, float64(1), testutil.ToFloat64(r.actionsRejectedCounter))
}
