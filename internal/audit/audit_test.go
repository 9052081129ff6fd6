package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/runtime/internal/domain"
)

func seq(era, value uint64) domain.EraCounter {
	return domain.EraCounter{Era: era, Value: value}
}

func newTestLog() *Log {
	l := NewLog()
	l.Append(domain.Event{Sequence: seq(0, 1), Kind: domain.EventActionAccepted, Tick: 1})
	l.Append(domain.Event{Sequence: seq(0, 2), Kind: domain.EventActionRejected, Tick: 1})
	l.Append(domain.Event{Sequence: seq(0, 3), Kind: domain.EventActionAccepted, Tick: 2})
	l.Append(domain.Event{Sequence: seq(0, 4), Kind: domain.EventTickCompleted, Tick: 2})
	l.Append(domain.Event{Sequence: seq(0, 5), Kind: domain.EventActionAccepted, Tick: 3})
	return l
}

func TestQueryFiltersByKind(t *testing.T) {
	l := newTestLog()
	page, err := l.Query(Filter{Kind: domain.EventActionAccepted}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 3)
	for _, ev := range page.Events {
		assert.Equal(t, domain.EventActionAccepted, ev.Kind)
	}
}

func TestQueryFiltersByTickRange(t *testing.T) {
	l := newTestLog()
	page, err := l.Query(Filter{MinTick: 2, MaxTick: 2}, nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	for _, ev := range page.Events {
		assert.EqualValues(t, 2, ev.Tick)
	}
}

func TestQueryPaginatesAcrossPages(t *testing.T) {
	l := newTestLog()

	first, err := l.Query(Filter{}, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, seq(0, 1), first.Events[0].Sequence)
	assert.Equal(t, seq(0, 2), first.Events[1].Sequence)

	second, err := l.Query(Filter{}, first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	require.NotNil(t, second.NextCursor)
	assert.Equal(t, seq(0, 3), second.Events[0].Sequence)
	assert.Equal(t, seq(0, 4), second.Events[1].Sequence)

	third, err := l.Query(Filter{}, second.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, third.Events, 1)
	assert.Nil(t, third.NextCursor)
	assert.Equal(t, seq(0, 5), third.Events[0].Sequence)
}

func TestQueryRejectsUnknownCursor(t *testing.T) {
	l := newTestLog()
	bogus := &Cursor{Era: 9, Value: 9}
	_, err := l.Query(Filter{}, bogus, 10)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestQueryOnEmptyLogWithNilCursorReturnsEmptyPage(t *testing.T) {
	l := NewLog()
	page, err := l.Query(Filter{}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.Nil(t, page.NextCursor)
}
