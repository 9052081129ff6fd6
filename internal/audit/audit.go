// Package audit implements save_audit_log and its query surface: an
// AuditFilter over the journal's events, cursor-based pagination, and a
// small HTTP export endpoint. The route/middleware shape is grounded on the
// teacher's cmd/explorer/server.go, ported from gorilla/mux to go-chi/chi
// (see SPEC_FULL.md's dependency notes: chi replaces mux as the HTTP
// router used across this runtime).
package audit

import (
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// Filter narrows an audit query to events matching every non-zero field.
type Filter struct {
	Kind      domain.EventKind
	MinTick   uint64
	MaxTick   uint64 // 0 means unbounded
	CausedBy  domain.ActionID
}

func (f Filter) matches(ev domain.Event) bool {
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if ev.Tick < f.MinTick {
		return false
	}
	if f.MaxTick != 0 && ev.Tick > f.MaxTick {
		return false
	}
	if f.CausedBy != "" && ev.CausedBy != f.CausedBy {
		return false
	}
	return true
}

// Cursor identifies a position in the audit log by sequence, so pagination
// survives new events being appended between pages (spec: "cursor-based
// pagination").
type Cursor struct {
	Era   uint64
	Value uint64
}

// ErrInvalidCursor is returned when a cursor does not correspond to any
// known sequence position.
var ErrInvalidCursor = apperr.New(apperr.Validation, "audit.cursor_invalid", nil)

// Page is one page of query results plus the cursor to fetch the next one.
type Page struct {
	Events     []domain.Event
	NextCursor *Cursor
}

// Log holds an in-memory index of events for querying. It is populated by
// the kernel as events are appended to the journal; it is not itself the
// source of truth (the journal is), so it can be rebuilt by replay at any
// time.
type Log struct {
	events []domain.Event
}

// NewLog returns an empty Log.
func NewLog() *Log { return &Log{} }

// Append indexes ev for later querying.
func (l *Log) Append(ev domain.Event) {
	l.events = append(l.events, ev)
}

// Query returns up to limit events matching f, starting strictly after
// after (nil means from the beginning). A non-nil after must name the
// sequence of some event this log actually holds; anything else is
// rejected as ErrInvalidCursor rather than silently returning an empty
// page, since that almost always means the caller is querying the wrong
// log or journal.
func (l *Log) Query(f Filter, after *Cursor, limit int) (Page, error) {
	startIdx := 0
	if after != nil {
		idx := l.indexOf(*after)
		if idx < 0 {
			return Page{}, ErrInvalidCursor
		}
		startIdx = idx + 1
	}

	var out []domain.Event
	var next *Cursor
	for i := startIdx; i < len(l.events); i++ {
		ev := l.events[i]
		if !f.matches(ev) {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			next = &Cursor{Era: ev.Sequence.Era, Value: ev.Sequence.Value}
			break
		}
	}
	return Page{Events: out, NextCursor: next}, nil
}

// indexOf returns the position of the event with sequence c, or -1 if no
// such event is held.
func (l *Log) indexOf(c Cursor) int {
	for i, ev := range l.events {
		if ev.Sequence.Era == c.Era && ev.Sequence.Value == c.Value {
			return i
		}
	}
	return -1
}
