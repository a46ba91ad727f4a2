// ABOUTME: LogEvent records one proxied JSON-RPC call; EventLog buffers them until drained
// ABOUTME: All access goes through one mutex, so drain is a single read-then-truncate step

package proxy

import (
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// LogEvent is the telemetry for one forwarded call. Timestamps are epoch
// milliseconds; EndedAt and Status stay zero until the call finishes.
type LogEvent struct {
	Seq         int64           `json:"seq"`
	ID          json.RawMessage `json:"id"`
	Method      string          `json:"method,omitempty"`
	Tool        string          `json:"tool,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Phase       string          `json:"phase,omitempty"`
	StartedAt   int64           `json:"startedAt"`
	EndedAt     int64           `json:"endedAt,omitempty"`
	Status      int             `json:"status,omitempty"`
	Error       string          `json:"error,omitempty"`
	ReqSnippet  string          `json:"reqSnippet,omitempty"`
	RespSnippet string          `json:"respSnippet,omitempty"`
}

// Duration reports EndedAt - StartedAt, or false while the call is in flight.
func (e LogEvent) Duration() (time.Duration, bool) {
	if e.EndedAt == 0 {
		return 0, false
	}
	return time.Duration(e.EndedAt-e.StartedAt) * time.Millisecond, true
}

// EventLog is an append-only buffer of LogEvents. It grows until drained.
type EventLog struct {
	mu     sync.Mutex
	next   int64
	events []LogEvent
}

// NewEventLog creates an empty log whose first event gets seq 1.
func NewEventLog() *EventLog {
	return &EventLog{next: 1}
}

// Begin assigns the next seq to ev, appends it and returns the stored copy.
func (l *EventLog) Begin(ev LogEvent) LogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Seq = l.next
	l.next++
	l.events = append(l.events, ev)
	return ev
}

// Finish replaces the buffered event with the same seq. It reports false when
// that event was drained while the call was in flight.
func (l *EventLog) Finish(ev LogEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, found := slices.BinarySearchFunc(l.events, ev.Seq, func(e LogEvent, seq int64) int {
		switch {
		case e.Seq < seq:
			return -1
		case e.Seq > seq:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return false
	}
	l.events[i] = ev
	return true
}

// Drain returns every buffered event in seq order and empties the log.
// The result is never nil.
func (l *EventLog) Drain() []LogEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.events
	if out == nil {
		out = []LogEvent{}
	}
	l.events = nil
	return out
}

// Len returns the number of buffered events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
