// Package eventbus broadcasts daemon lifecycle events (started, stopped,
// restarted, restart budget exhausted) to in-process subscribers and,
// optionally, to a NATS subject for external consumers.
package eventbus

import (
	"context"
	"sync"
	"time"
)

// EventType enumerates the daemon lifecycle transitions the bus carries.
type EventType string

const (
	EventDaemonStarted         EventType = "daemon_started"
	EventDaemonStopped         EventType = "daemon_stopped"
	EventDaemonRestarted       EventType = "daemon_restarted"
	EventRestartBudgetExceeded EventType = "daemon_restart_budget_exhausted"
)

// Event describes a single daemon lifecycle transition.
type Event struct {
	Daemon    string    `json:"daemon"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Bus publishes daemon lifecycle events. Publish must never block the
// caller on a slow or absent subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int

	bridge Bridge // optional external sink, nil when unconfigured
}

// Bridge is an optional external sink (e.g. NATS) a Bus forwards events to
// in addition to its in-process subscribers.
type Bridge interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New returns a Bus with no external bridge configured.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// SetBridge attaches (or clears, with nil) an external event sink.
func (b *Bus) SetBridge(bridge Bridge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bridge = bridge
}

// ClearBridge closes the current bridge, if any, and detaches it.
func (b *Bus) ClearBridge() error {
	b.mu.Lock()
	bridge := b.bridge
	b.bridge = nil
	b.mu.Unlock()
	if bridge == nil {
		return nil
	}
	return bridge.Close()
}

// Subscribe registers a new in-process listener and returns its channel and
// an unsubscribe function. The channel has a small buffer; a subscriber
// that falls behind has events dropped rather than stalling publishers.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish fans ev out to every in-process subscriber and, if configured,
// the external bridge. Bridge errors are returned to the caller; in-process
// delivery never fails.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]chan Event, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		subs = append(subs, ch)
	}
	bridge := b.bridge
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default: // subscriber backlog full, drop rather than block
		}
	}

	if bridge != nil {
		return bridge.Publish(ctx, ev)
	}
	return nil
}

// Close releases every subscriber channel and the bridge, if any.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
	if b.bridge != nil {
		return b.bridge.Close()
	}
	return nil
}
