// Package event carries committed-transition notifications from the engine
// to connected clients. Delivery is best-effort and purely observational:
// the engine commits first, notifies after, and never waits on a consumer.
package event

import (
	"log/slog"
	"sync"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// Sink receives an event after every committed transition.
//
// Notify must not block: the engine calls it on the command path.
// Implementations that fan out to the network buffer internally and shed
// slow consumers rather than apply backpressure.
type Sink interface {
	Notify(check.Event)
}

// Discard is a Sink that drops every event.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Notify(check.Event) {}

// Multi fans a notification out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Notify(e check.Event) {
	for _, s := range m {
		s.Notify(e)
	}
}

// LogSink writes events to a structured logger. Used by the serve command so
// every transition is visible in the process log.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Notify(e check.Event) {
	l.Logger.Info("check transition",
		"event", string(e.Type),
		"check_id", e.Check.ID,
		"sender", e.Check.Sender,
		"receiver", e.Check.Receiver,
		"status", string(e.Check.Status),
		"awards", e.Awards.String(),
	)
}

// MemorySink records events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []check.Event
}

func (m *MemorySink) Notify(e check.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of everything recorded so far.
func (m *MemorySink) Events() []check.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]check.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset clears recorded events.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
