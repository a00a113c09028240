package matching

import (
	"context"
	"sync"
)

// Sink receives the events of one session in order. Returning an error stops
// the session; it is how transports report a vanished client.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of each recorded event in order.
func (r *Recorder) Types() []EventType {
	events := r.Events()
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type())
	}
	return out
}

// Tee fans events out to several sinks, stopping at the first error.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) error {
		for _, s := range sinks {
			if err := s.Emit(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}
