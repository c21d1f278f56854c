package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"negotiation-backend/model"
)

var ErrStreamClosed = errors.New("event stream closed")

// Emitter is the producer side of a session's event stream.
type Emitter interface {
	// Emit delivers ev, waiting for buffer space until ctx is done.
	Emit(ctx context.Context, ev model.Event) error
	// Relay delivers ev only if it can do so without waiting. It is used for
	// partial text so a slow observer never holds up a turn.
	Relay(ev model.Event) bool
}

const defaultStreamBuffer = 64

// EventStream is a single-producer, single-consumer channel of session events.
// Once a terminal event (complete or error) is accepted, every later Emit or
// Relay is refused, so the terminal event is always the last one.
type EventStream struct {
	ch        chan model.Event
	terminal  atomic.Bool
	dropped   atomic.Int64
	closeOnce sync.Once
}

func NewEventStream(buffer int) *EventStream {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	return &EventStream{ch: make(chan model.Event, buffer)}
}

// Events is the consumer side. It is closed by the producer after the
// terminal event.
func (s *EventStream) Events() <-chan model.Event {
	return s.ch
}

func (s *EventStream) Emit(ctx context.Context, ev model.Event) error {
	if s.terminal.Load() {
		return ErrStreamClosed
	}
	select {
	case s.ch <- ev:
		if ev.Type.Terminal() {
			s.terminal.Store(true)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EventStream) Relay(ev model.Event) bool {
	if s.terminal.Load() {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped counts relayed events discarded because the buffer was full.
func (s *EventStream) Dropped() int64 {
	return s.dropped.Load()
}

// Close ends the stream. Only the producer may call it.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() {
		s.terminal.Store(true)
		close(s.ch)
	})
}

// discardEmitter drops every event; used by the synchronous initiate path.
type discardEmitter struct{}

func (discardEmitter) Emit(context.Context, model.Event) error { return nil }
func (discardEmitter) Relay(model.Event) bool                  { return true }
