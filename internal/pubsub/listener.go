package pubsub

import (
	"context"
)

// ContinuousListener holds one broker subscription and hands out its events
// one at a time.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes to broker for the given event types, or
// all of them when none are given. The subscription ends with ctx.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T], types ...EventType) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx, types...),
	}
}

// Next blocks until the next event arrives. It returns false once the
// context is cancelled or the broker is closed.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	select {
	case <-l.ctx.Done():
		return Event[T]{}, false
	case event, ok := <-l.ch:
		if !ok {
			return Event[T]{}, false
		}
		return event, true
	}
}

// Drain returns the events already buffered without blocking.
func (l *ContinuousListener[T]) Drain() []Event[T] {
	var events []Event[T]
	for {
		select {
		case event, ok := <-l.ch:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}
