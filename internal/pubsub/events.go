// Package pubsub delivers registry notices and log entries to in-process
// subscribers without ever blocking the publisher.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// AmbiguityEvent carries an ambiguity report raised at registration.
	AmbiguityEvent EventType = "ambiguity"
	// RejectedEvent carries a registration refused as invalid.
	RejectedEvent EventType = "rejected"
	// LogEvent carries one formatted log line.
	LogEvent EventType = "log"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events. With no types
// every event is delivered.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context, types ...EventType) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
