package shared

import "context"

// EventHandler reacts to domain events delivered by an EventBus
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants. Empty means all.
	EventTypes() []string
}

// EventBus delivers domain events to the subscribed handlers. Publishing
// never fails because a handler failed.
type EventBus interface {
	Publish(ctx context.Context, events ...DomainEvent) error
	// Subscribe registers handler for eventTypes, or for its own
	// EventTypes when none are given.
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
