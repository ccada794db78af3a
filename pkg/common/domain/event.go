package domain

// Event is a domain event emitted by a service after a successful state change.
type Event interface {
	Type() string
}

// EventDispatcher delivers domain events to interested consumers.
// Delivery is best-effort: services log dispatch failures and never roll back
// the state change that produced the event.
type EventDispatcher interface {
	Dispatch(event Event) error
}

// NopDispatcher discards all events. Used when no broker is configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(Event) error { return nil }
