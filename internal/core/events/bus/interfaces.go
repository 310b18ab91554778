package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Publish delivers synchronously in the caller goroutine and joins handler errors.
// Metrics are only collected while at least one observer is registered.
type EventBus interface {
	Publish(event Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// SubscribeAll receives every event type.
	SubscribeAll(handler EventHandler) (Subscription, error)
	Unsubscribe(Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	GetMetrics() EventBusMetrics
}

// Event is an immutable message. Implementations should treat values as read-only.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	EventHandler func(event Event) error
)

// Subscription is a registered handler. Cancel is idempotent.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
}
