package changefeed

import "context"

// Subscription names one logical stream of events.
type Subscription struct {
	Table  string
	Filter Filter
}

func (s Subscription) String() string {
	if s.Filter.IsZero() {
		return s.Table
	}
	return s.Table + "?" + s.Filter.String()
}

// Handler receives events for a subscription. Transports may call it from
// their own goroutines.
type Handler func(Event)

// Handle closes a subscription.
type Handle interface {
	Unsubscribe() error
}

// Transport delivers row-level change events at least once.
type Transport interface {
	Subscribe(ctx context.Context, sub Subscription, h Handler) (Handle, error)
}

// ReconnectNotifier is implemented by transports that can lose events while
// disconnected. The callback runs after every successful reconnect; the
// returned func removes it.
type ReconnectNotifier interface {
	OnReconnect(fn func()) (remove func())
}
