package kitchen

import (
	"context"

	"github.com/savoria/savoria/pkg/event"
)

// Sink receives order state from a feed or poller.
type Sink interface {
	Apply(orders []Order)
	ApplyEvent(evt event.KitchenOrderEvent)
	SetFeedConnected(connected bool)
}

// LiveFeed is a push source of kitchen order events.
type LiveFeed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Connected() bool
}
