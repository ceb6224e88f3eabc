package kitchen

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/savoria/savoria/pkg/event"
)

// BusFeed delivers kitchen order events from the message bus instead of the
// websocket feed. It is the natural choice when the console runs inside the
// platform network next to the broker.
type BusFeed struct {
	subscriber events.Subscriber
	sink       Sink
	logger     apt.Logger

	mu        sync.Mutex
	connected bool
}

func NewBusFeed(subscriber events.Subscriber, sink Sink, logger apt.Logger) *BusFeed {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &BusFeed{
		subscriber: subscriber,
		sink:       sink,
		logger:     logger,
	}
}

func (f *BusFeed) Start(ctx context.Context) error {
	f.logger.Info("starting kitchen bus feed", "topic", event.KitchenOrdersTopic)

	if err := f.subscriber.Subscribe(ctx, event.KitchenOrdersTopic, f.handleEvent); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", event.KitchenOrdersTopic, err)
	}

	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.sink.SetFeedConnected(true)
	return nil
}

func (f *BusFeed) handleEvent(ctx context.Context, msg []byte) error {
	var evt event.KitchenOrderEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		f.logger.Errorf("Failed to unmarshal kitchen order event: %v", err)
		return nil
	}
	f.sink.ApplyEvent(evt)
	return nil
}

func (f *BusFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *BusFeed) Stop(ctx context.Context) error {
	f.logger.Info("stopping kitchen bus feed")
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.sink.SetFeedConnected(false)
	return nil
}
