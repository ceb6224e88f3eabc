package kitchen

import (
	"context"
	"time"

	"github.com/appetiteclub/apt"
)

const defaultPollInterval = 30 * time.Second

// Poller refreshes the board from the REST API at a fixed interval. It is
// the fallback path: while the live feed is connected each tick is skipped.
type Poller struct {
	repo     OrderRepository
	sink     Sink
	feed     LiveFeed // optional
	interval time.Duration
	logger   apt.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewPoller(repo OrderRepository, sink Sink, feed LiveFeed, interval time.Duration, logger apt.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		repo:     repo,
		sink:     sink,
		feed:     feed,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("starting kitchen order poller", "interval", p.interval)

	// Prime the board regardless of feed state.
	p.poll()

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				if p.feed != nil && p.feed.Connected() {
					continue
				}
				p.poll()
			}
		}
	}()
	return nil
}

func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()

	orders, err := p.repo.KitchenOrders(ctx)
	if err != nil {
		p.logger.Error("kitchen order poll failed", "error", err)
		return
	}
	p.sink.Apply(orders)
}

func (p *Poller) Stop(ctx context.Context) error {
	p.logger.Info("stopping kitchen order poller")
	p.cancel()
	return nil
}
