package kitchen

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appetiteclub/apt"
)

type stubFeed struct {
	connected atomic.Bool
}

func (f *stubFeed) Start(ctx context.Context) error { return nil }
func (f *stubFeed) Stop(ctx context.Context) error  { return nil }
func (f *stubFeed) Connected() bool                 { return f.connected.Load() }

func TestPollerAppliesSnapshotsWhileDisconnected(t *testing.T) {
	var polls atomic.Int32
	repo := &mockOrderRepo{
		kitchenOrdersFunc: func(ctx context.Context) ([]Order, error) {
			polls.Add(1)
			return []Order{testOrder("o1", "confirmed", time.Now())}, nil
		},
	}
	board := NewBoard(repo, apt.NewNoopLogger())
	feed := &stubFeed{}

	p := NewPoller(repo, board, feed, 20*time.Millisecond, apt.NewNoopLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return polls.Load() >= 2 })
	if len(board.Orders()) != 1 {
		t.Errorf("Poll result not applied to the board")
	}
}

func TestPollerSkipsTicksWhileFeedConnected(t *testing.T) {
	var polls atomic.Int32
	repo := &mockOrderRepo{
		kitchenOrdersFunc: func(ctx context.Context) ([]Order, error) {
			polls.Add(1)
			return []Order{}, nil
		},
	}
	board := NewBoard(repo, apt.NewNoopLogger())
	feed := &stubFeed{}
	feed.connected.Store(true)

	p := NewPoller(repo, board, feed, 10*time.Millisecond, apt.NewNoopLogger())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop(context.Background())

	// The priming poll runs regardless; ticks must then be skipped.
	time.Sleep(100 * time.Millisecond)
	if got := polls.Load(); got != 1 {
		t.Errorf("Expected only the priming poll, got %d", got)
	}

	// Feed drops: polling resumes.
	feed.connected.Store(false)
	waitFor(t, func() bool { return polls.Load() >= 2 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met in time")
}
