package kitchen

import (
	"context"
	"sync"
	"time"
)

// mockOrderRepo implements OrderRepository with overridable funcs.
type mockOrderRepo struct {
	mu                sync.Mutex
	updateCalls       int
	kitchenOrdersFunc func(ctx context.Context) ([]Order, error)
	updateStatusFunc  func(ctx context.Context, id, status, notes string) (*Order, error)
}

func (m *mockOrderRepo) KitchenOrders(ctx context.Context) ([]Order, error) {
	if m.kitchenOrdersFunc != nil {
		return m.kitchenOrdersFunc(ctx)
	}
	return []Order{}, nil
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id, status, notes string) (*Order, error) {
	m.mu.Lock()
	m.updateCalls++
	m.mu.Unlock()
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status, notes)
	}
	return nil, nil
}

func (m *mockOrderRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

// fakeClock drives the board's time deterministically: sleeps advance the
// clock instead of waiting.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// collectCues records cues raised by the board.
type collectCues struct {
	mu   sync.Mutex
	cues []Cue
}

func (c *collectCues) Play(cue Cue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cues = append(c.cues, cue)
}

func (c *collectCues) all() []Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Cue, len(c.cues))
	copy(out, c.cues)
	return out
}
