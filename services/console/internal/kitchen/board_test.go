package kitchen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/pkg/event"
)

func testOrder(id, status string, created time.Time) Order {
	return Order{
		ID:        id,
		Number:    "ORD-" + id,
		Type:      "dine-in",
		Status:    status,
		CreatedAt: created,
	}
}

func newTestBoard(repo OrderRepository) (*Board, *fakeClock) {
	b := NewBoard(repo, apt.NewNoopLogger())
	clock := newFakeClock()
	b.SetClock(clock.Now, clock.Sleep)
	return b, clock
}

func TestApplyFiltersToVisibleStatuses(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	base := time.Now()

	b.Apply([]Order{
		testOrder("o1", "confirmed", base),
		testOrder("o2", "preparing", base),
		testOrder("o3", "ready", base),
		testOrder("o4", "served", base),
		testOrder("o5", "pending", base),
		testOrder("o6", "cancelled", base),
	})

	orders := b.Orders()
	if len(orders) != 3 {
		t.Fatalf("Expected 3 visible orders, got %d", len(orders))
	}
	for _, o := range orders {
		if !Visible(o.Status) {
			t.Errorf("Invisible status %q on the board", o.Status)
		}
	}
}

func TestOrdersSortedByStatusGroupThenAge(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	base := time.Now()

	b.Apply([]Order{
		testOrder("ready-old", "ready", base.Add(-10*time.Minute)),
		testOrder("conf-new", "confirmed", base),
		testOrder("prep", "preparing", base.Add(-5*time.Minute)),
		testOrder("conf-old", "confirmed", base.Add(-20*time.Minute)),
	})

	got := b.Orders()
	want := []string{"conf-old", "conf-new", "prep", "ready-old"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestUpdateStatusAppliesOptimistically(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	errc := make(chan error, 1)
	go func() {
		errc <- b.UpdateStatus(context.Background(), "o1", "preparing")
	}()
	<-started

	// The card must already show the pending status.
	orders := b.Orders()
	if orders[0].Status != "preparing" {
		t.Errorf("Expected optimistic status preparing, got %q", orders[0].Status)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
}

func TestUpdateStatusDropsConcurrentSameOrder(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			startedOnce.Do(func() { close(started) })
			<-release
			return nil, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	errc := make(chan error, 1)
	go func() {
		errc <- b.UpdateStatus(context.Background(), "o1", "preparing")
	}()
	<-started

	// Second update for the same order while one is in flight: dropped.
	if err := b.UpdateStatus(context.Background(), "o1", "ready"); err != nil {
		t.Errorf("Concurrent update should be a silent no-op, got %v", err)
	}
	if repo.calls() != 1 {
		t.Errorf("Expected a single PATCH, got %d", repo.calls())
	}

	close(release)
	<-errc

	// After completion a new update goes through again.
	if err := b.UpdateStatus(context.Background(), "o1", "ready"); err != nil {
		t.Fatalf("Follow-up update failed: %v", err)
	}
	if repo.calls() != 2 {
		t.Errorf("Expected second PATCH after completion, got %d", repo.calls())
	}
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	err := b.UpdateStatus(context.Background(), "ghost", "preparing")
	if !errors.Is(err, ErrUnknownOrder) {
		t.Errorf("Expected ErrUnknownOrder, got %v", err)
	}
}

func TestUpdateStatusRetriesWithBackoffThenRollsBack(t *testing.T) {
	boom := errors.New("gateway timeout")
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			return nil, boom
		},
	}
	b, clock := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	err := b.UpdateStatus(context.Background(), "o1", "preparing")
	if !errors.Is(err, boom) {
		t.Fatalf("Expected final error, got %v", err)
	}

	if repo.calls() != 3 {
		t.Errorf("Expected initial attempt plus 2 retries, got %d calls", repo.calls())
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("Expected backoff [1s 2s], got %v", sleeps)
	}

	// Rolled back to the exact committed status.
	orders := b.Orders()
	if orders[0].Status != "confirmed" {
		t.Errorf("Expected rollback to confirmed, got %q", orders[0].Status)
	}

	// Error message visible now, gone after its 10s TTL.
	msgs := b.Messages()
	if m, ok := msgs["o1"]; !ok || m.Kind != "error" {
		t.Errorf("Expected error message, got %+v", msgs)
	}
	clock.Advance(10*time.Second + time.Millisecond)
	if msgs := b.Messages(); len(msgs) != 0 {
		t.Errorf("Expected message to expire, got %+v", msgs)
	}
}

func TestUpdateStatusSuccessMessageExpiresAfter3s(t *testing.T) {
	repo := &mockOrderRepo{}
	b, clock := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	if err := b.UpdateStatus(context.Background(), "o1", "preparing"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	msgs := b.Messages()
	if m, ok := msgs["o1"]; !ok || m.Kind != "success" {
		t.Fatalf("Expected success message, got %+v", msgs)
	}

	clock.Advance(2 * time.Second)
	if _, ok := b.Messages()["o1"]; !ok {
		t.Error("Message expired too early")
	}
	clock.Advance(1*time.Second + time.Millisecond)
	if msgs := b.Messages(); len(msgs) != 0 {
		t.Errorf("Expected expiry after 3s, got %+v", msgs)
	}
}

func TestSuccessWhileDisconnectedAdoptsServerAnswer(t *testing.T) {
	server := testOrder("o1", "preparing", time.Now())
	server.Number = "ORD-o1"
	server.Notes = "rush it"
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			return &server, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.SetFeedConnected(false)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	if err := b.UpdateStatus(context.Background(), "o1", "preparing"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	orders := b.Orders()
	if orders[0].Status != "preparing" || orders[0].Notes != "rush it" {
		t.Errorf("Expected the server representation, got %+v", orders[0])
	}
}

func TestSuccessWhileConnectedLeavesReconcileToStream(t *testing.T) {
	server := testOrder("o1", "preparing", time.Now())
	server.Notes = "server copy"
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			return &server, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.SetFeedConnected(true)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	if err := b.UpdateStatus(context.Background(), "o1", "preparing"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// Status committed locally, but the rest of the record waits for the
	// stream's authoritative delivery.
	orders := b.Orders()
	if orders[0].Status != "preparing" {
		t.Errorf("Expected committed status, got %q", orders[0].Status)
	}
	if orders[0].Notes == "server copy" {
		t.Error("Server representation adopted despite a connected feed")
	}
}

func TestAdvanceStopsAtReady(t *testing.T) {
	repo := &mockOrderRepo{}
	b, _ := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "ready", time.Now())})

	if err := b.Advance(context.Background(), "o1"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if repo.calls() != 0 {
		t.Errorf("Ready order must not be advanced, got %d calls", repo.calls())
	}
}

func TestAdvanceMovesExactlyOneStep(t *testing.T) {
	var gotStatus string
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			gotStatus = status
			return nil, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	if err := b.Advance(context.Background(), "o1"); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if gotStatus != "preparing" {
		t.Errorf("Expected advance to preparing, got %q", gotStatus)
	}

	if err := b.Advance(context.Background(), "o1"); err != nil {
		t.Fatalf("Second advance failed: %v", err)
	}
	if gotStatus != "ready" {
		t.Errorf("Expected advance to ready, got %q", gotStatus)
	}
}

func TestApplyEventNewRaisesPriorityScaledCue(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	sink := &collectCues{}
	b.SetCueSink(sink)

	for _, p := range []string{"low", "urgent"} {
		b.ApplyEvent(event.KitchenOrderEvent{
			EventType: event.EventKitchenOrderNew,
			Order:     event.OrderSnapshot{ID: "o-" + p, Status: "confirmed", Priority: p},
		})
	}

	cues := sink.all()
	if len(cues) != 2 {
		t.Fatalf("Expected 2 cues, got %d", len(cues))
	}
	low, urgent := cues[0], cues[1]
	if urgent.Frequency <= low.Frequency {
		t.Errorf("Urgent cue frequency %d not above low %d", urgent.Frequency, low.Frequency)
	}
	if urgent.Pulses <= low.Pulses {
		t.Errorf("Urgent cue pulses %d not above low %d", urgent.Pulses, low.Pulses)
	}
	if urgent.Duration <= low.Duration {
		t.Errorf("Urgent cue duration %v not above low %v", urgent.Duration, low.Duration)
	}
}

func TestMutedBoardRaisesNoCue(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	sink := &collectCues{}
	b.SetCueSink(sink)
	b.SetMuted(true)

	b.ApplyEvent(event.KitchenOrderEvent{
		EventType: event.EventKitchenOrderNew,
		Order:     event.OrderSnapshot{ID: "o1", Status: "confirmed", Priority: "urgent"},
	})

	if len(sink.all()) != 0 {
		t.Error("Muted board still raised a cue")
	}
	if len(b.Orders()) != 1 {
		t.Error("Muting must not drop the order itself")
	}
}

func TestApplyEventCancelledRemovesOrder(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	b.ApplyEvent(event.KitchenOrderEvent{
		EventType: event.EventKitchenOrderCancelled,
		Order:     event.OrderSnapshot{ID: "o1", Status: "cancelled"},
	})

	if len(b.Orders()) != 0 {
		t.Error("Cancelled order still on the board")
	}
}

func TestApplyEventUpdateOutOfVisibleSetRemoves(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	b.Apply([]Order{testOrder("o1", "ready", time.Now())})

	b.ApplyEvent(event.KitchenOrderEvent{
		EventType: event.EventKitchenOrderUpdated,
		Order:     event.OrderSnapshot{ID: "o1", Status: "served"},
	})

	if len(b.Orders()) != 0 {
		t.Error("Served order still on the board")
	}
}

func TestCursorWalksDisplayOrderAndCommitsOneStep(t *testing.T) {
	var patched []string
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			patched = append(patched, id+"→"+status)
			return nil, nil
		},
	}
	b, _ := newTestBoard(repo)
	base := time.Now()
	b.Apply([]Order{
		testOrder("prep", "preparing", base),
		testOrder("conf-old", "confirmed", base.Add(-10*time.Minute)),
		testOrder("conf-new", "confirmed", base),
	})

	b.CursorNext() // selects first card: conf-old
	if sel, _ := b.Selected(); sel.ID != "conf-old" {
		t.Fatalf("Expected conf-old selected, got %q", sel.ID)
	}
	b.CursorNext()
	if sel, _ := b.Selected(); sel.ID != "conf-new" {
		t.Fatalf("Expected conf-new selected, got %q", sel.ID)
	}
	b.CursorNext()
	if sel, _ := b.Selected(); sel.ID != "prep" {
		t.Fatalf("Expected prep selected, got %q", sel.ID)
	}
	b.CursorNext() // clamped at the end
	if sel, _ := b.Selected(); sel.ID != "prep" {
		t.Fatalf("Expected clamp at prep, got %q", sel.ID)
	}
	b.CursorPrev()
	if sel, _ := b.Selected(); sel.ID != "conf-new" {
		t.Fatalf("Expected conf-new after prev, got %q", sel.ID)
	}

	if err := b.CursorCommit(context.Background()); err != nil {
		t.Fatalf("CursorCommit failed: %v", err)
	}
	if len(patched) != 1 || patched[0] != "conf-new→preparing" {
		t.Errorf("Expected a single one-step commit, got %v", patched)
	}
}

func TestApplyPreservesPendingForInFlightUpdate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	repo := &mockOrderRepo{
		updateStatusFunc: func(ctx context.Context, id, status, notes string) (*Order, error) {
			close(started)
			<-release
			return nil, nil
		},
	}
	b, _ := newTestBoard(repo)
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	errc := make(chan error, 1)
	go func() {
		errc <- b.UpdateStatus(context.Background(), "o1", "preparing")
	}()
	<-started

	// A poll batch lands mid-flight; the optimistic state must survive.
	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})
	if b.Orders()[0].Status != "preparing" {
		t.Errorf("Pending status lost on Apply, got %q", b.Orders()[0].Status)
	}

	close(release)
	<-errc
}

func TestBoardSubscribeTicksOnChange(t *testing.T) {
	b, _ := newTestBoard(&mockOrderRepo{})
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Apply([]Order{testOrder("o1", "confirmed", time.Now())})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("No change tick after Apply")
	}
}
