package kitchen

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/pkg/event"
)

const (
	maxUpdateRetries  = 2
	baseRetryBackoff  = time.Second
	successMessageTTL = 3 * time.Second
	errorMessageTTL   = 10 * time.Second
)

// Message is a transient per-order status line shown next to the card.
type Message struct {
	Kind string `json:"kind"` // success | error
	Text string `json:"text"`
}

type boardMessage struct {
	Message
	expiresAt time.Time
}

// boardEntry is the three-state reconciliation record for one order:
// the committed server state, the optimistic pending status while an update
// is in flight, and the retry counter.
type boardEntry struct {
	committed Order
	pending   string
	retries   int
}

// Board reconciles the kitchen display's view of orders against the
// platform: feed batches and events flow in, optimistic status updates flow
// out. All methods are safe for concurrent use.
type Board struct {
	repo   OrderRepository
	logger apt.Logger

	mu            sync.Mutex
	entries       map[string]*boardEntry
	inFlight      map[string]bool
	messages      map[string]boardMessage
	feedConnected bool
	muted         bool
	cursorID      string
	lastCue       *Cue

	cueSink     CueSink
	subscribers map[int]chan struct{}
	nextSubID   int

	now   func() time.Time
	sleep func(d time.Duration)
}

func NewBoard(repo OrderRepository, logger apt.Logger) *Board {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Board{
		repo:        repo,
		logger:      logger,
		entries:     make(map[string]*boardEntry),
		inFlight:    make(map[string]bool),
		messages:    make(map[string]boardMessage),
		subscribers: make(map[int]chan struct{}),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// SetCueSink wires the audible notification output.
func (b *Board) SetCueSink(sink CueSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cueSink = sink
}

// Apply replaces the board's committed state with a fresh batch. Orders
// outside the visible statuses are dropped; optimistic pending state for
// in-flight updates survives the replacement.
func (b *Board) Apply(orders []Order) {
	b.mu.Lock()
	fresh := make(map[string]*boardEntry, len(orders))
	for _, o := range orders {
		if !Visible(o.Status) {
			continue
		}
		e := &boardEntry{committed: o}
		if old, ok := b.entries[o.ID]; ok && b.inFlight[o.ID] {
			e.pending = old.pending
			e.retries = old.retries
		}
		fresh[o.ID] = e
	}
	b.entries = fresh
	b.mu.Unlock()
	b.broadcast()
}

// ApplyEvent folds one live feed event into the board.
func (b *Board) ApplyEvent(evt event.KitchenOrderEvent) {
	o := fromSnapshot(evt.Order)

	b.mu.Lock()
	switch evt.EventType {
	case event.EventKitchenOrderNew:
		if Visible(o.Status) {
			b.entries[o.ID] = &boardEntry{committed: o}
			b.raiseCueLocked(o.Priority)
		}
	case event.EventKitchenOrderUpdated:
		if !Visible(o.Status) {
			delete(b.entries, o.ID)
			break
		}
		e, ok := b.entries[o.ID]
		if !ok {
			b.entries[o.ID] = &boardEntry{committed: o}
			break
		}
		e.committed = o
		// The stream is authoritative; an acknowledged optimistic update is
		// resolved by this delivery.
		if !b.inFlight[o.ID] {
			e.pending = ""
		}
	case event.EventKitchenOrderCancelled:
		delete(b.entries, o.ID)
	default:
		b.logger.Debug("Unknown kitchen feed event", "event_type", evt.EventType)
	}
	b.mu.Unlock()
	b.broadcast()
}

// Orders returns the board's cards in display order, with the optimistic
// pending status applied where one is in effect.
func (b *Board) Orders() []Order {
	b.mu.Lock()
	out := make([]Order, 0, len(b.entries))
	for _, e := range b.entries {
		o := e.committed
		if e.pending != "" {
			o.Status = e.pending
		}
		out = append(out, o)
	}
	b.mu.Unlock()
	sortDisplay(out)
	return out
}

// Counts returns the per-column card counts in board order: new orders,
// preparing, ready.
func (b *Board) Counts() (confirmed, preparing, ready int) {
	for _, o := range b.Orders() {
		switch statusRank(o.Status) {
		case 0:
			confirmed++
		case 1:
			preparing++
		case 2:
			ready++
		}
	}
	return confirmed, preparing, ready
}

// UpdateStatus optimistically transitions one order and confirms it against
// the platform, retrying transient failures. A concurrent update for the
// same order is dropped. On exhausted retries the committed status is
// restored and an error message recorded.
func (b *Board) UpdateStatus(ctx context.Context, id, status string) error {
	b.mu.Lock()
	if b.inFlight[id] {
		b.mu.Unlock()
		return nil
	}
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownOrder
	}
	b.inFlight[id] = true
	e.pending = status
	e.retries = 0
	number := e.committed.Number
	b.mu.Unlock()
	b.broadcast()

	defer func() {
		b.mu.Lock()
		delete(b.inFlight, id)
		b.mu.Unlock()
	}()

	notes := "status updated from kitchen display at " + b.now().UTC().Format(time.RFC3339)

	var lastErr error
	for attempt := 0; attempt <= maxUpdateRetries; attempt++ {
		if attempt > 0 {
			b.sleep(baseRetryBackoff << (attempt - 1))
			b.mu.Lock()
			if cur, ok := b.entries[id]; ok {
				cur.retries = attempt
			}
			b.mu.Unlock()
		}

		updated, err := b.repo.UpdateStatus(ctx, id, status, notes)
		if err == nil {
			b.resolveUpdate(id, number, status, updated)
			return nil
		}
		lastErr = err
		b.logger.Error("Order status update failed", "order_id", id, "attempt", attempt+1, "error", err)
	}

	b.mu.Lock()
	if cur, ok := b.entries[id]; ok {
		// Roll back: the committed status was never touched, dropping the
		// pending one restores the pre-update card.
		cur.pending = ""
		cur.retries = 0
	}
	b.setMessageLocked(id, Message{Kind: "error", Text: "Could not update order " + number + ": " + lastErr.Error()}, errorMessageTTL)
	b.mu.Unlock()
	b.broadcast()
	return lastErr
}

func (b *Board) resolveUpdate(id, number, status string, updated *Order) {
	b.mu.Lock()
	if e, ok := b.entries[id]; ok {
		e.pending = ""
		e.retries = 0
		if b.feedConnected {
			// The live stream delivers the authoritative record; commit the
			// status locally so the card does not flicker back meanwhile.
			e.committed.Status = status
		} else if updated != nil {
			// No stream to reconcile with: adopt the server's answer.
			e.committed = *updated
		} else {
			e.committed.Status = status
		}
		if !Visible(e.committed.Status) {
			delete(b.entries, id)
		}
	}
	b.setMessageLocked(id, Message{Kind: "success", Text: "Order " + number + " updated"}, successMessageTTL)
	b.mu.Unlock()
	b.broadcast()
}

// Advance moves the order one step along the kitchen flow. Ready orders are
// left alone.
func (b *Board) Advance(ctx context.Context, id string) error {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		return ErrUnknownOrder
	}
	current := e.committed.Status
	if e.pending != "" {
		current = e.pending
	}
	b.mu.Unlock()

	next := NextStatus(current)
	if next == "" {
		return nil
	}
	return b.UpdateStatus(ctx, id, next)
}

// Messages returns the unexpired transient messages keyed by order id.
func (b *Board) Messages() map[string]Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	out := make(map[string]Message)
	for id, m := range b.messages {
		if now.Before(m.expiresAt) {
			out[id] = m.Message
		} else {
			delete(b.messages, id)
		}
	}
	return out
}

func (b *Board) setMessageLocked(id string, m Message, ttl time.Duration) {
	b.messages[id] = boardMessage{Message: m, expiresAt: b.now().Add(ttl)}
}

// SetFeedConnected records whether the live feed is delivering events.
func (b *Board) SetFeedConnected(connected bool) {
	b.mu.Lock()
	b.feedConnected = connected
	b.mu.Unlock()
	b.broadcast()
}

// FeedConnected reports the last recorded feed state.
func (b *Board) FeedConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.feedConnected
}

// SetMuted toggles the local notification cue.
func (b *Board) SetMuted(muted bool) {
	b.mu.Lock()
	b.muted = muted
	b.mu.Unlock()
	b.broadcast()
}

func (b *Board) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

func (b *Board) raiseCueLocked(priority string) {
	if b.muted {
		return
	}
	cue := CueFor(priority)
	if b.cueSink != nil {
		b.cueSink.Play(cue)
		return
	}
	b.lastCue = &cue
}

// TakeCue returns and clears the pending cue when no sink is wired.
func (b *Board) TakeCue() *Cue {
	b.mu.Lock()
	defer b.mu.Unlock()
	cue := b.lastCue
	b.lastCue = nil
	return cue
}

// CursorNext moves the selection to the next card in display order,
// selecting the first card when nothing is selected or the selected card
// left the board.
func (b *Board) CursorNext() {
	b.moveCursor(1)
}

// CursorPrev moves the selection to the previous card in display order.
func (b *Board) CursorPrev() {
	b.moveCursor(-1)
}

func (b *Board) moveCursor(delta int) {
	orders := b.Orders()

	b.mu.Lock()
	if len(orders) == 0 {
		b.cursorID = ""
		b.mu.Unlock()
		b.broadcast()
		return
	}
	idx := -1
	for i, o := range orders {
		if o.ID == b.cursorID {
			idx = i
			break
		}
	}
	if idx == -1 {
		b.cursorID = orders[0].ID
		b.mu.Unlock()
		b.broadcast()
		return
	}
	idx += delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(orders) {
		idx = len(orders) - 1
	}
	b.cursorID = orders[idx].ID
	b.mu.Unlock()
	b.broadcast()
}

// Selected returns the currently selected order, if any.
func (b *Board) Selected() (Order, bool) {
	b.mu.Lock()
	id := b.cursorID
	b.mu.Unlock()
	if id == "" {
		return Order{}, false
	}
	for _, o := range b.Orders() {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// CursorCommit advances the selected order exactly one status.
func (b *Board) CursorCommit(ctx context.Context) error {
	o, ok := b.Selected()
	if !ok {
		return nil
	}
	return b.Advance(ctx, o.ID)
}

// Subscribe returns a channel that ticks whenever the board changes, for
// stream handlers. The cancel func releases the subscription.
func (b *Board) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	ch := make(chan struct{}, 1)
	b.subscribers[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
}

func (b *Board) broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SetClock overrides the board's clock and sleep; tests only.
func (b *Board) SetClock(now func() time.Time, sleep func(time.Duration)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	if sleep != nil {
		b.sleep = sleep
	}
}
