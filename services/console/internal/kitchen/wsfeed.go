package kitchen

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/gorilla/websocket"

	"github.com/savoria/savoria/pkg/event"
)

// roomMessage is the join/leave frame the order feed expects before it
// starts delivering a tenant's kitchen events.
type roomMessage struct {
	Event    string `json:"event"`
	TenantID string `json:"tenant_id"`
}

// WSFeed is a websocket client for the platform's kitchen order feed. It
// joins the tenant's kitchen room and reconnects with exponential backoff.
type WSFeed struct {
	url      string
	tenantID string
	sink     Sink
	logger   apt.Logger
	dialer   *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewWSFeed(url, tenantID string, sink Sink, logger apt.Logger) *WSFeed {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WSFeed{
		url:      url,
		tenantID: tenantID,
		sink:     sink,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins connecting in the background; it never blocks startup.
func (f *WSFeed) Start(ctx context.Context) error {
	f.logger.Info("starting kitchen order feed", "url", f.url)
	go f.connectWithRetry()
	return nil
}

func (f *WSFeed) connectWithRetry() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-f.ctx.Done():
			f.logger.Info("kitchen order feed shutdown, stopping connection attempts")
			return
		default:
		}

		conn, _, err := f.dialer.DialContext(f.ctx, f.url, nil)
		if err != nil {
			f.logger.Error("failed to connect to kitchen order feed", "error", err, "retry_in", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		join := roomMessage{Event: "join-kitchen", TenantID: f.tenantID}
		if err := conn.WriteJSON(join); err != nil {
			f.logger.Error("failed to join kitchen room", "error", err, "retry_in", backoff)
			conn.Close()
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		f.mu.Lock()
		f.conn = conn
		f.connected = true
		f.mu.Unlock()
		f.sink.SetFeedConnected(true)
		f.logger.Info("connected to kitchen order feed")

		// Reset backoff on successful connection
		backoff = 1 * time.Second

		// Blocks until disconnect.
		f.readLoop(conn)

		f.mu.Lock()
		f.connected = false
		f.conn = nil
		f.mu.Unlock()
		f.sink.SetFeedConnected(false)
	}
}

func (f *WSFeed) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
			default:
				f.logger.Error("kitchen order feed read failed", "error", err)
			}
			return
		}

		var evt event.KitchenOrderEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("cannot decode kitchen feed event", "error", err)
			continue
		}
		f.sink.ApplyEvent(evt)
	}
}

// Connected reports whether the feed currently has a live connection.
func (f *WSFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Stop leaves the kitchen room and closes the connection.
func (f *WSFeed) Stop(ctx context.Context) error {
	f.logger.Info("stopping kitchen order feed")
	f.cancel()

	f.mu.Lock()
	conn := f.conn
	f.conn = nil
	f.connected = false
	f.mu.Unlock()

	if conn != nil {
		leave := roomMessage{Event: "leave-kitchen", TenantID: f.tenantID}
		if err := conn.WriteJSON(leave); err != nil {
			f.logger.Debug("could not send leave message", "error", err)
		}
		return conn.Close()
	}
	return nil
}
