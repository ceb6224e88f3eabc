package event

import "time"

const (
	KitchenOrdersTopic = "kitchen.orders"

	EventKitchenOrderNew       = "kitchen.order.new"
	EventKitchenOrderUpdated   = "kitchen.order.updated"
	EventKitchenOrderCancelled = "kitchen.order.cancelled"
)

// KitchenOrderEvent is the payload delivered on the kitchen order feed, both
// over the websocket rooms and on the message bus bridge.
type KitchenOrderEvent struct {
	EventType  string        `json:"event_type"`
	OccurredAt time.Time     `json:"occurred_at"`
	TenantID   string        `json:"tenant_id,omitempty"`
	BranchID   string        `json:"branch_id,omitempty"`
	Order      OrderSnapshot `json:"order"`
}

// OrderSnapshot carries enough denormalized order data for a display to
// render a card without a follow-up fetch.
type OrderSnapshot struct {
	ID           string              `json:"_id"`
	Number       string              `json:"orderNumber"`
	Type         string              `json:"orderType"`
	Status       string              `json:"status"`
	Priority     string              `json:"priority,omitempty"`
	TableNumber  string              `json:"tableNumber,omitempty"`
	CustomerName string              `json:"customerName,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	PrepMinutes  int                 `json:"estimatedPrepTime,omitempty"`
	Items        []OrderItemSnapshot `json:"items"`
	CreatedAt    time.Time           `json:"createdAt"`
}

type OrderItemSnapshot struct {
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	Status         string   `json:"status,omitempty"`
	Instructions   string   `json:"specialInstructions,omitempty"`
	Customizations []string `json:"customizations,omitempty"`
}
