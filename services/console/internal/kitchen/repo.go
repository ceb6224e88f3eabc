package kitchen

import (
	"context"
	"errors"
)

// ErrUnknownOrder is returned when a status update targets an order that is
// not on the board.
var ErrUnknownOrder = errors.New("order not on the board")

// OrderRepository is the order data access contract against the platform
// API.
type OrderRepository interface {
	// KitchenOrders fetches the orders currently relevant to the kitchen.
	KitchenOrders(ctx context.Context) ([]Order, error)
	// UpdateStatus transitions one order and returns the server's updated
	// representation when it provides one.
	UpdateStatus(ctx context.Context, id, status, notes string) (*Order, error)
}
