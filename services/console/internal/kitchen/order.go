package kitchen

import (
	"sort"
	"time"

	"github.com/savoria/savoria/pkg/enums/orderstatus"
	"github.com/savoria/savoria/pkg/event"
)

// Order is one order card on the kitchen display.
type Order struct {
	ID           string      `json:"_id"`
	Number       string      `json:"orderNumber"`
	Type         string      `json:"orderType"`
	Status       string      `json:"status"`
	Priority     string      `json:"priority,omitempty"`
	TableNumber  string      `json:"tableNumber,omitempty"`
	CustomerName string      `json:"customerName,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	PrepMinutes  int         `json:"estimatedPrepTime,omitempty"`
	Items        []OrderItem `json:"items"`
	CreatedAt    time.Time   `json:"createdAt"`
}

type OrderItem struct {
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	Status         string   `json:"status,omitempty"`
	Instructions   string   `json:"specialInstructions,omitempty"`
	Customizations []string `json:"customizations,omitempty"`
}

// Visible reports whether an order in the given status belongs on the board.
func Visible(status string) bool {
	for _, s := range orderstatus.Kitchen {
		if s.Code() == status {
			return true
		}
	}
	return false
}

// NextStatus returns the next board status, or empty when the order is
// already ready (the display hands it off from there).
func NextStatus(status string) string {
	switch status {
	case orderstatus.Statuses.Confirmed.Code():
		return orderstatus.Statuses.Preparing.Code()
	case orderstatus.Statuses.Preparing.Code():
		return orderstatus.Statuses.Ready.Code()
	default:
		return ""
	}
}

func statusRank(status string) int {
	for i, s := range orderstatus.Kitchen {
		if s.Code() == status {
			return i
		}
	}
	return len(orderstatus.Kitchen)
}

// sortDisplay orders the slice the way the board renders it: new orders
// first, then preparing, then ready, oldest first within each group.
func sortDisplay(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		ri, rj := statusRank(orders[i].Status), statusRank(orders[j].Status)
		if ri != rj {
			return ri < rj
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

// fromSnapshot converts a feed payload into a board order.
func fromSnapshot(s event.OrderSnapshot) Order {
	items := make([]OrderItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, OrderItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			Status:         it.Status,
			Instructions:   it.Instructions,
			Customizations: it.Customizations,
		})
	}
	return Order{
		ID:           s.ID,
		Number:       s.Number,
		Type:         s.Type,
		Status:       s.Status,
		Priority:     s.Priority,
		TableNumber:  s.TableNumber,
		CustomerName: s.CustomerName,
		Notes:        s.Notes,
		PrepMinutes:  s.PrepMinutes,
		Items:        items,
		CreatedAt:    s.CreatedAt,
	}
}
