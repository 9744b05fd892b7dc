package store

import (
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
)

// Restaurant is immutable after bootstrap load (spec §3).
type Restaurant struct {
	ID     int
	Name   string
	NodeID int
}

// Bot is the mutable record of a single delivery robot (spec §3).
type Bot struct {
	ID            int
	Name          string
	CurrentNodeID int
	Status        lifecycle.BotStatus
	MaxCapacity   int
}

// Order is the mutable record of a single customer order (spec §3).
type Order struct {
	ID             int
	RestaurantID   int
	PickupNodeID   int
	DeliveryNodeID int
	BotID          *int
	Status         lifecycle.OrderStatus

	CreatedAt   time.Time
	AssignedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
}

// ActiveOrder reports whether the order counts toward a bot's active-order
// capacity (spec glossary: "Active order").
func (o Order) ActiveOrder() bool {
	return o.Status == lifecycle.OrderAssigned || o.Status == lifecycle.OrderPickedUp
}

// OrderStatusHistory is one append-only audit row (spec §3). Rows are
// produced automatically by the store on every order status change — the
// store, not the engine, owns the audit trail (spec §6.1).
type OrderStatusHistory struct {
	ID        int
	OrderID   int
	OldStatus lifecycle.OrderStatus
	NewStatus lifecycle.OrderStatus
	ChangedAt time.Time
}

// clone returns a deep copy of an Order so callers reading through Tx never
// observe mutations made after the read.
func (o Order) clone() Order {
	cp := o
	if o.BotID != nil {
		id := *o.BotID
		cp.BotID = &id
	}
	if o.AssignedAt != nil {
		t := *o.AssignedAt
		cp.AssignedAt = &t
	}
	if o.PickedUpAt != nil {
		t := *o.PickedUpAt
		cp.PickedUpAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return cp
}
