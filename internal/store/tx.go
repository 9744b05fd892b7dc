package store

import (
	"fmt"
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
)

// Tx is the transactional view of the Store handed to an ExecFunc. All of
// its mutating methods operate on a private copy-on-write snapshot; nothing
// is visible to other callers until the enclosing Store.Exec returns
// successfully (spec §5: "a request-handler that mutates entities ... must
// acquire the same exclusive writer lock as the tick").
type Tx struct {
	s *Store

	orders  map[int]Order
	bots    map[int]Bot
	history []OrderStatusHistory

	nextOrderID   int
	nextHistoryID int
}

// Restaurant returns the immutable restaurant record for id. Restaurants are
// loaded once at bootstrap and never mutate, so this reads straight from the
// Store rather than the Tx snapshot.
func (tx *Tx) Restaurant(id int) (Restaurant, bool) {
	return tx.s.Restaurant(id)
}

// Restaurants returns every restaurant, unordered.
func (tx *Tx) Restaurants() []Restaurant {
	return tx.s.Restaurants()
}

// Order returns a copy of the order with the given id.
func (tx *Tx) Order(id int) (Order, bool) {
	o, ok := tx.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.clone(), true
}

// Orders returns a copy of every order, unordered.
func (tx *Tx) Orders() []Order {
	out := make([]Order, 0, len(tx.orders))
	for _, o := range tx.orders {
		out = append(out, o.clone())
	}
	return out
}

// OrdersByStatus returns every order whose status is one of statuses, in
// ascending id order (which, since ids are assigned monotonically, is also
// creation order — relied on by the assignment planner's "enumerated in
// creation order" rule, spec C5).
func (tx *Tx) OrdersByStatus(statuses ...lifecycle.OrderStatus) []Order {
	want := make(map[lifecycle.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]Order, 0, len(tx.orders))
	for _, o := range tx.orders {
		if want[o.Status] {
			out = append(out, o.clone())
		}
	}
	sortOrdersByID(out)
	return out
}

// OrdersByBot returns every order currently assigned to botID, in ascending
// id order.
func (tx *Tx) OrdersByBot(botID int) []Order {
	out := make([]Order, 0)
	for _, o := range tx.orders {
		if o.BotID != nil && *o.BotID == botID {
			out = append(out, o.clone())
		}
	}
	sortOrdersByID(out)
	return out
}

// ActiveOrderCount returns the number of orders in {ASSIGNED, PICKED_UP}
// currently assigned to botID (spec glossary: "Active order").
func (tx *Tx) ActiveOrderCount(botID int) int {
	n := 0
	for _, o := range tx.orders {
		if o.BotID != nil && *o.BotID == botID && o.ActiveOrder() {
			n++
		}
	}
	return n
}

func sortOrdersByID(os []Order) {
	for i := 1; i < len(os); i++ {
		for j := i; j > 0 && os[j-1].ID > os[j].ID; j-- {
			os[j-1], os[j] = os[j], os[j-1]
		}
	}
}

// Bot returns a copy of the bot with the given id.
func (tx *Tx) Bot(id int) (Bot, bool) {
	b, ok := tx.bots[id]
	return b, ok
}

// Bots returns a copy of every bot, in ascending id order.
func (tx *Tx) Bots() []Bot {
	out := make([]Bot, 0, len(tx.bots))
	for _, b := range tx.bots {
		out = append(out, b)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// BotsByStatus returns every bot whose status is one of statuses, in
// ascending id order (relied on by the assignment planner's lowest-id
// tie-break, spec C5).
func (tx *Tx) BotsByStatus(statuses ...lifecycle.BotStatus) []Bot {
	want := make(map[lifecycle.BotStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]Bot, 0, len(tx.bots))
	for _, b := range tx.Bots() {
		if want[b.Status] {
			out = append(out, b)
		}
	}
	return out
}

// CreateOrder persists a new PENDING order and appends its creation to the
// audit trail (spec §3: "one row per transition (including the initial
// create)"). pickupNodeID is fixed from the restaurant and immutable
// thereafter.
func (tx *Tx) CreateOrder(restaurantID, pickupNodeID, deliveryNodeID int, now time.Time) Order {
	o := Order{
		ID:             tx.nextOrderID,
		RestaurantID:   restaurantID,
		PickupNodeID:   pickupNodeID,
		DeliveryNodeID: deliveryNodeID,
		Status:         lifecycle.OrderPending,
		CreatedAt:      now,
	}
	tx.nextOrderID++
	tx.orders[o.ID] = o
	tx.appendHistory(o.ID, "", lifecycle.OrderPending, now)
	return o.clone()
}

// SetOrderDeliveryNode changes an order's delivery node. Legal only while the
// order is PENDING (spec §3).
func (tx *Tx) SetOrderDeliveryNode(id, nodeID int) error {
	o, ok := tx.orders[id]
	if !ok {
		return fmt.Errorf("store: order %d not found", id)
	}
	if o.Status != lifecycle.OrderPending {
		return fmt.Errorf("%w: delivery node is only mutable while PENDING", lifecycle.ErrIllegalTransition)
	}
	o.DeliveryNodeID = nodeID
	tx.orders[id] = o
	return nil
}

// AssignOrder transitions an order PENDING -> ASSIGNED, recording assignedAt
// and the owning bot (spec C5/C8).
func (tx *Tx) AssignOrder(id, botID int, now time.Time) error {
	return tx.transitionOrder(id, lifecycle.OrderAssigned, now, func(o *Order) {
		o.BotID = &botID
		o.AssignedAt = &now
	})
}

// PickUpOrder transitions an order ASSIGNED -> PICKED_UP, recording
// pickedUpAt (spec C7).
func (tx *Tx) PickUpOrder(id int, now time.Time) error {
	return tx.transitionOrder(id, lifecycle.OrderPickedUp, now, func(o *Order) {
		o.PickedUpAt = &now
	})
}

// DeliverOrder transitions an order PICKED_UP -> DELIVERED, recording
// deliveredAt (spec C7).
func (tx *Tx) DeliverOrder(id int, now time.Time) error {
	return tx.transitionOrder(id, lifecycle.OrderDelivered, now, func(o *Order) {
		o.DeliveredAt = &now
	})
}

// CancelOrder transitions an order to CANCELLED. Legal only from {PENDING,
// ASSIGNED} (spec §3).
func (tx *Tx) CancelOrder(id int, now time.Time) error {
	return tx.transitionOrder(id, lifecycle.OrderCancelled, now, func(o *Order) {})
}

// ForceOrderStatus drives an order directly to next, the operator-forced
// transition PUT /api/orders/{id} accepts alongside delivery-node edits
// (spec §6.2, mirroring original_source's update_order accepting
// update_data.status). Validated against the same lifecycle table as every
// other transition, so moving out of {DELIVERED, CANCELLED} is always
// rejected with lifecycle.ErrIllegalTransition.
func (tx *Tx) ForceOrderStatus(id int, next lifecycle.OrderStatus, now time.Time) error {
	return tx.transitionOrder(id, next, now, func(o *Order) {
		switch next {
		case lifecycle.OrderAssigned:
			o.AssignedAt = &now
		case lifecycle.OrderPickedUp:
			o.PickedUpAt = &now
		case lifecycle.OrderDelivered:
			o.DeliveredAt = &now
		}
	})
}

// transitionOrder validates the transition against the lifecycle table
// (spec C3), applies mut, and appends the audit row. An illegal transition
// returns lifecycle.ErrIllegalTransition and leaves the order untouched — it
// is the caller's responsibility to skip the offending entity rather than
// abort the whole transaction (spec §4.9), except where the caller wants the
// whole request to fail (e.g. the HTTP DELETE handler), which it signals by
// propagating the error out of the ExecFunc.
func (tx *Tx) transitionOrder(id int, next lifecycle.OrderStatus, now time.Time, mut func(*Order)) error {
	o, ok := tx.orders[id]
	if !ok {
		return fmt.Errorf("store: order %d not found", id)
	}
	if !lifecycle.ValidOrderTransition(o.Status, next) {
		return fmt.Errorf("%w: order %d %s -> %s", lifecycle.ErrIllegalTransition, id, o.Status, next)
	}
	old := o.Status
	mut(&o)
	o.Status = next
	tx.orders[id] = o
	tx.appendHistory(id, old, next, now)
	return nil
}

func (tx *Tx) appendHistory(orderID int, old, next lifecycle.OrderStatus, now time.Time) {
	tx.nextHistoryID++
	tx.history = append(tx.history, OrderStatusHistory{
		ID:        tx.nextHistoryID,
		OrderID:   orderID,
		OldStatus: old,
		NewStatus: next,
		ChangedAt: now,
	})
}

// OrderHistory returns the audit trail for orderID, in changedAt order
// (spec §3).
func (tx *Tx) OrderHistory(orderID int) []OrderStatusHistory {
	out := make([]OrderStatusHistory, 0)
	for _, h := range tx.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out
}

// SetBotStatus validates and applies a bot status transition (spec C3).
func (tx *Tx) SetBotStatus(id int, next lifecycle.BotStatus) error {
	b, ok := tx.bots[id]
	if !ok {
		return fmt.Errorf("store: bot %d not found", id)
	}
	if !lifecycle.ValidBotTransition(b.Status, next) {
		return fmt.Errorf("%w: bot %d %s -> %s", lifecycle.ErrIllegalTransition, id, b.Status, next)
	}
	b.Status = next
	tx.bots[id] = b
	return nil
}

// SetBotNode moves a bot to nodeID. Called once per tick per MOVING bot by
// the mover (spec C7); the caller is responsible for checking the edge it
// just crossed is not blocked.
func (tx *Tx) SetBotNode(id, nodeID int) error {
	b, ok := tx.bots[id]
	if !ok {
		return fmt.Errorf("store: bot %d not found", id)
	}
	b.CurrentNodeID = nodeID
	tx.bots[id] = b
	return nil
}

// Reset cancels every non-terminal order and returns every bot to IDLE at
// stationNodeID (spec §6.2's POST /api/simulation/reset). It returns the
// number of orders cancelled.
func (tx *Tx) Reset(stationNodeID int, now time.Time) int {
	cancelled := 0
	for id, o := range tx.orders {
		if o.Status == lifecycle.OrderPending || o.Status == lifecycle.OrderAssigned || o.Status == lifecycle.OrderPickedUp {
			old := o.Status
			o.Status = lifecycle.OrderCancelled
			tx.orders[id] = o
			tx.appendHistory(id, old, lifecycle.OrderCancelled, now)
			cancelled++
		}
	}
	for id, b := range tx.bots {
		b.Status = lifecycle.BotIdle
		b.CurrentNodeID = stationNodeID
		tx.bots[id] = b
	}
	return cancelled
}
