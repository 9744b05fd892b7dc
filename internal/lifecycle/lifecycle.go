// Package lifecycle encodes the legal (current, next) transition tables for
// orders and bots (spec C3). Every mutation of an order's or bot's status
// must be checked against these tables first; a transition outside the table
// is a programmer error, not a user error, and must never corrupt other
// entities — callers report it and skip the offending entity.
package lifecycle

import "errors"

// ErrIllegalTransition is returned when a requested status change is not in
// the legal transition table for the entity kind.
var ErrIllegalTransition = errors.New("lifecycle: illegal transition")

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderAssigned  OrderStatus = "ASSIGNED"
	OrderPickedUp  OrderStatus = "PICKED_UP"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// orderTransitions is the legal (current -> {next...}) table for orders.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderAssigned: true, OrderCancelled: true},
	OrderAssigned:  {OrderPickedUp: true, OrderCancelled: true},
	OrderPickedUp:  {OrderDelivered: true},
	OrderDelivered: {},
	OrderCancelled: {},
}

// ValidOrderTransition reports whether moving an order from cur to next is
// legal.
func ValidOrderTransition(cur, next OrderStatus) bool {
	return orderTransitions[cur][next]
}

// BotStatus is the lifecycle state of a Bot.
type BotStatus string

const (
	BotIdle       BotStatus = "IDLE"
	BotMoving     BotStatus = "MOVING"
	BotPickingUp  BotStatus = "PICKING_UP"
	BotDelivering BotStatus = "DELIVERING"
)

// botTransitions is the legal (current -> {next...}) table for bots. Every
// state can return to IDLE or MOVING (the arrival handler's recomputation
// step), and PICKING_UP/DELIVERING are transient states entered only from
// MOVING on arrival.
var botTransitions = map[BotStatus]map[BotStatus]bool{
	BotIdle:       {BotMoving: true},
	BotMoving:     {BotIdle: true, BotPickingUp: true, BotDelivering: true, BotMoving: true},
	BotPickingUp:  {BotIdle: true, BotMoving: true},
	BotDelivering: {BotIdle: true, BotMoving: true},
}

// ValidBotTransition reports whether moving a bot from cur to next is legal.
func ValidBotTransition(cur, next BotStatus) bool {
	if cur == next {
		// Re-affirming the current state (e.g. MOVING -> MOVING while a
		// route is in progress) is always legal and a no-op.
		return true
	}
	return botTransitions[cur][next]
}
