package engine

import (
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
)

// moveAndArrive is the mover and arrival handler (spec C7). Every MOVING bot
// advances exactly one edge of its engine-local route, then, if it has
// reached its current target, the arrival is resolved: orders matching the
// target's chosen action are batch-transitioned, the route/target are
// cleared, and the bot's status is recomputed from its remaining active
// orders.
func (e *Engine) moveAndArrive(tx *store.Tx, now time.Time) (moved, pickedUp, delivered int) {
	for _, b := range tx.BotsByStatus(lifecycle.BotMoving) {
		current := b.CurrentNodeID
		if route := e.routes[b.ID]; len(route) > 0 {
			next := route[0]
			if err := tx.SetBotNode(b.ID, next); err != nil {
				e.log.Error("move: set bot node", "bot", b.ID, "error", err)
				continue
			}
			e.routes[b.ID] = route[1:]
			current = next
			moved++
		}

		target, hasTarget := e.targets[b.ID]
		if !hasTarget || current != target.NodeID {
			continue
		}

		switch target.Action {
		case ActionPickup:
			for _, o := range tx.OrdersByBot(b.ID) {
				if o.Status == lifecycle.OrderAssigned && o.PickupNodeID == current {
					if err := tx.PickUpOrder(o.ID, now); err != nil {
						e.log.Error("arrival: pick up", "order", o.ID, "error", err)
						continue
					}
					pickedUp++
				}
			}
			e.setBotStatus(tx, b.ID, lifecycle.BotPickingUp)
		case ActionDeliver:
			for _, o := range tx.OrdersByBot(b.ID) {
				if o.Status == lifecycle.OrderPickedUp && o.DeliveryNodeID == current {
					if err := tx.DeliverOrder(o.ID, now); err != nil {
						e.log.Error("arrival: deliver", "order", o.ID, "error", err)
						continue
					}
					delivered++
				}
			}
			e.setBotStatus(tx, b.ID, lifecycle.BotDelivering)
		case ActionStation:
			e.setBotStatus(tx, b.ID, lifecycle.BotIdle)
		}

		delete(e.routes, b.ID)
		delete(e.targets, b.ID)

		if tx.ActiveOrderCount(b.ID) > 0 {
			e.setBotStatus(tx, b.ID, lifecycle.BotMoving)
		} else {
			e.setBotStatus(tx, b.ID, lifecycle.BotIdle)
		}
	}
	return moved, pickedUp, delivered
}

func (e *Engine) setBotStatus(tx *store.Tx, botID int, status lifecycle.BotStatus) {
	if err := tx.SetBotStatus(botID, status); err != nil {
		e.log.Error("bot transition", "bot", botID, "status", status, "error", err)
	}
}
