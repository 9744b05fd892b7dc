package engine

import (
	"github.com/ron808/eagrouter/internal/grid"
	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/pathfind"
	"github.com/ron808/eagrouter/internal/store"
)

// planRoutes is the route planner (spec C6). For every bot in {IDLE, MOVING}
// with no current engine-local target, it selects the next target (pickup
// before deliver, nearest-first, tie-broken by lowest order id) or a trip
// back to the station if the bot is idle-and-empty, and computes its route.
func (e *Engine) planRoutes(tx *store.Tx) {
	for _, b := range tx.BotsByStatus(lifecycle.BotIdle, lifecycle.BotMoving) {
		if _, hasTarget := e.targets[b.ID]; hasTarget {
			continue
		}

		orders := tx.OrdersByBot(b.ID)
		var assigned, pickedUp []store.Order
		for _, o := range orders {
			switch o.Status {
			case lifecycle.OrderAssigned:
				assigned = append(assigned, o)
			case lifecycle.OrderPickedUp:
				pickedUp = append(pickedUp, o)
			}
		}

		if len(assigned) == 0 && len(pickedUp) == 0 {
			if b.CurrentNodeID == e.stationNodeID {
				continue
			}
			e.route(tx, b, e.stationNodeID, ActionStation, 0)
			continue
		}

		var targetOrder store.Order
		var targetNode int
		var action Action
		if len(assigned) > 0 {
			targetOrder, targetNode = nearestByPath(e.grid, b.CurrentNodeID, assigned, func(o store.Order) int { return o.PickupNodeID })
			action = ActionPickup
		} else {
			targetOrder, targetNode = nearestByPath(e.grid, b.CurrentNodeID, pickedUp, func(o store.Order) int { return o.DeliveryNodeID })
			action = ActionDeliver
		}
		e.route(tx, b, targetNode, action, targetOrder.ID)
	}
}

// nearestByPath picks the order in orders whose nodeOf(order) is nearest to
// from by path length, tie-broken by lowest order id (spec C6). It assumes
// orders is non-empty; orders whose target node is unreachable are skipped,
// falling back to the lowest-id order if every node is unreachable (the
// route computed from it will itself fail and the tick will simply skip the
// bot this round, per spec §4.9).
func nearestByPath(g *grid.Graph, from int, orders []store.Order, nodeOf func(store.Order) int) (store.Order, int) {
	best := orders[0]
	bestNode := nodeOf(best)
	bestLen, ok := pathfind.PathLength(g, from, bestNode)
	for _, o := range orders[1:] {
		node := nodeOf(o)
		length, reachable := pathfind.PathLength(g, from, node)
		switch {
		case !ok && reachable:
			best, bestNode, bestLen, ok = o, node, length, true
		case ok && reachable && (length < bestLen || (length == bestLen && o.ID < best.ID)):
			best, bestNode, bestLen = o, node, length
		case !ok && !reachable && o.ID < best.ID:
			best, bestNode = o, node
		}
	}
	return best, bestNode
}

// route computes a path from the bot's current node to target and, if
// reachable, installs it as the bot's engine-local route and target,
// transitioning the bot to MOVING. If unreachable, the bot is left
// untouched this tick (spec §4.9: PathUnreachable degrades locally, no
// propagation).
func (e *Engine) route(tx *store.Tx, b store.Bot, target int, action Action, orderID int) {
	path, ok := pathfind.FindPath(e.grid, b.CurrentNodeID, target)
	if !ok {
		return
	}
	e.routes[b.ID] = path[1:]
	e.targets[b.ID] = Target{NodeID: target, Action: action, OrderID: orderID}
	if b.Status != lifecycle.BotMoving {
		if err := tx.SetBotStatus(b.ID, lifecycle.BotMoving); err != nil {
			e.log.Error("route: bot transition", "bot", b.ID, "error", err)
		}
	}
}
