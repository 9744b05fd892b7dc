package engine

import (
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/pathfind"
	"github.com/ron808/eagrouter/internal/store"
)

// assign is the assignment planner (spec C5). It enumerates PENDING orders
// in creation order and, for each one not throttled, assigns it to the
// candidate bot minimizing path length to the pickup node, tie-broken by
// lowest bot id. It returns the number of orders assigned this tick.
func (e *Engine) assign(tx *store.Tx, now time.Time) int {
	pending := tx.OrdersByStatus(lifecycle.OrderPending)
	tentative := make(map[int]int, len(pending))
	assigned := 0

	for _, o := range pending {
		if !e.tickWindow(o.RestaurantID).Allow(e.tickCount) {
			continue
		}

		var best store.Bot
		found := false
		bestLen := -1
		for _, b := range tx.BotsByStatus(lifecycle.BotIdle, lifecycle.BotMoving) {
			used := tx.ActiveOrderCount(b.ID) + tentative[b.ID]
			if used >= b.MaxCapacity {
				continue
			}
			length, ok := pathfind.PathLength(e.grid, b.CurrentNodeID, o.PickupNodeID)
			if !ok {
				continue
			}
			if !found || length < bestLen || (length == bestLen && b.ID < best.ID) {
				best, bestLen, found = b, length, true
			}
		}
		if !found {
			continue
		}

		if err := tx.AssignOrder(o.ID, best.ID, now); err != nil {
			e.log.Error("assign: illegal transition", "order", o.ID, "bot", best.ID, "error", err)
			continue
		}
		if best.Status == lifecycle.BotIdle {
			if err := tx.SetBotStatus(best.ID, lifecycle.BotMoving); err != nil {
				e.log.Error("assign: bot transition", "bot", best.ID, "error", err)
			}
		}
		e.tickWindow(o.RestaurantID).Admit(e.tickCount)
		tentative[best.ID]++
		assigned++
	}
	return assigned
}
