package engine

import (
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
)

// eagerAssign is the synchronous single-order assignment path run on order
// creation (spec C8): same candidate rules as assign, but bots are ranked by
// current active-order count (least-loaded wins) rather than distance,
// tie-broken by lowest bot id. If no bot qualifies the order stays PENDING
// for a future tick's assign pass to pick up.
func (e *Engine) eagerAssign(tx *store.Tx, o store.Order, now time.Time) {
	var best store.Bot
	found := false
	bestLoad := -1

	for _, b := range tx.BotsByStatus(lifecycle.BotIdle, lifecycle.BotMoving) {
		used := tx.ActiveOrderCount(b.ID)
		if used >= b.MaxCapacity {
			continue
		}
		if !found || used < bestLoad || (used == bestLoad && b.ID < best.ID) {
			best, bestLoad, found = b, used, true
		}
	}
	if !found {
		return
	}

	if err := tx.AssignOrder(o.ID, best.ID, now); err != nil {
		e.log.Error("eager-assign: illegal transition", "order", o.ID, "bot", best.ID, "error", err)
		return
	}
	if best.Status == lifecycle.BotIdle {
		if err := tx.SetBotStatus(best.ID, lifecycle.BotMoving); err != nil {
			e.log.Error("eager-assign: bot transition", "bot", best.ID, "error", err)
		}
	}
}
