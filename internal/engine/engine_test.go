package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ron808/eagrouter/internal/grid"
	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
)

// line of 5 nodes: 1-2-3-4-5, restaurant at 1, delivery point at 5, station at 3.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	nodes := []grid.Node{
		{ID: 1, X: 0, Y: 0},
		{ID: 2, X: 1, Y: 0},
		{ID: 3, X: 2, Y: 0},
		{ID: 4, X: 3, Y: 0},
		{ID: 5, X: 4, Y: 0, IsDeliveryPoint: true},
	}
	g, err := grid.New(nodes, nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}

	st, err := store.Config{}.Open()
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	st.SeedRestaurants([]store.Restaurant{{ID: 1, Name: "RAMEN", NodeID: 1}})
	st.SeedBots([]store.Bot{{ID: 1, Name: "Bot-1", CurrentNodeID: 3, Status: lifecycle.BotIdle, MaxCapacity: 3}})

	e := Config{
		Store:                   st,
		Grid:                    g,
		StationNodeID:           3,
		ThrottleLimit:           3,
		ThrottleWindowTicks:     10,
		ThrottleWindowWallClock: time.Minute,
	}.New()
	t.Cleanup(e.Close)
	return e
}

func TestCreateOrderEagerlyAssignsIdleBot(t *testing.T) {
	e := newTestEngine(t)
	o, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != lifecycle.OrderAssigned {
		t.Fatalf("order status = %s, want ASSIGNED (eager-assign to the only idle bot)", o.Status)
	}
	if o.BotID == nil || *o.BotID != 1 {
		t.Fatalf("order bot = %v, want bot 1", o.BotID)
	}
}

func TestCreateOrderRejectsNonDeliveryNode(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateOrder(1, 3, time.Now()); err == nil {
		t.Fatal("expected error creating an order targeting a non-delivery-point node")
	}
}

func TestCreateOrderRejectsUnknownRestaurant(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.CreateOrder(99, 5, time.Now()); err == nil {
		t.Fatal("expected error creating an order for an unknown restaurant")
	}
}

func TestFullTickCycleDeliversOrder(t *testing.T) {
	e := newTestEngine(t)
	e.Start()

	o, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// Bot starts at node 3 (station). Route to pickup (node 1) is 2 hops,
	// then pickup->delivery (node 5) is 4 hops: 6 ticks to delivery, plus
	// slack for the pickup/deliver action ticks.
	delivered := false
	for i := 0; i < 10 && !delivered; i++ {
		if _, err := e.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		cur, ok := e.Order(o.ID)
		if !ok {
			t.Fatalf("order %d vanished", o.ID)
		}
		if cur.Status == lifecycle.OrderDelivered {
			delivered = true
		}
	}
	if !delivered {
		t.Fatal("order was not delivered within 10 ticks")
	}
}

func TestResetCancelsAndReturnsToStation(t *testing.T) {
	e := newTestEngine(t)
	e.Start()
	o, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	cancelled, err := e.Reset()
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("Reset cancelled = %d, want 1", cancelled)
	}
	if e.Running() {
		t.Fatal("Reset should stop the simulation")
	}
	cur, _ := e.Order(o.ID)
	if cur.Status != lifecycle.OrderCancelled {
		t.Fatalf("order status after reset = %s, want CANCELLED", cur.Status)
	}
	for _, b := range e.BotPositions() {
		if b.CurrentNodeID != 3 || b.Status != lifecycle.BotIdle {
			t.Fatalf("bot after reset = %+v, want IDLE at node 3", b)
		}
	}
}

// newTestEngineWithCapacity is newTestEngine with the single bot's
// MaxCapacity overridden, for capacity-cap scenarios.
func newTestEngineWithCapacity(t *testing.T, capacity int) *Engine {
	t.Helper()
	nodes := []grid.Node{
		{ID: 1, X: 0, Y: 0},
		{ID: 2, X: 1, Y: 0},
		{ID: 3, X: 2, Y: 0},
		{ID: 4, X: 3, Y: 0},
		{ID: 5, X: 4, Y: 0, IsDeliveryPoint: true},
	}
	g, err := grid.New(nodes, nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}

	st, err := store.Config{}.Open()
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	st.SeedRestaurants([]store.Restaurant{{ID: 1, Name: "RAMEN", NodeID: 1}})
	st.SeedBots([]store.Bot{{ID: 1, Name: "Bot-1", CurrentNodeID: 3, Status: lifecycle.BotIdle, MaxCapacity: capacity}})

	e := Config{
		Store:                   st,
		Grid:                    g,
		StationNodeID:           3,
		ThrottleLimit:           10,
		ThrottleWindowTicks:     10,
		ThrottleWindowWallClock: time.Minute,
	}.New()
	t.Cleanup(e.Close)
	return e
}

// TestEagerAssignRespectsBotCapacity is spec §8 scenario S3: a bot already
// holding max_capacity active orders is not a candidate for another one, so
// an order created while the only bot is already full stays PENDING.
func TestEagerAssignRespectsBotCapacity(t *testing.T) {
	e := newTestEngineWithCapacity(t, 1)
	now := time.Now()

	first, err := e.CreateOrder(1, 5, now)
	if err != nil {
		t.Fatalf("CreateOrder (first): %v", err)
	}
	if first.Status != lifecycle.OrderAssigned {
		t.Fatalf("first order status = %s, want ASSIGNED", first.Status)
	}

	second, err := e.CreateOrder(1, 5, now)
	if err != nil {
		t.Fatalf("CreateOrder (second): %v", err)
	}
	if second.Status != lifecycle.OrderPending {
		t.Fatalf("second order status = %s, want PENDING (bot is at capacity)", second.Status)
	}
	if second.BotID != nil {
		t.Fatalf("second order bot = %v, want nil (not assigned)", second.BotID)
	}
}

// TestCancelOrderFreesBotToIdle is spec §8 scenario S5: cancelling an
// assigned bot's only active order returns that bot to IDLE immediately,
// without waiting for the next tick's arrival handling.
func TestCancelOrderFreesBotToIdle(t *testing.T) {
	e := newTestEngineWithCapacity(t, 1)
	o, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.Status != lifecycle.OrderAssigned || o.BotID == nil {
		t.Fatalf("order = %+v, want eagerly ASSIGNED to a bot", o)
	}
	botID := *o.BotID

	positions := e.BotPositions()
	if len(positions) != 1 || positions[0].Status != lifecycle.BotMoving {
		t.Fatalf("bot after assignment = %+v, want MOVING", positions)
	}

	if err := e.CancelOrder(o.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	cur, ok := e.Order(o.ID)
	if !ok || cur.Status != lifecycle.OrderCancelled {
		t.Fatalf("order after cancel = %+v, want CANCELLED", cur)
	}
	for _, b := range e.BotPositions() {
		if b.ID == botID && b.Status != lifecycle.BotIdle {
			t.Fatalf("bot %d after cancel = %s, want IDLE", b.ID, b.Status)
		}
	}

	// The bot should be an eager-assign candidate again.
	next, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder after cancel: %v", err)
	}
	if next.Status != lifecycle.OrderAssigned || next.BotID == nil || *next.BotID != botID {
		t.Fatalf("order after freed bot = %+v, want eagerly ASSIGNED to bot %d", next, botID)
	}
}

func TestSetOrderStatusRejectsTerminalStates(t *testing.T) {
	e := newTestEngine(t)
	o, err := e.CreateOrder(1, 5, time.Now())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if err := e.CancelOrder(o.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if err := e.SetOrderStatus(o.ID, lifecycle.OrderAssigned); !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("SetOrderStatus on a CANCELLED order = %v, want ErrIllegalTransition", err)
	}
}

func TestOnTickFiresForManualTick(t *testing.T) {
	e := newTestEngine(t)
	var fired int
	e.OnTick(func(TickResult) { fired++ })
	e.Start()

	if _, err := e.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fired != 1 {
		t.Fatalf("OnTick fired %d times for the manual tick, want 1", fired)
	}
}

// TestOnTickFiresForBackgroundLoop is the maintainer-flagged gap: an
// Engine whose background TickInterval loop (not the manual
// POST /api/simulation/tick handler) is producing ticks must still invoke
// OnTick, or the SSE stream goes silent under "press start and let it run".
func TestOnTickFiresForBackgroundLoop(t *testing.T) {
	nodes := []grid.Node{
		{ID: 1, X: 0, Y: 0},
		{ID: 2, X: 1, Y: 0, IsDeliveryPoint: true},
	}
	g, err := grid.New(nodes, nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	st, err := store.Config{}.Open()
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	st.SeedBots([]store.Bot{{ID: 1, Name: "Bot-1", CurrentNodeID: 1, Status: lifecycle.BotIdle, MaxCapacity: 1}})

	e := Config{
		Store:                   st,
		Grid:                    g,
		StationNodeID:           1,
		ThrottleLimit:           1,
		ThrottleWindowTicks:     1,
		ThrottleWindowWallClock: time.Minute,
		TickInterval:            time.Millisecond,
	}.New()
	t.Cleanup(e.Close)

	fired := make(chan struct{}, 1)
	e.OnTick(func(TickResult) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	e.Start()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnTick never fired for a background-loop tick")
	}
}

func TestThrottleLimitsEagerAssignAdmission(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !e.WallClockAllow(1, now) {
			t.Fatalf("admission %d should be allowed under the limit", i)
		}
		if _, err := e.CreateOrder(1, 5, now); err != nil {
			t.Fatalf("CreateOrder %d: %v", i, err)
		}
	}
	if e.WallClockAllow(1, now) {
		t.Fatal("fourth admission within the window should be refused")
	}
}
