// Package engine implements the tick-driven simulation core (spec C5-C8):
// assignment planning, route planning, movement/arrival, and the eager
// single-order assignment path run on order creation. Exactly one Engine
// exists per running simulation; all of its mutating entry points serialize
// on a single mutex, the same "single exclusive writer lock" spec §5
// requires between the tick and any request handler that mutates entities.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ron808/eagrouter/internal/grid"
	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
	"github.com/ron808/eagrouter/internal/throttle"
)

// Sentinel errors for the HTTP boundary to map via errors.Is (spec §7).
// ErrIllegalTransition is lifecycle.ErrIllegalTransition, re-exported so
// callers only need to import this package.
var (
	ErrNotFound          = errors.New("engine: not found")
	ErrInvalidInput      = errors.New("engine: invalid input")
	ErrIllegalTransition = lifecycle.ErrIllegalTransition
)

// Action is a bot's current target action (spec C6).
type Action string

const (
	ActionPickup  Action = "PICKUP"
	ActionDeliver Action = "DELIVER"
	ActionStation Action = "STATION"
)

// Target is the engine-local current destination of a MOVING bot. Engine
// state, not store state — spec §9: "routes are derivable at any time from
// (bot.current_node, active orders); persistence of the route is an
// optimization, not state of record."
type Target struct {
	NodeID  int
	Action  Action
	OrderID int
}

// TickResult is the per-tick counters the HTTP POST /api/simulation/tick
// handler returns (spec §6.2).
type TickResult struct {
	Ran             bool
	TickCount       int64
	OrdersAssigned  int
	OrdersPickedUp  int
	OrdersDelivered int
	BotsMoved       int
}

// Config configures a new Engine.
type Config struct {
	Log   *slog.Logger
	Store *store.Store
	Grid  *grid.Graph

	StationNodeID int

	ThrottleLimit           int
	ThrottleWindowTicks     int64
	ThrottleWindowWallClock time.Duration

	// TickInterval drives the background ticker loop. A zero value disables
	// the timer loop entirely; ticks then only happen via Tick.
	TickInterval time.Duration
}

// Engine owns the tick counter, the per-bot engine-local route/target maps,
// and the in-tick restaurant throttle windows (spec §9: "express as instance
// fields of a single engine object owned by the service; avoid true global
// singletons so tests can create fresh engines per case").
type Engine struct {
	log   *slog.Logger
	store *store.Store
	grid  *grid.Graph

	stationNodeID int
	throttleLimit int
	windowTicks   int64
	windowWall    time.Duration
	tickInterval  time.Duration

	mu           sync.Mutex
	running      bool
	tickCount    int64
	routes       map[int][]int
	targets      map[int]Target
	tickWindows  map[int]*throttle.Window[int64, int64]
	wallWindows  map[int]*throttle.Window[time.Time, time.Duration]

	closing chan struct{}
	closed  chan struct{}

	onTick func(TickResult)
}

// New creates an Engine and starts its background ticker loop, if
// TickInterval is non-zero.
func (c Config) New() *Engine {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	e := &Engine{
		log:           c.Log,
		store:         c.Store,
		grid:          c.Grid,
		stationNodeID: c.StationNodeID,
		throttleLimit: c.ThrottleLimit,
		windowTicks:   c.ThrottleWindowTicks,
		windowWall:    c.ThrottleWindowWallClock,
		tickInterval:  c.TickInterval,
		routes:        make(map[int][]int),
		targets:       make(map[int]Target),
		tickWindows:   make(map[int]*throttle.Window[int64, int64]),
		wallWindows:   make(map[int]*throttle.Window[time.Time, time.Duration]),
		closing:       make(chan struct{}),
		closed:        make(chan struct{}),
	}
	if e.tickInterval > 0 {
		go e.tickLoop()
	} else {
		close(e.closed)
	}
	return e
}

// OnTick registers fn to run after every tick that actually processed (spec
// §6.3's "press start and let it run" mode included): both the background
// TickInterval-driven loop and the manual POST /api/simulation/tick handler
// call through the same Tick, so a single registration here is enough for
// the SSE stream to stay live regardless of which mode produced the tick.
// fn runs after the tick's lock is released, never while e.mu is held.
func (e *Engine) OnTick(fn func(TickResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Close stops the background ticker loop, if running.
func (e *Engine) Close() {
	select {
	case <-e.closing:
	default:
		close(e.closing)
	}
	<-e.closed
}

// tickLoop drives Tick on a fixed interval, the way the teacher's
// world/tick.go's ticker.tickLoop drives World ticks, including a
// degraded-cadence warning.
func (e *Engine) tickLoop() {
	defer close(e.closed)
	tc := time.NewTicker(e.tickInterval)
	defer tc.Stop()
	for {
		select {
		case start := <-tc.C:
			if _, err := e.Tick(); err != nil {
				e.log.Error("tick failed", "error", err)
			}
			if elapsed := time.Since(start); elapsed > e.tickInterval {
				e.log.Warn("tick running behind", "elapsed", elapsed, "interval", e.tickInterval)
			}
		case <-e.closing:
			return
		}
	}
}

// tickWindow returns (creating if absent) the in-tick throttle window for a
// restaurant (spec C4's tick-count variant).
func (e *Engine) tickWindow(restaurantID int) *throttle.Window[int64, int64] {
	w, ok := e.tickWindows[restaurantID]
	if !ok {
		w = throttle.NewTickWindow(e.throttleLimit, e.windowTicks)
		e.tickWindows[restaurantID] = w
	}
	return w
}

// WallClockAllow reports whether a new order for restaurantID would be
// admitted by the wall-clock throttle without recording it, so the HTTP
// layer can decide whether to even attempt CreateOrder (spec C4's
// wall-clock variant gates C8).
func (e *Engine) WallClockAllow(restaurantID int, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallWindow(restaurantID).Allow(now)
}

func (e *Engine) wallWindow(restaurantID int) *throttle.Window[time.Time, time.Duration] {
	w, ok := e.wallWindows[restaurantID]
	if !ok {
		w = throttle.NewWallClock(e.throttleLimit, e.windowWall)
		e.wallWindows[restaurantID] = w
	}
	return w
}

// Start marks the simulation running (spec §6.2's POST /api/simulation/start).
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
}

// Stop marks the simulation stopped (spec §6.2's POST /api/simulation/stop).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
}

// Running reports whether the simulation is currently running.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// TickCount returns the current tick counter.
func (e *Engine) TickCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickCount
}

// Reset stops the simulation, zeroes the tick counter, clears every
// throttle log and engine-local route/target, and cancels every
// non-terminal order, returning every bot to IDLE at the station (spec
// §6.2's POST /api/simulation/reset).
func (e *Engine) Reset() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cancelled int
	err := e.store.Exec(func(tx *store.Tx) error {
		cancelled = tx.Reset(e.stationNodeID, time.Now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.running = false
	e.tickCount = 0
	e.routes = make(map[int][]int)
	e.targets = make(map[int]Target)
	e.tickWindows = make(map[int]*throttle.Window[int64, int64])
	e.wallWindows = make(map[int]*throttle.Window[time.Time, time.Duration])
	return cancelled, nil
}

// Tick runs exactly one assign -> plan -> move/arrive pass if the simulation
// is running; if not, it is a no-op reporting so (spec §6.2's POST
// /api/simulation/tick).
func (e *Engine) Tick() (TickResult, error) {
	e.mu.Lock()
	if !e.running {
		result := TickResult{Ran: false, TickCount: e.tickCount}
		e.mu.Unlock()
		return result, nil
	}

	var result TickResult
	now := time.Now()
	err := e.store.Exec(func(tx *store.Tx) error {
		assigned := e.assign(tx, now)
		e.planRoutes(tx)
		moved, pickedUp, delivered := e.moveAndArrive(tx, now)
		result = TickResult{
			Ran:             true,
			OrdersAssigned:  assigned,
			OrdersPickedUp:  pickedUp,
			OrdersDelivered: delivered,
			BotsMoved:       moved,
		}
		return nil
	})
	if err != nil {
		e.mu.Unlock()
		return TickResult{}, fmt.Errorf("engine: tick: %w", err)
	}
	e.tickCount++
	result.TickCount = e.tickCount
	onTick := e.onTick
	e.mu.Unlock()

	if onTick != nil {
		onTick(result)
	}
	return result, nil
}

// CreateOrder persists a new PENDING order for restaurantID targeting
// deliveryNodeID and immediately runs the eager-assign path (spec C8). The
// caller is responsible for the wall-clock throttle check (WallClockAllow)
// before calling CreateOrder; on success the admission is recorded.
func (e *Engine) CreateOrder(restaurantID, deliveryNodeID int, now time.Time) (store.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out store.Order
	err := e.store.Exec(func(tx *store.Tx) error {
		r, ok := tx.Restaurant(restaurantID)
		if !ok {
			return fmt.Errorf("%w: restaurant %d", ErrNotFound, restaurantID)
		}
		node, ok := e.grid.Node(deliveryNodeID)
		if !ok || !node.IsDeliveryPoint {
			return fmt.Errorf("%w: node %d is not a delivery point", ErrInvalidInput, deliveryNodeID)
		}
		created := tx.CreateOrder(restaurantID, r.NodeID, deliveryNodeID, now)
		e.eagerAssign(tx, created, now)
		var found bool
		out, found = tx.Order(created.ID)
		if !found {
			out = created
		}
		return nil
	})
	if err != nil {
		return store.Order{}, err
	}
	e.wallWindow(restaurantID).Admit(now)
	return out, nil
}

// SetOrderDeliveryNode changes a PENDING order's delivery node (spec §6.2's
// PUT /api/orders/{id}).
func (e *Engine) SetOrderDeliveryNode(orderID, deliveryNodeID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Exec(func(tx *store.Tx) error {
		node, ok := e.grid.Node(deliveryNodeID)
		if !ok || !node.IsDeliveryPoint {
			return fmt.Errorf("%w: node %d is not a delivery point", ErrInvalidInput, deliveryNodeID)
		}
		return tx.SetOrderDeliveryNode(orderID, deliveryNodeID)
	})
}

// SetOrderStatus forces an order directly to next (spec §6.2's PUT
// /api/orders/{id} status field). Validated against the lifecycle table the
// same as every other transition, so this can never move an order out of a
// terminal state, nor skip the table in a way a tick or eager-assign
// couldn't also produce.
func (e *Engine) SetOrderStatus(orderID int, next lifecycle.OrderStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Exec(func(tx *store.Tx) error {
		return tx.ForceOrderStatus(orderID, next, time.Now())
	})
}

// CancelOrder cancels an order in {PENDING, ASSIGNED} (spec §6.2's DELETE
// /api/orders/{id}). If the order's bot has no remaining active orders, the
// bot is freed to IDLE and its engine-local route/target cleared so the
// next tick replans (spec §5's cancellation handling).
func (e *Engine) CancelOrder(orderID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var freedBot *int
	err := e.store.Exec(func(tx *store.Tx) error {
		o, ok := tx.Order(orderID)
		if !ok {
			return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		botID := o.BotID
		if err := tx.CancelOrder(orderID, time.Now()); err != nil {
			return err
		}
		if botID != nil && tx.ActiveOrderCount(*botID) == 0 {
			if b, ok := tx.Bot(*botID); ok && b.Status != lifecycle.BotIdle {
				if err := tx.SetBotStatus(*botID, lifecycle.BotIdle); err != nil {
					return err
				}
			}
			freedBot = botID
		}
		return nil
	})
	if err != nil {
		return err
	}
	if freedBot != nil {
		delete(e.routes, *freedBot)
		delete(e.targets, *freedBot)
	}
	return nil
}

// StatusSnapshot is the spec §6.2 GET /api/simulation/status payload.
type StatusSnapshot struct {
	IsRunning      bool
	TickCount      int64
	OrdersByStatus map[lifecycle.OrderStatus]int
	NonIdleBots    int
}

// Status returns a consistent snapshot of simulation-level counters.
func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	running, tickCount := e.running, e.tickCount
	e.mu.Unlock()

	snap := StatusSnapshot{IsRunning: running, TickCount: tickCount, OrdersByStatus: map[lifecycle.OrderStatus]int{}}
	store.ViewResult(e.store, func(tx *store.Tx) struct{} {
		for _, o := range tx.Orders() {
			snap.OrdersByStatus[o.Status]++
		}
		for _, b := range tx.Bots() {
			if b.Status != lifecycle.BotIdle {
				snap.NonIdleBots++
			}
		}
		return struct{}{}
	})
	return snap
}

// BotPosition is one row of the spec §6.2 GET /api/simulation/bots/positions
// payload.
type BotPosition struct {
	ID            int
	Name          string
	Status        lifecycle.BotStatus
	CurrentNodeID int
	Route         []int
	Target        *Target
	ActiveOrders  int
}

// BotPositions returns every bot's live position, route and target.
func (e *Engine) BotPositions() []BotPosition {
	e.mu.Lock()
	routes := make(map[int][]int, len(e.routes))
	for id, r := range e.routes {
		routes[id] = append([]int(nil), r...)
	}
	targets := make(map[int]Target, len(e.targets))
	for id, t := range e.targets {
		targets[id] = t
	}
	e.mu.Unlock()

	return store.ViewResult(e.store, func(tx *store.Tx) []BotPosition {
		bots := tx.Bots()
		out := make([]BotPosition, 0, len(bots))
		for _, b := range bots {
			pos := BotPosition{
				ID:            b.ID,
				Name:          b.Name,
				Status:        b.Status,
				CurrentNodeID: b.CurrentNodeID,
				Route:         routes[b.ID],
				ActiveOrders:  tx.ActiveOrderCount(b.ID),
			}
			if t, ok := targets[b.ID]; ok {
				tc := t
				pos.Target = &tc
			}
			out = append(out, pos)
		}
		return out
	})
}

// Orders returns every order, unordered.
func (e *Engine) Orders() []store.Order { return store.ViewResult(e.store, func(tx *store.Tx) []store.Order { return tx.Orders() }) }

// OrdersByStatus returns every order matching any of statuses.
func (e *Engine) OrdersByStatus(statuses ...lifecycle.OrderStatus) []store.Order {
	return store.ViewResult(e.store, func(tx *store.Tx) []store.Order { return tx.OrdersByStatus(statuses...) })
}

// orderLookup bundles an order and whether it was found, letting Order do a
// single store view instead of two.
type orderLookup struct {
	order store.Order
	found bool
}

// Order returns a single order by id.
func (e *Engine) Order(id int) (store.Order, bool) {
	res := store.ViewResult(e.store, func(tx *store.Tx) orderLookup {
		o, ok := tx.Order(id)
		return orderLookup{order: o, found: ok}
	})
	return res.order, res.found
}

// OrderHistory returns the audit trail for an order.
func (e *Engine) OrderHistory(id int) []store.OrderStatusHistory {
	return store.ViewResult(e.store, func(tx *store.Tx) []store.OrderStatusHistory { return tx.OrderHistory(id) })
}

// Grid exposes the immutable grid for read endpoints.
func (e *Engine) Grid() *grid.Graph { return e.grid }

// Bots returns every bot, in ascending id order.
func (e *Engine) Bots() []store.Bot {
	return store.ViewResult(e.store, func(tx *store.Tx) []store.Bot { return tx.Bots() })
}

// botLookup bundles a bot and whether it was found, mirroring orderLookup.
type botLookup struct {
	bot   store.Bot
	found bool
}

// Bot returns a single bot by id.
func (e *Engine) Bot(id int) (store.Bot, bool) {
	res := store.ViewResult(e.store, func(tx *store.Tx) botLookup {
		b, ok := tx.Bot(id)
		return botLookup{bot: b, found: ok}
	})
	return res.bot, res.found
}

// ActiveOrdersByBot returns every order currently assigned to botID in
// {ASSIGNED, PICKED_UP} (spec glossary: "Active order"), ascending id order.
func (e *Engine) ActiveOrdersByBot(botID int) []store.Order {
	return store.ViewResult(e.store, func(tx *store.Tx) []store.Order {
		out := make([]store.Order, 0)
		for _, o := range tx.OrdersByBot(botID) {
			if o.ActiveOrder() {
				out = append(out, o)
			}
		}
		return out
	})
}

// Restaurants returns every restaurant.
func (e *Engine) Restaurants() []store.Restaurant {
	return store.ViewResult(e.store, func(tx *store.Tx) []store.Restaurant { return tx.Restaurants() })
}
