package store

import (
	"errors"
	"testing"
	"time"

	"github.com/ron808/eagrouter/internal/lifecycle"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Config{}.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.SeedRestaurants([]Restaurant{{ID: 1, Name: "RAMEN", NodeID: 10}})
	s.SeedBots([]Bot{{ID: 1, Name: "Bot-1", CurrentNodeID: 1, Status: lifecycle.BotIdle, MaxCapacity: 3}})
	return s
}

func TestCreateOrderAppendsHistory(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var created Order
	err := s.Exec(func(tx *Tx) error {
		created = tx.CreateOrder(1, 10, 20, now)
		return nil
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if created.Status != lifecycle.OrderPending {
		t.Fatalf("new order status = %s, want PENDING", created.Status)
	}

	hist := ViewResult(s, func(tx *Tx) []OrderStatusHistory { return tx.OrderHistory(created.ID) })
	if len(hist) != 1 || hist[0].NewStatus != lifecycle.OrderPending {
		t.Fatalf("history = %+v, want one PENDING row", hist)
	}
}

func TestAssignPickupDeliverSequence(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var id int
	s.Exec(func(tx *Tx) error {
		id = tx.CreateOrder(1, 10, 20, now).ID
		return nil
	})

	if err := s.Exec(func(tx *Tx) error { return tx.AssignOrder(id, 1, now) }); err != nil {
		t.Fatalf("AssignOrder: %v", err)
	}
	if err := s.Exec(func(tx *Tx) error { return tx.PickUpOrder(id, now) }); err != nil {
		t.Fatalf("PickUpOrder: %v", err)
	}
	if err := s.Exec(func(tx *Tx) error { return tx.DeliverOrder(id, now) }); err != nil {
		t.Fatalf("DeliverOrder: %v", err)
	}

	o := ViewResult(s, func(tx *Tx) Order { o, _ := tx.Order(id); return o })
	if o.Status != lifecycle.OrderDelivered {
		t.Fatalf("final status = %s, want DELIVERED", o.Status)
	}
	if o.AssignedAt == nil || o.PickedUpAt == nil || o.DeliveredAt == nil {
		t.Fatalf("expected all timestamps set, got %+v", o)
	}

	hist := ViewResult(s, func(tx *Tx) []OrderStatusHistory { return tx.OrderHistory(id) })
	if len(hist) != 4 {
		t.Fatalf("history length = %d, want 4 (create+3 transitions)", len(hist))
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var id int
	s.Exec(func(tx *Tx) error {
		id = tx.CreateOrder(1, 10, 20, now).ID
		return nil
	})

	err := s.Exec(func(tx *Tx) error { return tx.PickUpOrder(id, now) })
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("got %v, want ErrIllegalTransition", err)
	}

	// The failed transaction must not have mutated anything.
	o := ViewResult(s, func(tx *Tx) Order { o, _ := tx.Order(id); return o })
	if o.Status != lifecycle.OrderPending {
		t.Fatalf("status after rejected transition = %s, want still PENDING", o.Status)
	}
}

func TestFailedTransactionRollsBack(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	sentinel := errors.New("boom")

	err := s.Exec(func(tx *Tx) error {
		tx.CreateOrder(1, 10, 20, now)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Exec error = %v, want sentinel", err)
	}

	orders := ViewResult(s, func(tx *Tx) []Order { return tx.Orders() })
	if len(orders) != 0 {
		t.Fatalf("orders after rolled-back transaction = %v, want none", orders)
	}
}

func TestResetCancelsActiveOrdersAndMovesBots(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var id int
	s.Exec(func(tx *Tx) error {
		id = tx.CreateOrder(1, 10, 20, now).ID
		if err := tx.AssignOrder(id, 1, now); err != nil {
			return err
		}
		return tx.SetBotStatus(1, lifecycle.BotMoving)
	})

	var cancelled int
	s.Exec(func(tx *Tx) error {
		cancelled = tx.Reset(99, now)
		return nil
	})
	if cancelled != 1 {
		t.Fatalf("Reset cancelled = %d, want 1", cancelled)
	}

	o := ViewResult(s, func(tx *Tx) Order { o, _ := tx.Order(id); return o })
	if o.Status != lifecycle.OrderCancelled {
		t.Fatalf("order status after reset = %s, want CANCELLED", o.Status)
	}
	b := ViewResult(s, func(tx *Tx) Bot { b, _ := tx.Bot(1); return b })
	if b.Status != lifecycle.BotIdle || b.CurrentNodeID != 99 {
		t.Fatalf("bot after reset = %+v, want IDLE at node 99", b)
	}
}

func TestForceOrderStatusRejectsTerminalStates(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var id int
	s.Exec(func(tx *Tx) error {
		id = tx.CreateOrder(1, 10, 20, now).ID
		return tx.CancelOrder(id, now)
	})

	err := s.Exec(func(tx *Tx) error { return tx.ForceOrderStatus(id, lifecycle.OrderAssigned, now) })
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("forcing a CANCELLED order's status = %v, want ErrIllegalTransition", err)
	}
}

func TestForceOrderStatusAppliesLegalTransition(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	var id int
	s.Exec(func(tx *Tx) error {
		id = tx.CreateOrder(1, 10, 20, now).ID
		return nil
	})

	if err := s.Exec(func(tx *Tx) error { return tx.ForceOrderStatus(id, lifecycle.OrderAssigned, now) }); err != nil {
		t.Fatalf("ForceOrderStatus: %v", err)
	}

	o := ViewResult(s, func(tx *Tx) Order { o, _ := tx.Order(id); return o })
	if o.Status != lifecycle.OrderAssigned || o.AssignedAt == nil {
		t.Fatalf("order after forced transition = %+v, want ASSIGNED with assignedAt set", o)
	}
}

func TestOrdersByStatusAscendingID(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	s.Exec(func(tx *Tx) error {
		tx.CreateOrder(1, 10, 20, now)
		tx.CreateOrder(1, 10, 21, now)
		tx.CreateOrder(1, 10, 22, now)
		return nil
	})

	orders := ViewResult(s, func(tx *Tx) []Order { return tx.OrdersByStatus(lifecycle.OrderPending) })
	for i := 1; i < len(orders); i++ {
		if orders[i-1].ID >= orders[i].ID {
			t.Fatalf("OrdersByStatus not in ascending id order: %v", orders)
		}
	}
}
