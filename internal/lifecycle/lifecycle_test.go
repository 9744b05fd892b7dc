package lifecycle

import "testing"

func TestValidOrderTransition(t *testing.T) {
	cases := []struct {
		cur, next OrderStatus
		want      bool
	}{
		{OrderPending, OrderAssigned, true},
		{OrderPending, OrderCancelled, true},
		{OrderPending, OrderPickedUp, false},
		{OrderAssigned, OrderPickedUp, true},
		{OrderAssigned, OrderDelivered, false},
		{OrderPickedUp, OrderDelivered, true},
		{OrderPickedUp, OrderCancelled, false},
		{OrderDelivered, OrderPending, false},
		{OrderCancelled, OrderAssigned, false},
	}
	for _, c := range cases {
		if got := ValidOrderTransition(c.cur, c.next); got != c.want {
			t.Errorf("ValidOrderTransition(%s, %s) = %v, want %v", c.cur, c.next, got, c.want)
		}
	}
}

func TestValidBotTransition(t *testing.T) {
	cases := []struct {
		cur, next BotStatus
		want      bool
	}{
		{BotIdle, BotMoving, true},
		{BotIdle, BotPickingUp, false},
		{BotMoving, BotPickingUp, true},
		{BotMoving, BotDelivering, true},
		{BotMoving, BotMoving, true},
		{BotPickingUp, BotIdle, true},
		{BotPickingUp, BotDelivering, false},
		{BotDelivering, BotMoving, true},
		{BotIdle, BotIdle, true},
	}
	for _, c := range cases {
		if got := ValidBotTransition(c.cur, c.next); got != c.want {
			t.Errorf("ValidBotTransition(%s, %s) = %v, want %v", c.cur, c.next, got, c.want)
		}
	}
}
