package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ron808/eagrouter/internal/address"
	"github.com/ron808/eagrouter/internal/lifecycle"
	"github.com/ron808/eagrouter/internal/store"
)

type orderResponse struct {
	ID               int     `json:"id"`
	RestaurantID     int     `json:"restaurant_id"`
	PickupNodeID     int     `json:"pickup_node_id"`
	PickupAddress    string  `json:"pickup_address"`
	DeliveryNodeID   int     `json:"delivery_node_id"`
	DeliveryAddress  string  `json:"delivery_address"`
	BotID            *int    `json:"bot_id"`
	Status           string  `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	PickedUpAt       *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
}

func (s *Server) orderView(o store.Order) orderResponse {
	resp := orderResponse{
		ID: o.ID, RestaurantID: o.RestaurantID,
		PickupNodeID: o.PickupNodeID, DeliveryNodeID: o.DeliveryNodeID,
		BotID: o.BotID, Status: string(o.Status),
		CreatedAt: o.CreatedAt, AssignedAt: o.AssignedAt,
		PickedUpAt: o.PickedUpAt, DeliveredAt: o.DeliveredAt,
	}
	if n, ok := s.engine.Grid().Node(o.PickupNodeID); ok {
		resp.PickupAddress = address.ToAddress(n.X, n.Y)
	}
	if n, ok := s.engine.Grid().Node(o.DeliveryNodeID); ok {
		resp.DeliveryAddress = address.ToAddress(n.X, n.Y)
	}
	return resp
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	var orders []store.Order
	if status := r.URL.Query().Get("status"); status != "" {
		st := lifecycle.OrderStatus(status)
		if !validOrderStatus(st) {
			writeError(w, http.StatusBadRequest, "invalid input", "unknown status %q", status)
			return
		}
		orders = s.engine.OrdersByStatus(st)
	} else {
		orders = s.engine.Orders()
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.orderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func validOrderStatus(s lifecycle.OrderStatus) bool {
	switch s {
	case lifecycle.OrderPending, lifecycle.OrderAssigned, lifecycle.OrderPickedUp, lifecycle.OrderDelivered, lifecycle.OrderCancelled:
		return true
	}
	return false
}

type createOrderRequest struct {
	RestaurantID   int `json:"restaurant_id"`
	DeliveryNodeID int `json:"delivery_node_id"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if key := r.Header.Get("X-Idempotency-Key"); key != "" {
		h := idempotencyKeyHash(key)
		s.idempotencyMu.Lock()
		cached, ok := s.idempotency[h]
		s.idempotencyMu.Unlock()
		if ok {
			writeJSON(w, cached.status, cached.body)
			return
		}
	}

	var req createOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed body: %v", err)
		return
	}

	now := time.Now()
	if !s.engine.WallClockAllow(req.RestaurantID, now) {
		writeError(w, http.StatusTooManyRequests, "throttled", "restaurant %d has hit its order rate limit", req.RestaurantID)
		return
	}

	order, err := s.engine.CreateOrder(req.RestaurantID, req.DeliveryNodeID, now)
	if err != nil {
		status, label := mapErrorStatus(err)
		writeError(w, status, label, "%v", err)
		return
	}

	resp := s.orderView(order)
	if key := r.Header.Get("X-Idempotency-Key"); key != "" {
		h := idempotencyKeyHash(key)
		s.idempotencyMu.Lock()
		s.idempotency[h] = idempotentResult{status: http.StatusCreated, body: resp}
		s.idempotencyMu.Unlock()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed order id")
		return
	}
	o, ok := s.engine.Order(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "order %d", id)
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(o))
}

type updateOrderRequest struct {
	DeliveryNodeID *int    `json:"delivery_node_id"`
	Status         *string `json:"status"`
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed order id")
		return
	}
	var req updateOrderRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed body: %v", err)
		return
	}
	if req.DeliveryNodeID != nil {
		if err := s.engine.SetOrderDeliveryNode(id, *req.DeliveryNodeID); err != nil {
			status, label := mapErrorStatus(err)
			if errors.Is(err, lifecycle.ErrIllegalTransition) {
				status, label = http.StatusBadRequest, "invalid input"
			}
			writeError(w, status, label, "%v", err)
			return
		}
	}
	if req.Status != nil {
		next := lifecycle.OrderStatus(*req.Status)
		if !validOrderStatus(next) {
			writeError(w, http.StatusBadRequest, "invalid input", "unknown status %q", *req.Status)
			return
		}
		if err := s.engine.SetOrderStatus(id, next); err != nil {
			status, label := mapErrorStatus(err)
			writeError(w, status, label, "%v", err)
			return
		}
	}
	o, ok := s.engine.Order(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "order %d", id)
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed order id")
		return
	}
	if err := s.engine.CancelOrder(id); err != nil {
		status, label := mapErrorStatus(err)
		writeError(w, status, label, "%v", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyEntryResponse struct {
	ID        int    `json:"id"`
	OrderID   int    `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed order id")
		return
	}
	if _, ok := s.engine.Order(id); !ok {
		writeError(w, http.StatusNotFound, "not found", "order %d", id)
		return
	}
	rows := s.engine.OrderHistory(id)
	out := make([]historyEntryResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, historyEntryResponse{
			ID: h.ID, OrderID: h.OrderID,
			OldStatus: string(h.OldStatus), NewStatus: string(h.NewStatus),
			ChangedAt: h.ChangedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
