package httpapi

import "net/http"

type statusResponse struct {
	IsRunning      bool           `json:"is_running"`
	TickCount      int64          `json:"tick_count"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
	NonIdleBots    int            `json:"non_idle_bots"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Status()
	resp := statusResponse{
		IsRunning:      snap.IsRunning,
		TickCount:      snap.TickCount,
		OrdersByStatus: make(map[string]int, len(snap.OrdersByStatus)),
		NonIdleBots:    snap.NonIdleBots,
	}
	for status, count := range snap.OrdersByStatus {
		resp.OrdersByStatus[string(status)] = count
	}
	writeCacheableJSON(w, r, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.engine.Start()
	writeJSON(w, http.StatusOK, map[string]any{"message": "simulation started", "is_running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"message": "simulation stopped", "is_running": false})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.idempotencyMu.Lock()
	s.idempotency = make(map[uint64]idempotentResult)
	s.idempotencyMu.Unlock()

	cancelled, err := s.engine.Reset()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "simulation reset",
		"is_running":        false,
		"tick_count":        int64(0),
		"orders_cancelled":  cancelled,
	})
}

type tickResponse struct {
	Message string       `json:"message"`
	Tick    int64        `json:"tick"`
	Results *tickResults `json:"results"`
}

type tickResults struct {
	OrdersAssigned  int `json:"orders_assigned"`
	OrdersPickedUp  int `json:"orders_picked_up"`
	OrdersDelivered int `json:"orders_delivered"`
	BotsMoved       int `json:"bots_moved"`
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Tick()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "%v", err)
		return
	}
	if !result.Ran {
		writeJSON(w, http.StatusOK, tickResponse{Message: "simulation is not running", Tick: result.TickCount})
		return
	}
	resp := tickResponse{
		Message: "tick processed",
		Tick:    result.TickCount,
		Results: &tickResults{
			OrdersAssigned:  result.OrdersAssigned,
			OrdersPickedUp:  result.OrdersPickedUp,
			OrdersDelivered: result.OrdersDelivered,
			BotsMoved:       result.BotsMoved,
		},
	}
	writeJSON(w, http.StatusOK, resp)
}

type targetView struct {
	NodeID  int    `json:"node"`
	Action  string `json:"action"`
	OrderID int    `json:"order_id"`
}

type botPositionResponse struct {
	ID           int         `json:"id"`
	Name         string      `json:"name"`
	Status       string      `json:"status"`
	NodeID       int         `json:"node_id"`
	Route        []int       `json:"route"`
	Target       *targetView `json:"target"`
	ActiveOrders int         `json:"active_orders"`
}

func (s *Server) botPositionsPayload() []botPositionResponse {
	positions := s.engine.BotPositions()
	out := make([]botPositionResponse, 0, len(positions))
	for _, p := range positions {
		resp := botPositionResponse{
			ID:           p.ID,
			Name:         p.Name,
			Status:       string(p.Status),
			NodeID:       p.CurrentNodeID,
			Route:        p.Route,
			ActiveOrders: p.ActiveOrders,
		}
		if p.Target != nil {
			resp.Target = &targetView{NodeID: p.Target.NodeID, Action: string(p.Target.Action), OrderID: p.Target.OrderID}
		}
		out = append(out, resp)
	}
	return out
}

func (s *Server) handleBotPositions(w http.ResponseWriter, r *http.Request) {
	writeCacheableJSON(w, r, s.botPositionsPayload())
}
