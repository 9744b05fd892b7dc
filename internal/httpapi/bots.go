package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ron808/eagrouter/internal/store"
)

// botResponse mirrors original_source's BotResponse, including the
// available_capacity field the visualization client uses to grey out bots
// that can't take another order.
type botResponse struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	CurrentNodeID     int    `json:"current_node_id"`
	MaxCapacity       int    `json:"max_capacity"`
	CurrentOrderCount int    `json:"current_order_count"`
	AvailableCapacity int    `json:"available_capacity"`
}

func (s *Server) botView(b store.Bot) botResponse {
	active := len(s.engine.ActiveOrdersByBot(b.ID))
	return botResponse{
		ID:                b.ID,
		Name:              b.Name,
		Status:            string(b.Status),
		CurrentNodeID:     b.CurrentNodeID,
		MaxCapacity:       b.MaxCapacity,
		CurrentOrderCount: active,
		AvailableCapacity: b.MaxCapacity - active,
	}
}

func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots := s.engine.Bots()
	out := make([]botResponse, 0, len(bots))
	for _, b := range bots {
		out = append(out, s.botView(b))
	}
	writeCacheableJSON(w, r, out)
}

func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed bot id")
		return
	}
	b, ok := s.engine.Bot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "bot %d", id)
		return
	}
	writeJSON(w, http.StatusOK, s.botView(b))
}

func (s *Server) handleGetBotOrders(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed bot id")
		return
	}
	if _, ok := s.engine.Bot(id); !ok {
		writeError(w, http.StatusNotFound, "not found", "bot %d", id)
		return
	}
	orders := s.engine.ActiveOrdersByBot(id)
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, s.orderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}
