package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/ron808/eagrouter/internal/engine"
)

// handleStream serves the supplemental live bot-position stream: one
// Server-Sent Event per tick, so the visualization client doesn't have to
// poll /api/simulation/bots/positions at the tick rate. Each subscriber is
// keyed by a google/uuid so publishTick can fan out without scanning a
// slice for removal races.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal error", "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := uuid.New()
	ch := make(chan []byte, 8)
	s.streamMu.Lock()
	s.subscribers[id] = ch
	s.streamMu.Unlock()
	defer func() {
		s.streamMu.Lock()
		delete(s.subscribers, id)
		s.streamMu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-ch:
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// publishTick pushes the current bot positions to every connected stream
// subscriber. Registered as the engine's OnTick callback, so it fires for
// every tick that actually ran — the background TickInterval loop (spec
// §6.3's "press start and let it run" mode) as well as the manual POST
// /api/simulation/tick handler. Slow subscribers are dropped from that
// tick's broadcast rather than blocking the tick.
func (s *Server) publishTick(tick engine.TickResult) {
	if !tick.Ran {
		return
	}
	s.streamMu.Lock()
	subs := make([]chan []byte, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.streamMu.Unlock()
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(struct {
		Tick      int64                 `json:"tick"`
		Positions []botPositionResponse `json:"positions"`
	}{Tick: tick.TickCount, Positions: s.botPositionsPayload()})
	if err != nil {
		s.log.Error("stream: marshal tick payload", "error", err)
		return
	}
	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
}
