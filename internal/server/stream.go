package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/claude/replog/internal/workout"
)

// broadcaster fans recomputed view models out to SSE clients. It keeps the
// last payload so a newly connected client paints immediately instead of
// waiting for the next store change.
type broadcaster struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    []byte
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[chan []byte]struct{})}
}

func (b *broadcaster) publish(views []workout.SessionView) {
	payload, err := json.Marshal(views)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = payload
	for ch := range b.clients {
		// A slow client drops intermediate payloads; each payload is a full
		// snapshot so the next delivery supersedes anything missed.
		select {
		case ch <- payload:
		default:
		}
	}
}

func (b *broadcaster) add() chan []byte {
	ch := make(chan []byte, 1)
	b.mu.Lock()
	if b.last != nil {
		ch <- b.last
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) remove(ch chan []byte) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// handleHistoryStream streams view-model snapshots as server-sent events.
func (s *Server) handleHistoryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.stream.add()
	defer s.stream.remove(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-ch:
			if _, err := w.Write([]byte("event: history\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
