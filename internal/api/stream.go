// Live state stream. Every committed mutation — client-driven or
// tick-driven — is pushed to the player's connected sockets, so an open
// dashboard watches its numbers grow without polling.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/talgya/idleharvest/internal/player"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the CORS layer in front; the socket
	// still requires the player header to subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans committed states out to per-player subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	playerID string
	send     chan []byte
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) register(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.playerID] == nil {
		h.subs[sub.playerID] = make(map[*subscriber]struct{})
	}
	h.subs[sub.playerID][sub] = struct{}{}
}

func (h *hub) unregister(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.playerID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.playerID)
		}
	}
}

// broadcast runs on the store's commit path and must not block: a slow
// consumer loses frames, never stalls the economy.
func (h *hub) broadcast(st *player.State) {
	h.mu.Lock()
	set := h.subs[st.PlayerID]
	if len(set) == 0 {
		h.mu.Unlock()
		return
	}

	data, err := json.Marshal(stateResponse{OK: true, State: st})
	if err != nil {
		h.mu.Unlock()
		return
	}
	for sub := range set {
		select {
		case sub.send <- data:
		default:
		}
	}
	h.mu.Unlock()
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, playerID string) {
	// Warm the cache (and run offline catch-up) before the first frame.
	st, err := s.Store.Get(r.Context(), playerID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "player", playerID, "error", err)
		return
	}

	sub := &subscriber{playerID: playerID, send: make(chan []byte, 8)}
	s.hub.register(sub)
	slog.Info("stream subscribed", "player", playerID)

	// Writer drains the send queue until the hub closes it.
	go func() {
		for data := range sub.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				break
			}
		}
		conn.Close()
	}()

	// First frame is the current state.
	if data, err := json.Marshal(stateResponse{OK: true, State: st}); err == nil {
		sub.send <- data
	}

	// Reader exists only to notice the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.unregister(sub)
	close(sub.send)
	slog.Info("stream unsubscribed", "player", playerID)
}
