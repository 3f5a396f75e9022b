// Package api exposes the economy engine over HTTP. Routing stays minimal
// on purpose: the engine is the product, the transport is a thin shell.
// Player identity arrives in the X-Player-ID header, established by the
// auth layer in front of this server.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/idleharvest/internal/persistence"
	"github.com/talgya/idleharvest/internal/player"
	"github.com/talgya/idleharvest/internal/rules"
	"github.com/talgya/idleharvest/internal/scheduler"
	"github.com/talgya/idleharvest/internal/store"
)

// playerHeader carries the authenticated player id, set by the auth proxy.
const playerHeader = "X-Player-ID"

// Server serves the game API.
type Server struct {
	Store *store.Store
	Sched *scheduler.Scheduler
	DB    *persistence.DB
	Addr  string

	hub       *hub
	startedAt time.Time
}

type clickRequest struct {
	Family player.Family `json:"family"`
}

type upgradeRequest struct {
	Tool    player.ToolKind    `json:"tool"`
	Upgrade player.UpgradeKind `json:"upgrade"`
}

type sellRequest struct {
	Item     player.Item `json:"item"`
	Quantity int64       `json:"quantity"`
}

type areaRequest struct {
	Family player.Family   `json:"family"`
	Area   player.AreaName `json:"area"`
}

// stateResponse is the uniform envelope for gameplay endpoints.
type stateResponse struct {
	OK       bool          `json:"ok"`
	PlayerID string        `json:"player_id,omitempty"`
	State    *player.State `json:"state,omitempty"`
	Drops    []rules.Drop  `json:"drops,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	handler := s.routes()
	slog.Info("HTTP API starting", "addr", s.Addr)

	go func() {
		if err := http.ListenAndServe(s.Addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// routes wires the mux and the store commit hook.
func (s *Server) routes() http.Handler {
	s.hub = newHub()
	s.Store.SetOnCommit(s.hub.broadcast)
	s.startedAt = time.Now()

	// Generous per-IP budget; this exists to blunt scripted click storms,
	// not to pace honest play.
	limiter := NewRateLimiter(600, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/players", s.handleNewPlayer)

	mux.HandleFunc("/api/v1/state", s.withPlayer(s.handleState))
	mux.HandleFunc("/api/v1/stream", s.withPlayer(s.handleStream))

	mux.HandleFunc("/api/v1/click", limiter.Wrap(s.withPlayer(s.handleClick)))
	mux.HandleFunc("/api/v1/upgrade", limiter.Wrap(s.withPlayer(s.handleUpgrade)))
	mux.HandleFunc("/api/v1/sell", limiter.Wrap(s.withPlayer(s.handleSell)))
	mux.HandleFunc("/api/v1/area", limiter.Wrap(s.withPlayer(s.handleSelectArea)))
	mux.HandleFunc("/api/v1/save", limiter.Wrap(s.withPlayer(s.handleSave)))

	return corsMiddleware(mux)
}

// corsMiddleware allows browser clients from configured origins. Set
// CORS_ORIGINS to a comma-separated list; localhost dev servers always pass.
func corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+playerHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withPlayer extracts the player id header and rejects anonymous requests.
func (s *Server) withPlayer(next func(w http.ResponseWriter, r *http.Request, playerID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(playerHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "MissingPlayer")
			return
		}
		next(w, r, id)
	}
}

// decode reads a JSON body strictly: unknown fields and trailing garbage
// are validation errors, rejected before any state is touched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) handleNewPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "InvalidRequest")
		return
	}

	id := uuid.NewString()
	st, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stateResponse{OK: true, PlayerID: id, State: st})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, playerID string) {
	st, err := s.Store.Get(r.Context(), playerID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, playerID string) {
	var req clickRequest
	if err := decode(r, &req); err != nil || req.Family == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	st, drops, err := s.Store.Click(r.Context(), playerID, req.Family)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st, Drops: drops})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, playerID string) {
	var req upgradeRequest
	if err := decode(r, &req); err != nil || req.Tool == "" || req.Upgrade == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	st, err := s.Store.Upgrade(r.Context(), playerID, req.Tool, req.Upgrade)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request, playerID string) {
	var req sellRequest
	if err := decode(r, &req); err != nil || req.Item == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	st, err := s.Store.Sell(r.Context(), playerID, req.Item, req.Quantity)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st})
}

func (s *Server) handleSelectArea(w http.ResponseWriter, r *http.Request, playerID string) {
	var req areaRequest
	if err := decode(r, &req); err != nil || req.Family == "" || req.Area == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	st, err := s.Store.SelectArea(r.Context(), playerID, req.Family, req.Area)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true, State: st})
}

// handleSave is the explicit client-triggered durability point: it flushes
// the whole cache, same as the periodic job.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, playerID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "InvalidRequest")
		return
	}
	if err := s.Store.FlushAll(r.Context()); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{OK: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	players, coins := s.Store.Stats(r.Context())

	var persisted int64
	if s.DB != nil {
		if n, err := s.DB.PlayerCount(r.Context()); err == nil {
			persisted = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"players_cached":    players,
		"players_persisted": persisted,
		"tick":              s.Sched.Ticks(),
		"total_coins":       humanize.Comma(coins),
		"uptime":            time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// writeFailure maps engine errors onto the wire: Busy is retryable,
// economy rejections are expected outcomes, anything else is a 500.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if code := rules.CodeOf(err); code != "" {
		status := http.StatusConflict
		switch code {
		case rules.CodeInvalidRequest, rules.CodeInvalidQuantity:
			status = http.StatusBadRequest
		}
		writeError(w, status, string(code))
		return
	}
	if errors.Is(err, store.ErrBusy) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "Busy")
		return
	}
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "StorageError")
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, stateResponse{OK: false, Error: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
