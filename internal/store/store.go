// Package store owns the authoritative in-memory copy of every active
// player's state. All reads and writes go through it: per-player locks
// serialize mutations for one player while different players proceed
// independently, and nothing outside ever sees a live map reference —
// only clones cross the boundary.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/talgya/idleharvest/internal/catalog"
	"github.com/talgya/idleharvest/internal/player"
	"github.com/talgya/idleharvest/internal/rules"
)

// ErrBusy is returned when the per-player lock could not be acquired in
// time. The caller may retry with backoff; the mutation was not applied.
var ErrBusy = errors.New("player state busy")

const (
	defaultLockTimeout = 2 * time.Second

	// Loads more than this far behind LastSeenAt trigger offline catch-up.
	offlineThreshold = 5 * time.Second

	// Cap on lump-sum catch-up so a stale row can't stall a load.
	maxOfflineCatchup = 30 * 24 * time.Hour
)

// Clock abstracts time so reconciliation is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// systemRoller draws from the shared math/rand/v2 source, which is safe for
// concurrent use across player goroutines.
type systemRoller struct{}

func (systemRoller) Float64() float64 { return rand.Float64() }

// Storage is the durable-storage collaborator. A single failed write must
// never corrupt the in-memory authoritative copy; the periodic flush
// retries on its next cycle.
type Storage interface {
	LoadOne(ctx context.Context, playerID string) (*player.State, bool, error)
	SaveOne(ctx context.Context, st *player.State) error
	SaveMany(ctx context.Context, states []*player.State) error
}

// MutateFunc computes a successor state from a snapshot. It must return an
// error and leave the snapshot meaningless rather than commit a partial
// change; the store only swaps in the returned state on success.
type MutateFunc func(st *player.State) (*player.State, error)

// Store caches player states and mediates every mutation.
type Store struct {
	catalog *catalog.Catalog
	storage Storage
	clock   Clock
	roller  rules.Roller

	lockTimeout time.Duration
	onCommit    func(st *player.State)

	mu      sync.Mutex
	players map[string]*entry
}

// entry pairs one player's state with its lock. The 1-slot channel is the
// lock: sending acquires, receiving releases, and acquisition can time out.
type entry struct {
	sem   chan struct{}
	state *player.State // nil until first load
}

// New creates a store over the given catalog and durable storage.
func New(cat *catalog.Catalog, storage Storage) *Store {
	return &Store{
		catalog:     cat,
		storage:     storage,
		clock:       realClock{},
		roller:      systemRoller{},
		lockTimeout: defaultLockTimeout,
		players:     make(map[string]*entry),
	}
}

// SetOnCommit registers a listener invoked with a clone of every committed
// state. Used by the live stream; must not block.
func (s *Store) SetOnCommit(fn func(st *player.State)) {
	s.onCommit = fn
}

func (s *Store) acquire(ctx context.Context, playerID string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.players[playerID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.players[playerID] = e
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case e.sem <- struct{}{}:
		return e, nil
	case <-timer.C:
		return nil, fmt.Errorf("acquire %s: %w", playerID, ErrBusy)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *entry) release() { <-e.sem }

// ensureLoaded populates the entry on cache miss: load from storage, or
// seed a fresh default and persist it immediately so the player exists
// durably before the first flush. Loaded states get legacy-area healing
// and offline catch-up before anyone sees them. Caller holds the lock.
func (s *Store) ensureLoaded(ctx context.Context, e *entry, playerID string) error {
	if e.state != nil {
		return nil
	}

	st, found, err := s.storage.LoadOne(ctx, playerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if !found {
		st = s.catalog.DefaultPlayerState(playerID, now)
		if err := s.storage.SaveOne(ctx, st); err != nil {
			return fmt.Errorf("seed %s: %w", playerID, err)
		}
		slog.Info("seeded new player", "player", playerID)
	} else {
		normalizeAreas(st)
		st = s.reconcile(st, now)
	}

	e.state = st
	return nil
}

// normalizeAreas heals legacy saves that violate the one-active-area-per-
// family invariant: the active area with the lowest gate survives, ties
// broken by name so healing is deterministic.
func normalizeAreas(st *player.State) {
	for family, areas := range st.Areas {
		active := st.ActiveAreaNames(family)
		if len(active) <= 1 {
			continue
		}

		keep := active[0]
		for _, name := range active[1:] {
			a, k := areas[name], areas[keep]
			if a.MinToolLevel < k.MinToolLevel || (a.MinToolLevel == k.MinToolLevel && name < keep) {
				keep = name
			}
		}
		for _, name := range active {
			if name == keep {
				continue
			}
			area := areas[name]
			area.Active = false
			areas[name] = area
		}
		slog.Warn("healed multi-active areas", "player", st.PlayerID, "family", family, "kept", keep)
	}
}

// reconcile applies lump-sum offline catch-up: one passive tick covering
// the whole absence, after which LastSeenAt jumps to now so a second
// reconcile adds nothing.
func (s *Store) reconcile(st *player.State, now time.Time) *player.State {
	elapsed := now.Sub(st.LastSeenAt)
	if elapsed > maxOfflineCatchup {
		elapsed = maxOfflineCatchup
	}
	if elapsed <= offlineThreshold {
		return st
	}

	seconds := int64(elapsed / time.Second)
	next, drops := rules.ApplyPassiveTick(st, s.catalog, s.roller, seconds)
	next.LastSeenAt = now
	if len(drops) > 0 {
		slog.Info("offline catch-up applied", "player", st.PlayerID, "seconds", seconds, "drops", len(drops))
	}
	return next
}

// Get returns a snapshot of the player's state, loading or seeding it on
// cache miss.
func (s *Store) Get(ctx context.Context, playerID string) (*player.State, error) {
	e, err := s.acquire(ctx, playerID)
	if err != nil {
		return nil, err
	}
	defer e.release()

	if err := s.ensureLoaded(ctx, e, playerID); err != nil {
		return nil, err
	}
	return e.state.Clone(), nil
}

// Mutate runs fn against a snapshot of the player's state under the
// per-player lock and commits the result only on success. The returned
// state is itself a snapshot.
func (s *Store) Mutate(ctx context.Context, playerID string, fn MutateFunc) (*player.State, error) {
	e, err := s.acquire(ctx, playerID)
	if err != nil {
		return nil, err
	}
	defer e.release()

	if err := s.ensureLoaded(ctx, e, playerID); err != nil {
		return nil, err
	}

	next, err := fn(e.state.Clone())
	if err != nil {
		return nil, err
	}

	next.LastSeenAt = s.clock.Now()
	e.state = next

	snap := next.Clone()
	if s.onCommit != nil {
		s.onCommit(snap)
	}
	return snap, nil
}

// cachedIDs snapshots the current cache keys.
func (s *Store) cachedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	return ids
}

// TickAll applies one passive-production step of the given whole-second
// width to every cached player. A player whose lock can't be taken right
// now is skipped, not corrupted; their production resumes next tick.
func (s *Store) TickAll(ctx context.Context, seconds int64) {
	for _, id := range s.cachedIDs() {
		_, err := s.Mutate(ctx, id, func(st *player.State) (*player.State, error) {
			next, _ := rules.ApplyPassiveTick(st, s.catalog, s.roller, seconds)
			return next, nil
		})
		if err != nil && !errors.Is(err, ErrBusy) && !errors.Is(err, context.Canceled) {
			slog.Warn("passive tick failed", "player", id, "error", err)
		}
	}
}

// FlushAll writes a snapshot of every cached state to durable storage.
// Snapshots are taken under each player's lock but the write happens
// outside all locks, so a slow disk never delays gameplay and a later
// mutation can't retroactively alter the in-flight write.
func (s *Store) FlushAll(ctx context.Context) error {
	now := s.clock.Now()
	var snaps []*player.State
	for _, id := range s.cachedIDs() {
		e, err := s.acquire(ctx, id)
		if err != nil {
			slog.Warn("flush skipped player", "player", id, "error", err)
			continue
		}
		if e.state != nil {
			e.state.LastSavedAt = now
			snaps = append(snaps, e.state.Clone())
		}
		e.release()
	}

	if err := s.storage.SaveMany(ctx, snaps); err != nil {
		return fmt.Errorf("flush %d players: %w", len(snaps), err)
	}
	return nil
}

// Stats reports the cached player count and their combined coin balance.
func (s *Store) Stats(ctx context.Context) (players int, coins int64) {
	for _, id := range s.cachedIDs() {
		e, err := s.acquire(ctx, id)
		if err != nil {
			continue
		}
		if e.state != nil {
			players++
			coins += e.state.Coins()
		}
		e.release()
	}
	return players, coins
}
