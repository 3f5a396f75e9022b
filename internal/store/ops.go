package store

import (
	"context"

	"github.com/talgya/idleharvest/internal/player"
	"github.com/talgya/idleharvest/internal/rules"
)

// Gameplay operations. Each one is a single atomic step: snapshot under the
// per-player lock, rules evaluation, commit on success. Failures leave the
// committed state exactly as it was.

// Click applies one manual harvest click and reports what dropped.
func (s *Store) Click(ctx context.Context, playerID string, family player.Family) (*player.State, []rules.Drop, error) {
	var drops []rules.Drop
	st, err := s.Mutate(ctx, playerID, func(st *player.State) (*player.State, error) {
		next, d, err := rules.ResolveClick(st, s.catalog, s.roller, family)
		drops = d
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}
	return st, drops, nil
}

// Upgrade purchases one level of an upgrade track.
func (s *Store) Upgrade(ctx context.Context, playerID string, kind player.ToolKind, upgrade player.UpgradeKind) (*player.State, error) {
	return s.Mutate(ctx, playerID, func(st *player.State) (*player.State, error) {
		return rules.ResolveUpgrade(st, s.catalog, kind, upgrade)
	})
}

// Sell converts raw resources into coins.
func (s *Store) Sell(ctx context.Context, playerID string, item player.Item, quantity int64) (*player.State, error) {
	return s.Mutate(ctx, playerID, func(st *player.State) (*player.State, error) {
		return rules.ResolveSell(st, s.catalog, item, quantity)
	})
}

// SelectArea switches a family's active area.
func (s *Store) SelectArea(ctx context.Context, playerID string, family player.Family, name player.AreaName) (*player.State, error) {
	return s.Mutate(ctx, playerID, func(st *player.State) (*player.State, error) {
		return rules.ResolveSelectArea(st, s.catalog, family, name)
	})
}
