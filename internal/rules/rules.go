// Package rules is the pure economy engine: every gameplay mutation is a
// function from a player state and the catalog to a new state or an
// EconomyError. Nothing here does I/O or touches shared state; the store
// owns locking and commits.
package rules

import (
	"github.com/talgya/idleharvest/internal/catalog"
	"github.com/talgya/idleharvest/internal/player"
)

// Roller supplies the Bernoulli draws for drop resolution. Production wires
// a seeded math/rand source; tests wire fixed sequences.
type Roller interface {
	Float64() float64
}

// Drop records one item credit produced by a click or a passive tick.
type Drop struct {
	Item     player.Item `json:"item"`
	Quantity int64       `json:"quantity"`
}

// activeArea resolves the single active area of a family, enforcing the
// one-active-per-family invariant on every read regardless of how the area
// map was populated.
func activeArea(st *player.State, family player.Family) (player.Area, error) {
	names := st.ActiveAreaNames(family)
	if len(names) != 1 {
		return player.Area{}, econErr(CodeNoActiveArea, "family %q has %d active areas", family, len(names))
	}
	return st.Areas[family][names[0]], nil
}

// toolFor locates the tool gating a family.
func toolFor(st *player.State, cat *catalog.Catalog, family player.Family) (player.Tool, error) {
	kind, ok := cat.ToolForFamily(family)
	if !ok {
		return player.Tool{}, econErr(CodeUnknownResource, "no such resource family %q", family)
	}
	tool, ok := st.Tools[kind]
	if !ok {
		return player.Tool{}, econErr(CodeToolMissing, "player has no %s", kind)
	}
	return tool, nil
}

// rollDrops runs one independent Bernoulli trial per drop-table item and
// credits yield units per success. Drops are independent, not mutually
// exclusive: a multi-resource area can produce several items in one pass.
func rollDrops(st *player.State, table map[player.Item]float64, yield int64, rng Roller) []Drop {
	var drops []Drop
	for item, probability := range table {
		if rng.Float64() >= probability {
			continue
		}
		st.Credit(item, yield)
		drops = append(drops, Drop{Item: item, Quantity: yield})
	}
	return drops
}

// ResolveClick applies one manual harvest click against a resource family.
// On success every drop-table item of the family's active area gets one
// independent chance to drop ClickLevel units.
func ResolveClick(st *player.State, cat *catalog.Catalog, rng Roller, family player.Family) (*player.State, []Drop, error) {
	area, err := activeArea(st, family)
	if err != nil {
		return nil, nil, err
	}
	tool, err := toolFor(st, cat, family)
	if err != nil {
		return nil, nil, err
	}
	if tool.ClickLevel < area.MinToolLevel {
		return nil, nil, econErr(CodeToolTooWeak, "%s level %d, area needs %d", tool.Kind, tool.ClickLevel, area.MinToolLevel)
	}

	next := st.Clone()
	drops := rollDrops(next, area.DropTable, int64(tool.ClickLevel), rng)
	return next, drops, nil
}

// ResolveUpgrade purchases one level of an upgrade track for a tool. The
// cost read and the debit happen against the same state value, so a
// concurrent second purchase can never spend the same coins twice — the
// store serializes commits per player.
func ResolveUpgrade(st *player.State, cat *catalog.Catalog, kind player.ToolKind, upgrade player.UpgradeKind) (*player.State, error) {
	tool, ok := st.Tools[kind]
	if !ok {
		return nil, econErr(CodeInvalidRequest, "no such tool %q", kind)
	}

	var level int
	switch upgrade {
	case player.UpgradeClickPower:
		level = tool.ClickLevel
	case player.UpgradeAutoCollector:
		level = tool.CollectorLevel
	default:
		return nil, econErr(CodeInvalidRequest, "no such upgrade %q", upgrade)
	}

	cost, ok := cat.CostOf(upgrade, level)
	if !ok {
		return nil, econErr(CodeInvalidRequest, "no cost curve for %q", upgrade)
	}
	if st.Coins() < cost {
		return nil, econErr(CodeInsufficientFunds, "upgrade costs %d, balance %d", cost, st.Coins())
	}

	next := st.Clone()
	next.Debit(player.ItemCoins, cost)
	upgraded := next.Tools[kind]
	switch upgrade {
	case player.UpgradeClickPower:
		upgraded.ClickLevel++
	case player.UpgradeAutoCollector:
		upgraded.CollectorLevel++
	}
	next.Tools[kind] = upgraded
	return next, nil
}

// ResolveSell converts raw resources into coins at the catalog sale price.
func ResolveSell(st *player.State, cat *catalog.Catalog, item player.Item, quantity int64) (*player.State, error) {
	if quantity <= 0 {
		return nil, econErr(CodeInvalidQuantity, "quantity %d", quantity)
	}
	price, ok := cat.SalePrice(item)
	if !ok {
		return nil, econErr(CodeUnknownResource, "%q has no sale price", item)
	}
	if st.Inventory[item] < quantity {
		return nil, econErr(CodeInsufficientStock, "have %d %s, selling %d", st.Inventory[item], item, quantity)
	}

	next := st.Clone()
	next.Debit(item, quantity)
	next.Credit(player.ItemCoins, quantity*price)
	return next, nil
}

// ResolveSelectArea switches which area of a family is active. Activation is
// gated on the family tool's click level; every sibling is deactivated in
// the same step, so the single-active invariant holds by construction.
func ResolveSelectArea(st *player.State, cat *catalog.Catalog, family player.Family, name player.AreaName) (*player.State, error) {
	areas, ok := st.Areas[family]
	if !ok {
		return nil, econErr(CodeUnknownResource, "no such resource family %q", family)
	}
	target, ok := areas[name]
	if !ok {
		return nil, econErr(CodeUnknownResource, "no area %q in family %q", name, family)
	}
	tool, err := toolFor(st, cat, family)
	if err != nil {
		return nil, err
	}
	if tool.ClickLevel < target.MinToolLevel {
		return nil, econErr(CodeToolTooWeak, "%s level %d, area %q needs %d", tool.Kind, tool.ClickLevel, name, target.MinToolLevel)
	}

	next := st.Clone()
	for n, area := range next.Areas[family] {
		area.Active = n == name
		next.Areas[family][n] = area
	}
	return next, nil
}

// ApplyPassiveTick credits passive production for a whole number of elapsed
// seconds. Policy: once per elapsed second, each gated family with a
// collector runs the same independent Bernoulli draw as a manual click,
// scaled by CollectorLevel instead of ClickLevel. Manual and passive yield
// stay mechanically symmetric. Families with no single active area, a gate
// the tool doesn't meet, or a level-0 collector simply produce nothing —
// a tick never fails.
func ApplyPassiveTick(st *player.State, cat *catalog.Catalog, rng Roller, seconds int64) (*player.State, []Drop) {
	if seconds <= 0 {
		return st.Clone(), nil
	}

	next := st.Clone()
	var drops []Drop
	for _, family := range cat.Families() {
		area, err := activeArea(next, family)
		if err != nil {
			continue
		}
		tool, err := toolFor(next, cat, family)
		if err != nil {
			continue
		}
		if tool.CollectorLevel <= 0 || tool.ClickLevel < area.MinToolLevel {
			continue
		}
		for i := int64(0); i < seconds; i++ {
			drops = append(drops, rollDrops(next, area.DropTable, int64(tool.CollectorLevel), rng)...)
		}
	}
	return next, drops
}
