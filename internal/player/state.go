// Package player defines the per-player state aggregate and its invariants.
package player

import "time"

// Item identifies an inventory entry. Coins are an item like any other;
// they are just the only one upgrades are priced in.
type Item string

// ItemCoins is the upgrade currency.
const ItemCoins Item = "coins"

// ToolKind identifies a harvesting tool.
type ToolKind string

// Family is a resource family — a harvestable category (wood, stone)
// gating one tool kind and a set of mutually exclusive areas.
type Family string

// AreaName identifies an area within its family.
type AreaName string

// UpgradeKind selects which tool level an upgrade purchase raises.
type UpgradeKind string

const (
	UpgradeClickPower    UpgradeKind = "clickPower"
	UpgradeAutoCollector UpgradeKind = "autoCollector"
)

// Tool tracks the two upgrade tracks of one harvesting tool.
// ClickLevel multiplies manual-click yield, CollectorLevel passive yield.
// Levels only ever increase, one paid unit at a time.
type Tool struct {
	Kind           ToolKind `json:"kind"`
	ClickLevel     int      `json:"click_level"`
	CollectorLevel int      `json:"collector_level"`
}

// Area is one harvesting location within a resource family.
type Area struct {
	MinToolLevel int              `json:"min_tool_level"`
	DropTable    map[Item]float64 `json:"drop_table"`
	Active       bool             `json:"active"`
}

// State is the owning aggregate for one player. It is the single unit of
// consistency: every mutation reads and writes it as one atomic step, so
// anything handed across a package boundary must be a Clone.
type State struct {
	PlayerID    string                       `json:"player_id"`
	Inventory   map[Item]int64               `json:"inventory"`
	Tools       map[ToolKind]Tool            `json:"tools"`
	Areas       map[Family]map[AreaName]Area `json:"areas"`
	LastSavedAt time.Time                    `json:"last_saved_at"`
	LastSeenAt  time.Time                    `json:"last_seen_at"`
}

// Clone deep-copies the aggregate. The store commits and flushes value
// snapshots, never shared map references.
func (s *State) Clone() *State {
	out := &State{
		PlayerID:    s.PlayerID,
		Inventory:   make(map[Item]int64, len(s.Inventory)),
		Tools:       make(map[ToolKind]Tool, len(s.Tools)),
		Areas:       make(map[Family]map[AreaName]Area, len(s.Areas)),
		LastSavedAt: s.LastSavedAt,
		LastSeenAt:  s.LastSeenAt,
	}
	for item, qty := range s.Inventory {
		out.Inventory[item] = qty
	}
	for kind, tool := range s.Tools {
		out.Tools[kind] = tool
	}
	for family, areas := range s.Areas {
		copied := make(map[AreaName]Area, len(areas))
		for name, area := range areas {
			table := make(map[Item]float64, len(area.DropTable))
			for item, p := range area.DropTable {
				table[item] = p
			}
			area.DropTable = table
			copied[name] = area
		}
		out.Areas[family] = copied
	}
	return out
}

// Coins returns the current coin balance.
func (s *State) Coins() int64 {
	return s.Inventory[ItemCoins]
}

// Credit adds quantity units of an item to the inventory.
func (s *State) Credit(item Item, quantity int64) {
	if quantity == 0 {
		return
	}
	s.Inventory[item] += quantity
}

// Debit removes quantity units. The caller must have checked the balance;
// quantities never go negative.
func (s *State) Debit(item Item, quantity int64) {
	s.Inventory[item] -= quantity
	if s.Inventory[item] <= 0 {
		delete(s.Inventory, item)
	}
}

// ActiveAreaNames returns every area currently flagged active in a family.
// A well-formed state has exactly one per family; callers decide what a
// violation means for them (the rules engine rejects, the store heals).
func (s *State) ActiveAreaNames(family Family) []AreaName {
	var names []AreaName
	for name, area := range s.Areas[family] {
		if area.Active {
			names = append(names, name)
		}
	}
	return names
}
