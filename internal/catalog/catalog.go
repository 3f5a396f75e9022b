// Package catalog holds the immutable economy configuration: tool and area
// definitions, drop tables, cost curves, and sale prices. Loaded once at
// startup and shared read-only by every rules evaluation.
package catalog

import (
	"time"

	"github.com/talgya/idleharvest/internal/player"
)

const (
	ToolAxe     player.ToolKind = "axe"
	ToolPickaxe player.ToolKind = "pickaxe"

	FamilyWood  player.Family = "wood"
	FamilyStone player.Family = "stone"

	ItemWood  player.Item = "wood"
	ItemStone player.Item = "stone"
	ItemIron  player.Item = "iron"
	ItemGold  player.Item = "gold"
)

type areaDef struct {
	MinToolLevel  int
	DropTable     map[player.Item]float64
	ActiveDefault bool
}

type familyDef struct {
	Tool  player.ToolKind
	Areas map[player.AreaName]areaDef
}

// Catalog is the process-wide economy configuration. It carries no mutable
// state and needs no synchronization.
type Catalog struct {
	families  map[player.Family]familyDef
	prices    map[player.Item]int64
	curves    map[player.UpgradeKind]func(level int) int64
	toolOrder map[player.ToolKind]player.Family
}

// New builds the built-in catalog. Balancing lives entirely here; the rules
// engine only ever asks questions of it.
func New() *Catalog {
	c := &Catalog{
		families: map[player.Family]familyDef{
			FamilyWood: {
				Tool: ToolAxe,
				Areas: map[player.AreaName]areaDef{
					"forest": {
						MinToolLevel:  1,
						DropTable:     map[player.Item]float64{ItemWood: 1.0},
						ActiveDefault: true,
					},
					"ancientForest": {
						MinToolLevel: 3,
						DropTable:    map[player.Item]float64{ItemWood: 1.0, ItemGold: 0.02},
					},
				},
			},
			FamilyStone: {
				Tool: ToolPickaxe,
				Areas: map[player.AreaName]areaDef{
					"quarry": {
						MinToolLevel:  1,
						DropTable:     map[player.Item]float64{ItemStone: 0.9},
						ActiveDefault: true,
					},
					"deepMine": {
						MinToolLevel: 3,
						DropTable:    map[player.Item]float64{ItemStone: 0.9, ItemIron: 0.35, ItemGold: 0.05},
					},
				},
			},
		},
		prices: map[player.Item]int64{
			ItemWood:  1,
			ItemStone: 2,
			ItemIron:  5,
			ItemGold:  25,
		},
		curves: map[player.UpgradeKind]func(level int) int64{
			// Click power scales off the level you already have, collectors
			// off the one you are buying.
			player.UpgradeClickPower:    func(level int) int64 { return int64(level) * 10 },
			player.UpgradeAutoCollector: func(level int) int64 { return int64(level+1) * 50 },
		},
	}

	c.toolOrder = make(map[player.ToolKind]player.Family, len(c.families))
	for family, def := range c.families {
		c.toolOrder[def.Tool] = family
	}
	return c
}

// Families lists every resource family in the catalog.
func (c *Catalog) Families() []player.Family {
	out := make([]player.Family, 0, len(c.families))
	for f := range c.families {
		out = append(out, f)
	}
	return out
}

// ToolForFamily returns the tool kind that works a family's areas.
func (c *Catalog) ToolForFamily(family player.Family) (player.ToolKind, bool) {
	def, ok := c.families[family]
	return def.Tool, ok
}

// FamilyForTool is the inverse mapping.
func (c *Catalog) FamilyForTool(kind player.ToolKind) (player.Family, bool) {
	family, ok := c.toolOrder[kind]
	return family, ok
}

// CostOf evaluates the cost curve for one upgrade kind at the current level.
// Returns false for an unknown upgrade kind.
func (c *Catalog) CostOf(kind player.UpgradeKind, currentLevel int) (int64, bool) {
	curve, ok := c.curves[kind]
	if !ok {
		return 0, false
	}
	return curve(currentLevel), true
}

// SalePrice returns the coin price one unit of an item sells for.
// Coins themselves have no sale price.
func (c *Catalog) SalePrice(item player.Item) (int64, bool) {
	price, ok := c.prices[item]
	return price, ok
}

// DefaultPlayerState seeds a fresh aggregate for a first-time player:
// both tools at click level 1 with no collectors, the catalog's default
// area graph, and an empty inventory.
func (c *Catalog) DefaultPlayerState(playerID string, now time.Time) *player.State {
	st := &player.State{
		PlayerID:    playerID,
		Inventory:   make(map[player.Item]int64),
		Tools:       make(map[player.ToolKind]player.Tool, len(c.families)),
		Areas:       make(map[player.Family]map[player.AreaName]player.Area, len(c.families)),
		LastSavedAt: now,
		LastSeenAt:  now,
	}

	for family, def := range c.families {
		st.Tools[def.Tool] = player.Tool{
			Kind:           def.Tool,
			ClickLevel:     1,
			CollectorLevel: 0,
		}

		areas := make(map[player.AreaName]player.Area, len(def.Areas))
		for name, ad := range def.Areas {
			table := make(map[player.Item]float64, len(ad.DropTable))
			for item, p := range ad.DropTable {
				table[item] = p
			}
			areas[name] = player.Area{
				MinToolLevel: ad.MinToolLevel,
				DropTable:    table,
				Active:       ad.ActiveDefault,
			}
		}
		st.Areas[family] = areas
	}
	return st
}
