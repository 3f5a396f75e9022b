package catalog

import (
	"testing"
	"time"

	"github.com/talgya/idleharvest/internal/player"
)

func TestDefaultPlayerState(t *testing.T) {
	cat := New()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	st := cat.DefaultPlayerState("p1", now)

	if st.PlayerID != "p1" {
		t.Fatalf("player id not set")
	}
	if len(st.Inventory) != 0 {
		t.Fatalf("fresh inventory not empty: %+v", st.Inventory)
	}
	if !st.LastSeenAt.Equal(now) || !st.LastSavedAt.Equal(now) {
		t.Fatalf("timestamps not seeded from now")
	}

	for _, family := range cat.Families() {
		kind, ok := cat.ToolForFamily(family)
		if !ok {
			t.Fatalf("family %s has no tool", family)
		}
		tool, ok := st.Tools[kind]
		if !ok {
			t.Fatalf("default state missing tool %s", kind)
		}
		if tool.ClickLevel != 1 || tool.CollectorLevel != 0 {
			t.Fatalf("tool %s starts at click=%d collector=%d", kind, tool.ClickLevel, tool.CollectorLevel)
		}

		active := st.ActiveAreaNames(family)
		if len(active) != 1 {
			t.Fatalf("family %s seeds %d active areas", family, len(active))
		}
		if gate := st.Areas[family][active[0]].MinToolLevel; gate != 1 {
			t.Fatalf("default active area of %s gated at level %d", family, gate)
		}
	}
}

func TestDefaultPlayerStateIsIndependent(t *testing.T) {
	cat := New()
	now := time.Now()
	a := cat.DefaultPlayerState("a", now)
	b := cat.DefaultPlayerState("b", now)

	area := a.Areas[FamilyWood]["forest"]
	area.DropTable[ItemGold] = 0.5
	a.Areas[FamilyWood]["forest"] = area

	if _, ok := b.Areas[FamilyWood]["forest"].DropTable[ItemGold]; ok {
		t.Fatalf("seeded states share drop table maps")
	}
}

func TestCostCurves(t *testing.T) {
	cat := New()

	tests := []struct {
		kind  player.UpgradeKind
		level int
		want  int64
	}{
		{player.UpgradeClickPower, 1, 10},
		{player.UpgradeClickPower, 2, 20},
		{player.UpgradeClickPower, 9, 90},
		{player.UpgradeAutoCollector, 0, 50},
		{player.UpgradeAutoCollector, 1, 100},
		{player.UpgradeAutoCollector, 4, 250},
	}
	for _, tt := range tests {
		got, ok := cat.CostOf(tt.kind, tt.level)
		if !ok {
			t.Fatalf("no curve for %s", tt.kind)
		}
		if got != tt.want {
			t.Fatalf("%s at level %d: got %d, want %d", tt.kind, tt.level, got, tt.want)
		}
	}

	if _, ok := cat.CostOf("megaDrill", 1); ok {
		t.Fatalf("unknown upgrade kind has a cost")
	}
}

func TestCostCurvesMonotone(t *testing.T) {
	cat := New()
	for _, kind := range []player.UpgradeKind{player.UpgradeClickPower, player.UpgradeAutoCollector} {
		prev := int64(0)
		for level := 0; level < 20; level++ {
			cost, _ := cat.CostOf(kind, level)
			if cost <= prev {
				t.Fatalf("%s cost not increasing at level %d: %d <= %d", kind, level, cost, prev)
			}
			prev = cost
		}
	}
}

func TestToolFamilyMappingRoundTrips(t *testing.T) {
	cat := New()
	for _, family := range cat.Families() {
		kind, ok := cat.ToolForFamily(family)
		if !ok {
			t.Fatalf("no tool for %s", family)
		}
		back, ok := cat.FamilyForTool(kind)
		if !ok || back != family {
			t.Fatalf("tool %s maps back to %s", kind, back)
		}
	}
	if _, ok := cat.ToolForFamily("lava"); ok {
		t.Fatalf("unknown family has a tool")
	}
}

func TestSalePrices(t *testing.T) {
	cat := New()
	for item, want := range map[player.Item]int64{ItemWood: 1, ItemStone: 2, ItemIron: 5, ItemGold: 25} {
		got, ok := cat.SalePrice(item)
		if !ok || got != want {
			t.Fatalf("price of %s: got %d ok=%v, want %d", item, got, ok, want)
		}
	}
	if _, ok := cat.SalePrice(player.ItemCoins); ok {
		t.Fatalf("coins must not be sellable")
	}
}
