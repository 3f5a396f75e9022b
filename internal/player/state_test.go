package player

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func sampleState() *State {
	return &State{
		PlayerID: "p1",
		Inventory: map[Item]int64{
			ItemCoins: 42,
			"wood":    7,
		},
		Tools: map[ToolKind]Tool{
			"axe": {Kind: "axe", ClickLevel: 3, CollectorLevel: 1},
		},
		Areas: map[Family]map[AreaName]Area{
			"wood": {
				"forest":        {MinToolLevel: 1, DropTable: map[Item]float64{"wood": 1.0}, Active: true},
				"ancientForest": {MinToolLevel: 3, DropTable: map[Item]float64{"wood": 1.0, "gold": 0.02}},
			},
		},
		LastSavedAt: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		LastSeenAt:  time.Date(2026, 8, 30, 11, 30, 0, 0, time.UTC),
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleState()
	clone := orig.Clone()

	clone.Inventory["wood"] = 999
	clone.Tools["axe"] = Tool{Kind: "axe", ClickLevel: 9}
	area := clone.Areas["wood"]["forest"]
	area.DropTable["gold"] = 1.0
	area.Active = false
	clone.Areas["wood"]["forest"] = area

	if orig.Inventory["wood"] != 7 {
		t.Fatalf("clone shares inventory map")
	}
	if orig.Tools["axe"].ClickLevel != 3 {
		t.Fatalf("clone shares tools map")
	}
	if !orig.Areas["wood"]["forest"].Active {
		t.Fatalf("clone shares area map")
	}
	if _, ok := orig.Areas["wood"]["forest"].DropTable["gold"]; ok {
		t.Fatalf("clone shares drop tables")
	}
}

func TestJSONRoundTripExact(t *testing.T) {
	orig := sampleState()

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back State
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(orig.Inventory, back.Inventory) {
		t.Fatalf("inventory did not round-trip: %+v", back.Inventory)
	}
	if !reflect.DeepEqual(orig.Tools, back.Tools) {
		t.Fatalf("tools did not round-trip: %+v", back.Tools)
	}
	if !reflect.DeepEqual(orig.Areas, back.Areas) {
		t.Fatalf("areas did not round-trip: %+v", back.Areas)
	}
	if !orig.LastSavedAt.Equal(back.LastSavedAt) || !orig.LastSeenAt.Equal(back.LastSeenAt) {
		t.Fatalf("timestamps did not round-trip")
	}
}

func TestCreditDebit(t *testing.T) {
	st := sampleState()

	st.Credit("wood", 5)
	if st.Inventory["wood"] != 12 {
		t.Fatalf("credit: got %d", st.Inventory["wood"])
	}

	st.Debit("wood", 12)
	if _, ok := st.Inventory["wood"]; ok {
		t.Fatalf("zeroed item should leave the inventory")
	}

	st.Credit("wood", 0)
	if _, ok := st.Inventory["wood"]; ok {
		t.Fatalf("zero credit should not create an entry")
	}
}

func TestActiveAreaNames(t *testing.T) {
	st := sampleState()
	if names := st.ActiveAreaNames("wood"); len(names) != 1 || names[0] != "forest" {
		t.Fatalf("expected forest active, got %v", names)
	}

	area := st.Areas["wood"]["ancientForest"]
	area.Active = true
	st.Areas["wood"]["ancientForest"] = area
	if names := st.ActiveAreaNames("wood"); len(names) != 2 {
		t.Fatalf("expected 2 active, got %v", names)
	}

	if names := st.ActiveAreaNames("stone"); names != nil {
		t.Fatalf("unknown family should have no active areas, got %v", names)
	}
}
