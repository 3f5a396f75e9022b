package persistence

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/talgya/idleharvest/internal/catalog"
	"github.com/talgya/idleharvest/internal/player"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func richState(id string) *player.State {
	cat := catalog.New()
	st := cat.DefaultPlayerState(id, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
	st.Inventory[player.ItemCoins] = 1234
	st.Inventory[catalog.ItemWood] = 56
	axe := st.Tools[catalog.ToolAxe]
	axe.ClickLevel = 5
	axe.CollectorLevel = 2
	st.Tools[catalog.ToolAxe] = axe
	area := st.Areas[catalog.FamilyWood]["ancientForest"]
	area.Active = true
	st.Areas[catalog.FamilyWood]["ancientForest"] = area
	forest := st.Areas[catalog.FamilyWood]["forest"]
	forest.Active = false
	st.Areas[catalog.FamilyWood]["forest"] = forest
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	orig := richState("p1")

	if err := db.SaveOne(ctx, orig); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, found, err := db.LoadOne(ctx, "p1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}

	if !reflect.DeepEqual(orig.Inventory, loaded.Inventory) {
		t.Fatalf("inventory did not round-trip: %+v", loaded.Inventory)
	}
	if !reflect.DeepEqual(orig.Tools, loaded.Tools) {
		t.Fatalf("tool levels did not round-trip: %+v", loaded.Tools)
	}
	if !reflect.DeepEqual(orig.Areas, loaded.Areas) {
		t.Fatalf("area flags did not round-trip: %+v", loaded.Areas)
	}
	if !orig.LastSeenAt.Equal(loaded.LastSeenAt) {
		t.Fatalf("LastSeenAt did not round-trip")
	}
}

func TestLoadMissingPlayer(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.LoadOne(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("missing player reported as found")
	}
}

func TestSaveOneOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	st := richState("p1")

	if err := db.SaveOne(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Inventory[player.ItemCoins] = 9999
	if err := db.SaveOne(ctx, st); err != nil {
		t.Fatalf("resave: %v", err)
	}

	loaded, _, err := db.LoadOne(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Coins() != 9999 {
		t.Fatalf("upsert did not replace: %d", loaded.Coins())
	}

	n, err := db.PlayerCount(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one row, got %d (%v)", n, err)
	}
}

func TestSaveMany(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	batch := []*player.State{richState("a"), richState("b"), richState("c")}
	if err := db.SaveMany(ctx, batch); err != nil {
		t.Fatalf("save many: %v", err)
	}
	if err := db.SaveMany(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	n, err := db.PlayerCount(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 rows, got %d (%v)", n, err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, found, err := db.LoadOne(ctx, id); err != nil || !found {
			t.Fatalf("row %s missing after batch save", id)
		}
	}
}
