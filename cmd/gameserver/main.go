// Command gameserver runs the idleharvest authoritative economy server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/idleharvest/internal/api"
	"github.com/talgya/idleharvest/internal/catalog"
	"github.com/talgya/idleharvest/internal/persistence"
	"github.com/talgya/idleharvest/internal/scheduler"
	"github.com/talgya/idleharvest/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	addr := flag.String("addr", envOr("GAME_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("GAME_DB", "data/idleharvest.db"), "SQLite database path")
	tickEvery := flag.Duration("tick", time.Second, "passive production period")
	flushEvery := flag.Duration("flush", 60*time.Second, "persistence flush period")
	flag.Parse()

	slog.Info("idleharvest economy server starting")

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── Engine wiring ─────────────────────────────────────────────────
	cat := catalog.New()
	st := store.New(cat, db)
	sched := scheduler.New(st, *tickEvery, *flushEvery)

	srv := &api.Server{
		Store: st,
		Sched: sched,
		DB:    db,
		Addr:  *addr,
	}
	srv.Start()

	// ── Run until signalled ───────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Run(ctx)

	slog.Info("shutting down, flushing player states")
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.FlushAll(flushCtx); err != nil {
		slog.Error("final flush failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
