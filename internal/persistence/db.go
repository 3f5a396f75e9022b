// Package persistence provides SQLite-backed durable storage for player
// states. One row per player; the whole aggregate travels as a JSON column
// and round-trips exactly.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/idleharvest/internal/player"
)

// DB wraps a SQLite connection for player state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		player_id     TEXT PRIMARY KEY,
		state_json    TEXT NOT NULL,
		last_saved_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// LoadOne reads one player's state. The second return is false when no row
// exists for the id.
func (db *DB) LoadOne(ctx context.Context, playerID string) (*player.State, bool, error) {
	var raw string
	err := db.conn.GetContext(ctx, &raw,
		"SELECT state_json FROM players WHERE player_id = ?", playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load player %s: %w", playerID, err)
	}

	var st player.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, false, fmt.Errorf("decode player %s: %w", playerID, err)
	}
	return &st, true, nil
}

// SaveOne upserts one player's state.
func (db *DB) SaveOne(ctx context.Context, st *player.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", st.PlayerID, err)
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO players (player_id, state_json, last_saved_at) VALUES (?, ?, ?)",
		st.PlayerID, string(raw), st.LastSavedAt)
	if err != nil {
		return fmt.Errorf("save player %s: %w", st.PlayerID, err)
	}
	return nil
}

// SaveMany upserts a batch of player states in one transaction. Used by the
// periodic flush so one sweep over the whole cache is a single commit.
func (db *DB) SaveMany(ctx context.Context, states []*player.State) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"INSERT OR REPLACE INTO players (player_id, state_json, last_saved_at) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, st := range states {
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode player %s: %w", st.PlayerID, err)
		}
		if _, err := stmt.ExecContext(ctx, st.PlayerID, string(raw), st.LastSavedAt); err != nil {
			return fmt.Errorf("save player %s: %w", st.PlayerID, err)
		}
	}

	return tx.Commit()
}

// PlayerCount returns how many players have a persisted row.
func (db *DB) PlayerCount(ctx context.Context) (int64, error) {
	var n int64
	err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM players")
	return n, err
}
