package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps UI state and presets in a single sqlite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating and migrating) the database at path
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// writes are serialized by sqlite; a single connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateStore(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrateStore(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ui_state (
			panel_key TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS presets (
			name TEXT PRIMARY KEY,
			data_json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) UIState(ctx context.Context, key string) (map[string]any, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM ui_state WHERE panel_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	state := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, false, fmt.Errorf("corrupt state for %s: %w", key, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) MergeUIState(ctx context.Context, key string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	state := map[string]any{}
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT state_json FROM ui_state WHERE panel_key = ?`, key).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return fmt.Errorf("corrupt state for %s: %w", key, err)
		}
	}

	for k, v := range fields {
		state[k] = v
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO ui_state(panel_key, state_json, updated_at_unixms) VALUES(?, ?, ?)`,
		key, string(data), time.Now().UnixMilli(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Presets(ctx context.Context) (Presets, error) {
	return presetsFrom(ctx, s.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func presetsFrom(ctx context.Context, q queryer) (Presets, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, data_json FROM presets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Presets{}
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, err
		}
		out[name] = json.RawMessage(data)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePreset(ctx context.Context, name string, data json.RawMessage) (Presets, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO presets(name, data_json, updated_at_unixms) VALUES(?, ?, ?)`,
		name, string(data), time.Now().UnixMilli(),
	); err != nil {
		return nil, err
	}
	out, err := presetsFrom(ctx, tx)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *SQLiteStore) DeletePreset(ctx context.Context, name string) (Presets, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name); err != nil {
		return nil, err
	}
	out, err := presetsFrom(ctx, tx)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
