// Package db persists engine snapshots in DuckDB.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-marine/internal/service"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Open opens the DuckDB database under DataDir/duckdb and creates the
// snapshot schema.
func Open(cfg Config) (*sql.DB, error) {
	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}
	name := cfg.DBName
	if name == "" {
		name = "marine"
	}

	db, err := sql.Open("duckdb", filepath.Join(duckdbDir, name+".duckdb"))
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS preferences (
		key        VARCHAR PRIMARY KEY,
		value      VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS overlay_configs (
		overlay_id VARCHAR PRIMARY KEY,
		config     VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const (
	prefTheme  = "theme"
	prefActive = "active"
)

// SnapshotStore implements service.SnapshotStore on DuckDB. Preferences
// and configuration records live in separate tables so they can be
// inspected with plain SQL.
type SnapshotStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSnapshotStore wraps an open database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db, now: time.Now}
}

// Load reads the stored snapshot. An empty database yields an empty one.
func (s *SnapshotStore) Load(ctx context.Context) (service.Snapshot, error) {
	snap := service.Snapshot{Configs: map[string]service.LayerConfig{}}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return snap, fmt.Errorf("load preferences: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return snap, err
		}
		switch key {
		case prefTheme:
			snap.Theme = value
		case prefActive:
			if err := json.Unmarshal([]byte(value), &snap.Active); err != nil {
				rows.Close()
				return snap, fmt.Errorf("active overlays: %w", err)
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT overlay_id, config FROM overlay_configs ORDER BY overlay_id`)
	if err != nil {
		return snap, fmt.Errorf("load configs: %w", err)
	}
	defer rows.Close()
	raw := map[string]map[string]any{}
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return snap, err
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return snap, fmt.Errorf("overlay %q: %w", id, err)
		}
		raw[id] = rec
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	configs, err := service.DecodeConfigs(raw)
	if err != nil {
		return snap, err
	}
	snap.Configs = configs
	return snap, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, snap service.Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	now := s.now().UTC()
	active, err := json.Marshal(snap.Active)
	if err != nil {
		return err
	}
	prefs := map[string]string{prefTheme: snap.Theme, prefActive: string(active)}
	for _, key := range []string{prefTheme, prefActive} {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO preferences (key, value, updated_at) VALUES (?, ?, ?)`,
			key, prefs[key], now); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM overlay_configs`); err != nil {
		return err
	}
	for id, cfg := range snap.Configs {
		doc, mErr := json.Marshal(cfg)
		if mErr != nil {
			err = fmt.Errorf("overlay %q: %w", id, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO overlay_configs (overlay_id, config, updated_at) VALUES (?, ?, ?)`,
			id, string(doc), now); err != nil {
			return fmt.Errorf("save overlay %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// Tables lists the tables in the database.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
