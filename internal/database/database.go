package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB is the bot's persistent storage: the alerts table and the metrics snapshot table
type DB struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	target_price REAL NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status);
CREATE INDEX IF NOT EXISTS idx_alerts_user_status ON alerts (user_id, status);

CREATE TABLE IF NOT EXISTS metrics (
	metric_name TEXT NOT NULL,
	label_key TEXT NOT NULL DEFAULT '',
	label_value TEXT NOT NULL DEFAULT '',
	metric_value REAL NOT NULL,
	PRIMARY KEY (metric_name, label_key, label_value)
);`

// InitDB opens the sqlite file at dbPath and creates the schema if needed
func InitDB(ctx context.Context, dbPath string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows a single writer; one connection keeps row updates serialized
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Debugf("Database initialized successfully at %s", dbPath)
	return &DB{db: db}, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" || strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (d *DB) Close() error {
	if d != nil && d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, used by the health endpoint
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
