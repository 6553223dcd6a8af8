package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the sqlite connection used by the registry repositories.
type DB struct {
	Conn *sql.DB
	log  *zap.Logger
}

// New opens (creating if needed) the sqlite database under dataDir.
// WAL keeps readers from blocking the writer; a single connection avoids
// SQLITE_BUSY between the repositories.
func New(dataDir string, log *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	path := filepath.Join(dataDir, "wagate.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	log.Info("sqlite: connected", zap.String("path", path))

	return &DB{Conn: conn, log: log}, nil
}

func (db *DB) Close() error {
	return db.Conn.Close()
}
