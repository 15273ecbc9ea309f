package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

type Config struct {
	Path string
}

func DefaultConfig() Config {
	if p := os.Getenv("WEBTOONHUB_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.webtoonhub/data.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".webtoonhub", "data.db"),
	}
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	// foreign_keys is a per-connection pragma, so it goes in the DSN
	// where every pooled connection picks it up.
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func MustOpen(cfg Config, log *zap.Logger) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatal("failed to open db", zap.String("path", cfg.Path), zap.Error(err))
	}
	return db
}
