package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteBusyTimeoutMillis lets concurrent writers wait for the lock instead of
// failing with SQLITE_BUSY.
const sqliteBusyTimeoutMillis = 5000

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, err := buildSQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(sqlite.Open(dsn), gormConfig())
}

// buildSQLiteDSN resolves Path into a go-sqlite3 URI. An explicit DSN wins,
// and an empty path or ":memory:" selects a shared in-memory database.
func buildSQLiteDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	params := url.Values{}
	params.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeoutMillis))

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "", strings.EqualFold(path, ":memory:"):
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return "file:authflow?" + params.Encode(), nil
	case strings.HasPrefix(path, "file:"):
		return path, nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	params.Set("_journal_mode", "WAL")
	return "file:" + filepath.ToSlash(path) + "?" + params.Encode(), nil
}
