package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"vigil-ird/config"
	"vigil-ird/core/utils"
)

// NewDB opens the configured database. db_driver=postgres uses the pgx
// stdlib driver with db_url; everything else falls back to the
// embedded sqlite file at db_path.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if driver == "postgres" || driver == "pgx" {
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, fmt.Errorf("db_url required for postgres")
		}
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			logger.Printf("database: postgres")
		}
		return db, nil
	}

	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		path = "data/vigil.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)
	if logger != nil {
		logger.Printf("database: sqlite at %s", path)
	}
	return db, nil
}
