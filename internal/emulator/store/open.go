package store

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the schema migrations for dialect, rooted at the
// directory golang-migrate reads.
func Migrations(d sqldb.Dialect) (embed.FS, string) {
	return migrations, "migrations/" + string(d)
}

// OpenDB opens and migrates the SQL database selected by cfg. It fails for
// the memory driver.
func OpenDB(cfg *config.Config) (*sqldb.DB, error) {
	var (
		db  *sqldb.DB
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err = sqldb.OpenPostgres(cfg.Postgres)
	case "sqlite":
		db, err = sqldb.OpenSQLite(cfg.Store.SQLitePath)
	default:
		return nil, fmt.Errorf("store driver %q has no SQL database", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	fsys, dir := Migrations(db.Dialect())
	if err := db.Migrate(fsys, dir); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open builds the Store selected by cfg.Store.Driver. For SQL drivers the
// opened database is returned too so other components can share it; it is
// nil for the memory driver.
func Open(cfg *config.Config) (*Store, *sqldb.DB, error) {
	if cfg.Store.Driver == "" || cfg.Store.Driver == "memory" {
		slog.Info("using in-memory store")
		return New(NewMemory()), nil, nil
	}
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	slog.Info("using SQL store", "driver", cfg.Store.Driver)
	return New(NewSQL(db)), db, nil
}
