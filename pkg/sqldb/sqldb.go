// Package sqldb opens the SQL databases behind the emulator store (PostgreSQL
// through lib/pq, SQLite through modernc.org/sqlite), applies schema
// migrations with golang-migrate and offers a transaction helper.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
)

// Dialect names the SQL flavour of a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DB is a *sql.DB that knows its dialect.
type DB struct {
	DB      *sql.DB
	dialect Dialect
	dsn     string
	logger  *slog.Logger
}

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(cfg config.PostgresConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return newDB(db, Postgres, cfg.DSN()), nil
}

// OpenSQLite opens the SQLite database at path. ":memory:" gives a private
// in-memory database held on a single connection.
func OpenSQLite(path string) (*DB, error) {
	memory := path == "" || path == ":memory:"
	if memory {
		path = ":memory:"
	} else if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	return newDB(db, SQLite, path), nil
}

func newDB(db *sql.DB, d Dialect, dsn string) *DB {
	return &DB{
		DB:      db,
		dialect: d,
		dsn:     dsn,
		logger:  slog.Default().With("component", "sqldb", "dialect", string(d)),
	}
}

// Wrap adopts an already open *sql.DB, such as a sqlmock connection.
// Migrate is not available on wrapped databases.
func Wrap(db *sql.DB, d Dialect) *DB {
	return newDB(db, d, "")
}

// Dialect returns the SQL flavour of d.
func (d *DB) Dialect() Dialect { return d.dialect }

// Rebind rewrites '?' placeholders into the dialect's form.
func (d *DB) Rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.DB.Close()
}

// InTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Migrate applies the pending up-migrations found in dir of fsys. Files
// follow golang-migrate naming, e.g. 0001_init.up.sql.
func (d *DB) Migrate(fsys fs.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("reading migrations %s: %w", dir, err)
	}

	var m *migrate.Migrate
	switch d.dialect {
	case Postgres:
		if d.dsn == "" {
			return errors.New("migrations need a database opened by OpenPostgres")
		}
		// The postgres driver closes the *sql.DB it is given, so it gets a
		// dedicated pool.
		mdb, err := sql.Open("postgres", d.dsn)
		if err != nil {
			return fmt.Errorf("opening migration connection: %w", err)
		}
		driver, err := migratepg.WithInstance(mdb, &migratepg.Config{})
		if err != nil {
			mdb.Close()
			return fmt.Errorf("creating postgres migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
		if err != nil {
			return fmt.Errorf("creating migrate instance: %w", err)
		}
		defer m.Close()
	case SQLite:
		// In-memory databases live on the one shared connection, so the
		// migration runs on d.DB and the driver is never closed.
		driver, err := migratesqlite.WithInstance(d.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("creating sqlite migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite", driver)
		if err != nil {
			return fmt.Errorf("creating migrate instance: %w", err)
		}
		defer src.Close()
	default:
		return fmt.Errorf("unsupported dialect %q", d.dialect)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			d.logger.Info("no pending migrations", "dir", dir)
			return nil
		}
		return fmt.Errorf("running migrations: %w", err)
	}
	version, _, _ := m.Version()
	d.logger.Info("migrations applied", "dir", dir, "version", version)
	return nil
}
