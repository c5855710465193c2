// Package migrations embeds the Postgres schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v4/stdlib"
)

//go:embed *.sql
var files embed.FS

// Migrator wraps a migrate.Migrate bound to the embedded schema.
type Migrator struct {
	m  *migrate.Migrate
	db *sql.DB
}

// New opens dsn through the pgx stdlib driver and binds it to the embedded files.
func New(dsn string) (*Migrator, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	src, err := iofs.New(files, ".")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	drv, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", drv)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return &Migrator{m: m, db: db}, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Down rolls back the latest migration.
func (g *Migrator) Down() error {
	return g.m.Steps(-1)
}

func (g *Migrator) Goto(version uint) error {
	if err := g.m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Version reports the applied version; ok is false on a fresh database.
func (g *Migrator) Version() (version uint, dirty, ok bool, err error) {
	version, dirty, err = g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}

func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up is the one-shot form used by the app when auto_migrate is set.
func Up(dsn string) error {
	g, err := New(dsn)
	if err != nil {
		return err
	}
	defer g.Close()
	return g.Up()
}
