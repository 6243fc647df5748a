package application

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

var ErrNoMigrationPool = errors.New("migrations: database pool is not configured")

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	schemas []fs.FS
}

// NewMigrationManager runs goose migrations from the registered schema
// directories. Each schema FS must hold its *.sql files at the root.
func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{pool: pool, logger: logger}
}

func (m *migrationManager) RegisterSchema(schemas ...fs.FS) {
	m.schemas = append(m.schemas, schemas...)
}

func (m *migrationManager) Up(ctx context.Context) error {
	return m.each(func(db *sql.DB) error {
		return goose.UpContext(ctx, db, ".", goose.WithAllowMissing())
	})
}

func (m *migrationManager) Down(ctx context.Context) error {
	for i := len(m.schemas) - 1; i >= 0; i-- {
		if err := m.run(m.schemas[i], func(db *sql.DB) error {
			return goose.DownContext(ctx, db, ".")
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *migrationManager) Status(ctx context.Context) error {
	return m.each(func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, ".")
	})
}

func (m *migrationManager) each(fn func(db *sql.DB) error) error {
	for _, schema := range m.schemas {
		if err := m.run(schema, fn); err != nil {
			return err
		}
	}
	return nil
}

func (m *migrationManager) run(schema fs.FS, fn func(db *sql.DB) error) error {
	if m.pool == nil {
		return ErrNoMigrationPool
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if m.logger != nil {
		goose.SetLogger(m.logger)
	}
	goose.SetBaseFS(schema)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()
	return fn(db)
}
