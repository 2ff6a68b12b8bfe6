package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/LAWSA07/Assignment-Plagarism-Detection/internal/config"
)

type Migrator struct {
	migrate *migrate.Migrate
}

// NewMigrator строит мигратор поверх уже открытого соединения.
func NewMigrator(db *sql.DB, migrationsPath string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := sourceURL(migrationsPath)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{migrate: m}, nil
}

func sourceURL(path string) (string, error) {
	if path == "" {
		path = "migrations"
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("migrations directory %q: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close закрывает source и соединение, переданное в NewMigrator.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

// Migrate применяет миграции на отдельном соединении: Close мигратора закрывает базу.
func Migrate(cfg config.DatabaseConfig, direction string) error {
	db, err := NewPostgres(cfg)
	if err != nil {
		return err
	}

	m, err := NewMigrator(db, cfg.MigrationsPath)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()

	switch direction {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	default:
		return fmt.Errorf("invalid migration direction %q, use up or down", direction)
	}
}
