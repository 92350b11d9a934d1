//go:build integration

// Package dbtest starts a migrated PostgreSQL container for integration tests.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flashnotes/flashnotes/internal/database"
)

type Postgres struct {
	Pool      *pgxpool.Pool
	DSN       string
	container testcontainers.Container
}

// Start runs postgres:16-alpine and applies the repository migrations.
// Callers must Close it, typically from TestMain.
func Start(ctx context.Context) (*Postgres, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "flashnotes_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	pg := &Postgres{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres port: %w", err)
	}

	migrations, err := MigrationsPath()
	if err != nil {
		pg.Close()
		return nil, err
	}

	pg.DSN = fmt.Sprintf("postgres://test:test@%s:%s/flashnotes_test?sslmode=disable", host, port.Port())
	if err := database.RunMigrations(pg.DSN, migrations); err != nil {
		pg.Close()
		return nil, err
	}

	pg.Pool, err = pgxpool.New(ctx, pg.DSN)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pg, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
	_ = p.container.Terminate(context.Background())
}

// MigrationsPath walks up from the working directory to the module root.
func MigrationsPath() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("migrations directory not found")
		}
		dir = parent
	}
}
