package state

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq"

	"github.com/S-Corkum/atlas-core/pkg/retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration for the snapshots/recovery_points
// schema against the given Postgres connection string. The relational
// store is frequently still starting up when this runs (fresh container,
// compose/k8s dependency ordering), so the migrator open/up sequence is
// retried with backoff rather than failing on the first attempt.
func Migrate(dsn string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("state: load migration source: %w", err)
	}

	policy := retry.NewExponentialBackoff(retry.Config{
		InitialInterval: 0,
		MaxElapsedTime:  0,
		MaxRetries:      5,
	})

	return policy.Execute(context.Background(), func(ctx context.Context) error {
		m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
		if err != nil {
			return fmt.Errorf("state: init migrator: %w", err)
		}
		defer func() { _, _ = m.Close() }()

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("state: apply migrations: %w", err)
		}
		return nil
	})
}
