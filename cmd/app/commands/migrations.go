package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/cardvault/internal/config"
)

// migrationTarget maps a store driver to its migration directory and a database URL
// golang-migrate understands. MySQL DSNs get the mysql:// scheme they lack.
func migrationTarget(driver, connectionString string) (string, string, error) {
	switch driver {
	case config.StoreDriverPostgres:
		return "file://migrations/postgresql", connectionString, nil
	case config.StoreDriverMySQL:
		if !strings.HasPrefix(connectionString, "mysql://") {
			connectionString = "mysql://" + connectionString
		}
		return "file://migrations/mysql", connectionString, nil
	case "", config.StoreDriverMemory:
		return "", "", errors.New("migrations require the postgres or mysql store driver")
	default:
		return "", "", fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// RunMigrations applies every pending migration for driver. Returns nil if there is
// nothing to apply.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	migrationsPath, databaseURL, err := migrationTarget(driver, connectionString)
	if err != nil {
		return err
	}

	logger.Info("running database migrations",
		slog.String("driver", driver),
		slog.String("path", migrationsPath),
	)

	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
