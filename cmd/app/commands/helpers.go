// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	accessDomain "github.com/allisson/cardvault/internal/access/domain"
	"github.com/allisson/cardvault/internal/app"
)

// maintenancePurpose is the declared purpose of operator commands.
const maintenancePurpose = "maintenance"

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// OperatorContext returns the access context used by admin commands run by subject.
func OperatorContext(subject string) accessDomain.Context {
	return accessDomain.Context{
		SubjectID: subject,
		Level:     accessDomain.LevelAdmin,
		Purpose:   maintenancePurpose,
	}
}

// WarnIfMemoryStore logs a warning when a one-shot command runs against the memory
// store, whose state does not outlive the process.
func WarnIfMemoryStore(container *app.Container) {
	if container.IsMemoryStore() {
		container.Logger().Warn("command is running against the memory store; results are not persisted")
	}
}

// CloseContainer closes all resources in the container and logs any errors.
func CloseContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(writer io.Writer, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}

// validateFormat accepts the "text" and "json" output formats.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}
