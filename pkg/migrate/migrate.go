package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where the SQL migrations live relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

const dialect = "postgres"

// Run executes a goose command against the given connection. Valid commands
// are the goose ones that need a DB, e.g. "up", "down" and "status".
func Run(ctx context.Context, conn *sql.DB, dir string, command string, args ...string) error {
	if conn == nil {
		return fmt.Errorf("db connection is required")
	}
	if dir == "" {
		return fmt.Errorf("migrations dir is required")
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, conn, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
