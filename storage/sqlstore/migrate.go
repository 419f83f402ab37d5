package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"sync"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Migrate runs a goose command ("up", "down", "status", "up-to 2"...) against db.
func Migrate(ctx context.Context, db *sql.DB, driver, command string, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(driver); err != nil {
		return errors.Wrapf(err, "setting migration dialect %q", driver)
	}
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migration %q", command)
	}
	return nil
}
