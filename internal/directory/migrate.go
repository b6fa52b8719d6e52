package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/teedineasyteam-boop/teedin-identity/migrations/postgres"
)

// Migrate applies the embedded schema migrations in file order. Statements
// are written idempotent (IF NOT EXISTS), so re-running is safe; no
// version table is kept.
func Migrate(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("directory: migrate connect: %w", err)
	}
	defer pool.Close()

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("directory: read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("directory: read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("directory: apply %s: %w", name, err)
		}
	}
	return nil
}
