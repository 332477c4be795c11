package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// MigrationLogger receives goose's progress output.
type MigrationLogger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies the goose migrations found at the root of migrations,
// usually an embed.FS shipped with the storage package.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations fs.FS, cfg Config, log MigrationLogger) error {
	if migrations == nil {
		return errors.Join(ErrMigrationFailed, errors.New("no migrations provided"))
	}

	// goose speaks database/sql; this shares the pool's connections
	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	goose.SetLogger(&migrateSlogAdapter{log: log})
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// migrateSlogAdapter routes goose's Printf-style output to the structured logger.
type migrateSlogAdapter struct {
	log MigrationLogger
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
