package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrEmptyConnectionString = errors.New("pg: empty connection string, set PG_CONN_URL")
	ErrInvalidConfig         = errors.New("pg: invalid pool config")
	ErrNotReady              = errors.New("pg: database did not accept connections")
	ErrUnhealthy             = errors.New("pg: healthcheck failed")
	ErrMigrationFailed       = errors.New("pg: failed to apply migrations")
)

// IsNotFoundError reports whether a single-row query matched nothing.
func IsNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
