// Package pgstore persists quota counters, notification records and the
// tenant plan directory in PostgreSQL.
//
// Every mutation is a single statement: increments are upserts that roll a
// finished cycle over in place, resets compare the stored period start, and
// notification claims rely on the primary key to record each tier once.
// Apply Migrations with pg.Migrate before use.
package pgstore
