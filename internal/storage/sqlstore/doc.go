// Package sqlstore implements storage.Gateway on PostgreSQL (pgx) and MySQL.
//
// Messages live in a single "message" table. State transitions are
// conditional updates (WHERE status = pending) and the affected row count
// decides which of several concurrent writers won. Schema changes are goose
// migrations embedded per dialect.
package sqlstore
