// Package postgres implements the authcore Store interface on a pgx
// connection pool.
//
// Sessions and audit rows are append-heavy and never hard-deleted.
// Two-factor state changes (enable, disable, backup code replacement) run
// inside a single transaction so a crash can never leave a half-enabled
// enrollment.
//
// The expected schema ships in schema.sql.
package postgres
