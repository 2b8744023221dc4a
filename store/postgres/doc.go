// Package postgres implements the store using pgx/v5 with raw SQL.
// Claims use FOR UPDATE SKIP LOCKED so contending workers skip rows
// already locked by others instead of blocking on them. The
// status/message constraint is a CHECK constraint, enforced by the
// database inside the same statement as every write. Schema is applied
// through embedded SQL migrations.
package postgres
