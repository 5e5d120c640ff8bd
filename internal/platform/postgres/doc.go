// Package postgres provides PostgreSQL implementations of the store
// interfaces. All natural-key upserts are single INSERT ... ON CONFLICT
// statements, never read-then-write pairs, so concurrent writers converge
// on one row without races.
package postgres
