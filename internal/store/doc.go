// Package store defines the persistence interfaces and shared errors for
// the application's data layer. Implementations live under
// internal/platform/postgres.
package store
