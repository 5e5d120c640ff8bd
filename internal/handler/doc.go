// Package handler contains the worker action handlers: one per queue
// action. Handlers decode their envelope payload, call external services
// through narrow client interfaces, and persist results through the
// reconciler so that retried or duplicated jobs converge instead of
// duplicating rows.
package handler
