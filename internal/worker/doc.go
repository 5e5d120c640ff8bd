// Package worker implements the dispatch layer that consumes jobs from
// the queue and routes each envelope to the handler registered for its
// action. Handlers run time-bounded and failure-isolated: a handler error,
// timeout or panic fails the one job and never the dispatch loop.
package worker
