// Package api contains the HTTP handlers, request/response models and
// error mapping for the public REST surface. Submissions that require
// enrichment are accepted with 202 and handed to the job queue; reads go
// straight to the reconciler.
package api
