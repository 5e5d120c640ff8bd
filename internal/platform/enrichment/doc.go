// Package enrichment holds HTTP clients for the external enrichment
// services: the screenshot renderer and the link metadata resolver. Both
// are thin adapters behind the handler package's client interfaces.
package enrichment
