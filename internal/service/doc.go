// Package service contains the application services that sit between the
// worker handlers / HTTP layer and the stores. The central piece is the
// Reconciler, which merges repeated or concurrent submissions into a
// consistent relational shape using natural-key upserts.
package service
