// Package admin implements the stele command tree: verify, inspect,
// reduce, truncate, and raw store operations, all working directly against
// a store's data directory.
package admin
