// Package store keeps the latest report per host in memory with TTL
// eviction.
package store
