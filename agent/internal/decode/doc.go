// Package decode maps a provider and event id to a short human-readable
// message. Handlers are keyed by exact provider name; unknown providers
// decode to nothing. Every function here is pure.
package decode
