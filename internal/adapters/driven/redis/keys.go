// Package redis implements the status store, vector store and distributed
// lock on Redis.
package redis

const keyPrefix = "podtutor:"

// Key namespaces
const (
	lockPrefix   = keyPrefix + "lock:"
	statusPrefix = keyPrefix + "status:"
	vectorPrefix = keyPrefix + "vectors:"
)
