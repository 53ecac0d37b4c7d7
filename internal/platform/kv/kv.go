// Package kv provides a minimal expiring key-value store abstraction.
// Entries are write-once, read-many, and disappear after their TTL;
// durability is explicitly not required.
package kv

import "time"

// Store is the expiring key-value contract shared by the capability token
// service and anything else that needs short-lived entries. Implementations
// must make Put and Get individually atomic; no cross-call locking is needed
// by callers.
type Store interface {
	// Put stores value under key for at most ttl. A ttl <= 0 is rejected.
	Put(key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key. ok is false if the key was
	// never stored or has expired.
	Get(key string) (value []byte, ok bool, err error)
}
