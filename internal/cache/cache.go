// Package cache provides a small byte cache with memory and Redis backends.
//
// The pass pipeline uses it for rendered background images (keyed by progress
// tier); pass artifacts themselves are never cached — they are rebuilt from
// current state on every fetch.
package cache

import "time"

// Cache is the minimal contract the backends implement.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
