// Package ratelimit throttles requests per key (client IP, username) with a
// token bucket per key. Idle buckets are dropped lazily.
package ratelimit
