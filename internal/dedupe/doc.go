// Package dedupe keeps recently sent responses for a configurable window so a
// retried request carrying the same idempotency key is answered from the cache.
package dedupe
