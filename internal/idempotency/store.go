// Package idempotency replays the first response to a mutating request when
// a client retries it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL is how long a stored response stays replayable.
const DefaultTTL = 24 * time.Hour

// Record is the state stored under one key. A record without a Status is a
// reservation held by a request still in flight.
type Record struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r *Record) Pending() bool {
	return r.Status == 0
}

// Store persists records. Implementations must make Reserve atomic across
// every instance sharing the store.
type Store interface {
	// Reserve claims key for a new request. If key is already taken it
	// returns the existing record and false.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error)
	// Complete stores the final response under a reserved key.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}
